package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.pushover.net/1/messages.json"

// Client pushes replies that could not be spoken to a phone.
type Client struct {
	token      string
	userKey    string
	title      string
	apiURL     string
	httpClient *http.Client
}

func NewClient(token, userKey, device string) *Client {
	return NewClientWithURL(token, userKey, device, defaultAPIURL)
}

func NewClientWithURL(token, userKey, device, apiURL string) *Client {
	title := "Buddy"
	if device != "" {
		title += " (" + device + ")"
	}
	return &Client{
		token:      token,
		userKey:    userKey,
		title:      title,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Notify(ctx context.Context, message string) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	form := url.Values{
		"token":   {c.token},
		"user":    {c.userKey},
		"title":   {c.title},
		"message": {message},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover error: %s", resp.Status)
	}
	return nil
}
