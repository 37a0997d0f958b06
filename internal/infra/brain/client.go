// Package brain is the HTTP client for the dialogue service that turns a
// transcript into a spoken reply.
package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"buddy/internal/application"
	"buddy/internal/domain"
)

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	Text   string `json:"text"`
	Device string `json:"device"`
}

type response struct {
	ReplyText *string `json:"reply_text"`
}

// Reply posts the transcript and returns reply_text, or the default reply
// when the service answers without the field. An explicit empty reply_text
// is returned as is.
func (c *Client) Reply(ctx context.Context, text, device string) (string, error) {
	body, err := json.Marshal(request{Text: text, Device: device})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := application.TurnIDFrom(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("dialogue service error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if parsed.ReplyText == nil {
		return domain.DefaultReply, nil
	}
	return *parsed.ReplyText, nil
}
