package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"buddy/internal/pcm"
)

// speechSampleRate is the rate of the raw PCM returned for response_format pcm.
const speechSampleRate = 24000

// Player plays mono 16-bit samples and returns when playback has finished.
type Player interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
}

// SpeechClient synthesizes replies with the speech endpoint and plays them.
type SpeechClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
	player     Player
	logger     *slog.Logger
}

func NewSpeechClient(apiKey string, player Player, logger *slog.Logger) *SpeechClient {
	return NewSpeechClientWithURL(apiKey, player, defaultBaseURL, logger)
}

func NewSpeechClientWithURL(apiKey string, player Player, baseURL string, logger *slog.Logger) *SpeechClient {
	return &SpeechClient{
		apiKey:     apiKey,
		model:      "tts-1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		player:     player,
		logger:     logger.With("component", "tts.openai"),
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Speak synthesizes text and blocks until playback completes.
func (c *SpeechClient) Speak(ctx context.Context, text, voice string) error {
	samples, err := c.Synthesize(ctx, text, voice)
	if err != nil {
		return err
	}
	if err := c.player.Play(ctx, samples, speechSampleRate); err != nil {
		return fmt.Errorf("playing speech: %w", err)
	}
	return nil
}

// Synthesize returns the speech for text as 24 kHz mono samples.
func (c *SpeechClient) Synthesize(ctx context.Context, text, voice string) ([]int16, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("speech synthesis not configured: set tts.api_key")
	}

	start := time.Now()

	body, err := json.Marshal(speechRequest{
		Model:          c.model,
		Voice:          voice,
		Input:          text,
		ResponseFormat: "pcm",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech API error %d: %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}

	c.logger.Debug("synthesized speech",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
		"voice", voice,
	)

	return pcm.FromBytes(audio), nil
}
