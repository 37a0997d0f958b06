package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"buddy/internal/infra/openai"
	"buddy/internal/pcm"
)

func TestWhisperClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("language") != "en" || r.FormValue("model") != "whisper-1" {
			http.Error(w, "bad fields", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if _, rate, err := pcm.DecodeWAV(data); err != nil || rate != 16000 {
			http.Error(w, "bad wav", http.StatusBadRequest)
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"text": " what time is it \n"})
	}))
	defer server.Close()

	client := openai.NewWhisperClientWithURL("test-key", 16000, server.URL)

	text, err := client.Transcribe(context.Background(), []float32{0, 0.5, -0.5}, "en")
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if text != "what time is it" {
		t.Errorf("text: got %q", text)
	}
}

func TestWhisperClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := openai.NewWhisperClientWithURL("test-key", 16000, server.URL)
	if _, err := client.Transcribe(context.Background(), []float32{0}, "en"); err == nil {
		t.Fatal("expected error")
	}
}

func TestWhisperClient_NoKey(t *testing.T) {
	client := openai.NewWhisperClient("", 16000)
	if _, err := client.Transcribe(context.Background(), []float32{0}, "en"); err == nil {
		t.Fatal("expected error without api key")
	}
}

type recordingPlayer struct {
	samples []int16
	rate    int
	err     error
}

func (p *recordingPlayer) Play(_ context.Context, samples []int16, sampleRate int) error {
	p.samples = samples
	p.rate = sampleRate
	return p.err
}

func TestSpeechClient_Speak(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(pcm.Bytes([]int16{1, 2, 3, 4}))
	}))
	defer server.Close()

	player := &recordingPlayer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := openai.NewSpeechClientWithURL("test-key", player, server.URL, logger)

	if err := client.Speak(context.Background(), "I'm listening.", "nova"); err != nil {
		t.Fatalf("Speak error: %v", err)
	}

	if got["input"] != "I'm listening." || got["voice"] != "nova" || got["response_format"] != "pcm" {
		t.Errorf("request: got %v", got)
	}
	if len(player.samples) != 4 || player.samples[3] != 4 {
		t.Errorf("played samples: got %v", player.samples)
	}
	if player.rate != 24000 {
		t.Errorf("sample rate: got %d", player.rate)
	}
}

func TestSpeechClient_PlaybackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pcm.Bytes([]int16{1}))
	}))
	defer server.Close()

	boom := errors.New("no output device")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := openai.NewSpeechClientWithURL("test-key", &recordingPlayer{err: boom}, server.URL, logger)

	if err := client.Speak(context.Background(), "hi", "nova"); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped playback error", err)
	}
}

func TestSpeechClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	player := &recordingPlayer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := openai.NewSpeechClientWithURL("test-key", player, server.URL, logger)

	if err := client.Speak(context.Background(), "hi", "nova"); err == nil {
		t.Fatal("expected error")
	}
	if player.samples != nil {
		t.Error("played audio despite API error")
	}
}
