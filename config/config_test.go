package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"buddy/config"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate: got %d, want 16000", cfg.Audio.SampleRate)
	}
	if *cfg.Audio.VADAggressiveness != 2 {
		t.Errorf("VADAggressiveness: got %d, want 2", *cfg.Audio.VADAggressiveness)
	}
	if cfg.Audio.SilenceMs != 900 || cfg.Audio.MaxUtteranceMs != 8000 || cfg.Audio.CandidateMs != 2000 {
		t.Errorf("segmenter defaults: got %d/%d/%d", cfg.Audio.SilenceMs, cfg.Audio.MaxUtteranceMs, cfg.Audio.CandidateMs)
	}
	if !*cfg.Wake.Required {
		t.Error("Wake.Required: got false, want true")
	}
	if cfg.Wake.Phrase != "brighton" {
		t.Errorf("Wake.Phrase: got %q", cfg.Wake.Phrase)
	}
	if cfg.Server.URL != "http://127.0.0.1:8080/chat" {
		t.Errorf("Server.URL: got %q", cfg.Server.URL)
	}
	if cfg.Server.WS != "ws://127.0.0.1:8081" {
		t.Errorf("Server.WS: got %q", cfg.Server.WS)
	}
	if cfg.Server.Device != "windows" {
		t.Errorf("Server.Device: got %q", cfg.Server.Device)
	}
	if cfg.DispatchTimeout() != 30*time.Second {
		t.Errorf("DispatchTimeout: got %v", cfg.DispatchTimeout())
	}
	if cfg.TTS.AckPhrase != "I'm listening." {
		t.Errorf("AckPhrase: got %q", cfg.TTS.AckPhrase)
	}
	if *cfg.Wake.Threshold != 0.5 {
		t.Errorf("Wake.Threshold: got %v, want 0.5", *cfg.Wake.Threshold)
	}
	if !*cfg.Server.Arbitration {
		t.Error("Server.Arbitration: got false, want true")
	}
	if cfg.Tracing.Endpoint != "" {
		t.Errorf("Tracing.Endpoint: got %q, want empty", cfg.Tracing.Endpoint)
	}
}

func TestParse_ExplicitZeroValues(t *testing.T) {
	cfg, err := config.Parse([]byte(`
audio:
  vad_aggressiveness: 0
wake:
  require_wake_word: false
  threshold: 0
server:
  arbitration: false
`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if *cfg.Audio.VADAggressiveness != 0 {
		t.Errorf("VADAggressiveness: got %d, want 0", *cfg.Audio.VADAggressiveness)
	}
	if *cfg.Wake.Required {
		t.Error("Wake.Required: got true, want false")
	}
	if *cfg.Wake.Threshold != 0 {
		t.Errorf("Wake.Threshold: got %v, want 0", *cfg.Wake.Threshold)
	}
	if *cfg.Server.Arbitration {
		t.Error("Server.Arbitration: got true, want false")
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("BUDDY_TEST_KEY", "sk-test")

	cfg, err := config.Parse([]byte(`
stt:
  api_key: ${BUDDY_TEST_KEY}
`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.STT.APIKey != "sk-test" {
		t.Errorf("STT.APIKey: got %q", cfg.STT.APIKey)
	}
	if cfg.TTS.APIKey != "sk-test" {
		t.Errorf("TTS.APIKey should inherit the STT key, got %q", cfg.TTS.APIKey)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"sample rate", "audio:\n  sample_rate: 44100\n", "audio.sample_rate"},
		{"frame size", "audio:\n  frame_ms: 25\n", "audio.frame_ms"},
		{"aggressiveness", "audio:\n  vad_aggressiveness: 4\n", "audio.vad_aggressiveness"},
		{"scorer", "wake:\n  scorer: neural\n", "wake.scorer"},
		{"threshold", "wake:\n  threshold: 1.5\n", "wake.threshold"},
		{"timeout", "server:\n  timeout: soon\n", "server.timeout"},
		{"whisper without model", "stt:\n  backend: whisper\n", "stt.model_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  device: kitchen\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Device != "kitchen" {
		t.Errorf("Server.Device: got %q", cfg.Server.Device)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
