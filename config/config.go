package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Wake     WakeConfig     `yaml:"wake"`
	Server   ServerConfig   `yaml:"server"`
	STT      STTConfig      `yaml:"stt"`
	TTS      TTSConfig      `yaml:"tts"`
	Pushover PushoverConfig `yaml:"pushover"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
}

type AudioConfig struct {
	Source            string `yaml:"source"`
	HTTPAddr          string `yaml:"http_addr"`
	FileDir           string `yaml:"file_dir"`
	AuthToken         string `yaml:"auth_token"`
	SampleRate        int    `yaml:"sample_rate"`
	FrameMs           int    `yaml:"frame_ms"`
	VADAggressiveness *int   `yaml:"vad_aggressiveness"`
	CandidateMs       int    `yaml:"candidate_ms"`
	SilenceMs         int    `yaml:"silence_ms"`
	MaxUtteranceMs    int    `yaml:"max_utterance_ms"`
	QueueCapacity     int    `yaml:"queue_capacity"`
}

type WakeConfig struct {
	Required  *bool    `yaml:"require_wake_word"`
	Phrase    string   `yaml:"phrase"`
	Scorer    string   `yaml:"scorer"`
	Threshold *float64 `yaml:"threshold"`
}

type ServerConfig struct {
	URL     string `yaml:"url"`
	WS      string `yaml:"ws"`
	Device  string `yaml:"device"`
	Timeout string `yaml:"timeout"`
	// Arbitration claims the floor over WS before responding. With it off
	// the device always holds the token.
	Arbitration *bool `yaml:"arbitration"`
}

type STTConfig struct {
	Backend   string `yaml:"backend"`
	APIKey    string `yaml:"api_key"`
	Language  string `yaml:"language"`
	ModelPath string `yaml:"model_path"`
}

type TTSConfig struct {
	Backend   string `yaml:"backend"`
	APIKey    string `yaml:"api_key"`
	Voice     string `yaml:"voice"`
	AckPhrase string `yaml:"ack_phrase"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig exports spans over OTLP/HTTP when Endpoint is set, for
// example http://localhost:4318/v1/traces.
type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment references in data, decodes it and applies
// defaults. The result is validated before it is returned.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.HTTPAddr == "" {
		c.Audio.HTTPAddr = ":8090"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameMs == 0 {
		c.Audio.FrameMs = 30
	}
	if c.Audio.VADAggressiveness == nil {
		level := 2
		c.Audio.VADAggressiveness = &level
	}
	if c.Audio.CandidateMs == 0 {
		c.Audio.CandidateMs = 2000
	}
	if c.Audio.SilenceMs == 0 {
		c.Audio.SilenceMs = 900
	}
	if c.Audio.MaxUtteranceMs == 0 {
		c.Audio.MaxUtteranceMs = 8000
	}
	if c.Wake.Required == nil {
		required := true
		c.Wake.Required = &required
	}
	if c.Wake.Phrase == "" {
		c.Wake.Phrase = "brighton"
	}
	if c.Wake.Scorer == "" {
		c.Wake.Scorer = "none"
	}
	if c.Wake.Threshold == nil {
		threshold := 0.5
		c.Wake.Threshold = &threshold
	}
	if c.Server.URL == "" {
		c.Server.URL = "http://127.0.0.1:8080/chat"
	}
	if c.Server.WS == "" {
		c.Server.WS = "ws://127.0.0.1:8081"
	}
	if c.Server.Device == "" {
		c.Server.Device = "windows"
	}
	if c.Server.Arbitration == nil {
		enabled := true
		c.Server.Arbitration = &enabled
	}
	if c.Server.Timeout == "" {
		c.Server.Timeout = "30s"
	}
	if c.STT.Backend == "" {
		c.STT.Backend = "openai"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.TTS.Backend == "" {
		c.TTS.Backend = "openai"
	}
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = c.STT.APIKey
	}
	if c.TTS.Voice == "" {
		c.TTS.Voice = "nova"
	}
	if c.TTS.AckPhrase == "" {
		c.TTS.AckPhrase = "I'm listening."
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Audio.Source {
	case "microphone", "file", "http":
	default:
		errs = append(errs, fmt.Errorf("audio.source: unknown source %q", c.Audio.Source))
	}
	switch c.Audio.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		errs = append(errs, fmt.Errorf("audio.sample_rate: %d is not one of 8000, 16000, 32000, 48000", c.Audio.SampleRate))
	}
	switch c.Audio.FrameMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("audio.frame_ms: %d is not one of 10, 20, 30", c.Audio.FrameMs))
	}
	if level := *c.Audio.VADAggressiveness; level < 0 || level > 3 {
		errs = append(errs, fmt.Errorf("audio.vad_aggressiveness: %d is outside 0-3", level))
	}
	if c.Audio.SilenceMs < 0 || c.Audio.CandidateMs < 0 || c.Audio.MaxUtteranceMs < 0 {
		errs = append(errs, errors.New("audio: durations must not be negative"))
	}
	switch c.Wake.Scorer {
	case "none", "phrase":
	default:
		errs = append(errs, fmt.Errorf("wake.scorer: unknown scorer %q", c.Wake.Scorer))
	}
	if t := *c.Wake.Threshold; t < 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("wake.threshold: %v is outside [0, 1)", t))
	}
	if _, err := time.ParseDuration(c.Server.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("server.timeout: %w", err))
	}
	switch c.STT.Backend {
	case "openai", "whisper":
	default:
		errs = append(errs, fmt.Errorf("stt.backend: unknown backend %q", c.STT.Backend))
	}
	if c.STT.Backend == "whisper" && c.STT.ModelPath == "" {
		errs = append(errs, errors.New("stt.model_path: required for the whisper backend"))
	}
	switch c.TTS.Backend {
	case "openai", "console":
	default:
		errs = append(errs, fmt.Errorf("tts.backend: unknown backend %q", c.TTS.Backend))
	}

	return errors.Join(errs...)
}

// DispatchTimeout is the parsed server.timeout. Validate guarantees it parses.
func (c *Config) DispatchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Milliseconds converts a millisecond config value into a duration.
func Milliseconds(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
