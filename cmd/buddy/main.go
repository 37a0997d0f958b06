package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"buddy/config"
	"buddy/internal/application"
	"buddy/internal/domain"
	"buddy/internal/infra/arbiter"
	"buddy/internal/infra/audio"
	"buddy/internal/infra/brain"
	"buddy/internal/infra/openai"
	"buddy/internal/infra/pushover"
	"buddy/internal/infra/vad"
	"buddy/internal/infra/wake"
	"buddy/internal/infra/whisper"
	"buddy/internal/observe"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("assistant error", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	providerCfg := observe.ProviderConfig{ServiceName: "buddy"}
	if cfg.Tracing.Endpoint != "" {
		exporter, err := observe.NewTraceExporter(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			return err
		}
		providerCfg.TraceExporter = exporter
		logger.Info("exporting traces", "endpoint", cfg.Tracing.Endpoint)
	}

	shutdown, err := observe.InitProvider(ctx, providerCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	format := application.AudioFormat{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   1,
		BitDepth:   16,
		FrameMs:    cfg.Audio.FrameMs,
	}

	frames := application.NewFrameQueue(cfg.Audio.QueueCapacity)
	if err := metrics.ObserveQueue(frames); err != nil {
		return fmt.Errorf("observing frame queue: %w", err)
	}

	classifier, err := vad.NewEnergyClassifier(*cfg.Audio.VADAggressiveness)
	if err != nil {
		return fmt.Errorf("creating voice activity detector: %w", err)
	}
	segmenter := application.NewSegmenter(frames, classifier, format.SampleRate, logger)

	stt, closeSTT, err := createTranscriber(cfg.STT, format.SampleRate, logger)
	if err != nil {
		return err
	}
	defer closeSTT()

	gate, err := createWakeGate(cfg.Wake, stt, cfg.STT.Language)
	if err != nil {
		return err
	}
	if *cfg.Wake.Required && cfg.Wake.Scorer == "none" {
		logger.Warn("wake word required but no scorer configured, accepting every candidate")
	}

	notifier := application.MultiNotifier{application.NewConsoleNotifier(os.Stdout)}
	if cfg.Pushover.Enabled {
		notifier = append(notifier, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Server.Device))
	}

	token, floor := createTokenHolder(cfg.Server, logger)

	settings := application.DefaultSettings()
	settings.Device = cfg.Server.Device
	settings.Voice = cfg.TTS.Voice
	settings.Language = cfg.STT.Language
	settings.AckPhrase = cfg.TTS.AckPhrase
	settings.CandidateWindow = config.Milliseconds(cfg.Audio.CandidateMs)
	settings.Silence = config.Milliseconds(cfg.Audio.SilenceMs)
	settings.MaxUtterance = config.Milliseconds(cfg.Audio.MaxUtteranceMs)
	settings.DispatchTimeout = cfg.DispatchTimeout()

	assistant := application.NewAssistant(application.Components{
		Audio:     createAudioSource(cfg.Audio, format, logger),
		Frames:    frames,
		Segmenter: segmenter,
		Wake:      gate,
		Token:     token,
		STT:       stt,
		TTS:       createSynthesizer(cfg.TTS, logger),
		Dialogue:  brain.NewClient(cfg.Server.URL, settings.DispatchTimeout),
		Notifier:  notifier,
	}, settings, logger, application.WithMetrics(metrics))

	logger.Info("starting buddy",
		"audio_source", cfg.Audio.Source,
		"device", cfg.Server.Device,
		"wake_required", *cfg.Wake.Required,
		"stt", cfg.STT.Backend,
		"tts", cfg.TTS.Backend,
	)

	g, ctx := errgroup.WithContext(ctx)

	if floor != nil {
		g.Go(func() error { return floor.Run(ctx) })
	}

	g.Go(func() error {
		if err := assistant.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(assistant.State),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server starting", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	return g.Wait()
}

func metricsMux(state func() domain.TurnState) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", observe.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"state":  string(state()),
		})
	})
	return mux
}

// createTokenHolder returns the arbiter client, which must also be run, or
// a token that is always held when arbitration is off.
func createTokenHolder(cfg config.ServerConfig, logger *slog.Logger) (application.TokenHolder, *arbiter.Client) {
	if !*cfg.Arbitration {
		logger.Info("floor arbitration disabled, always holding the token")
		return application.HeldToken{}, nil
	}
	floor := arbiter.NewClient(cfg.WS, cfg.Device, logger)
	return floor, floor
}

func createAudioSource(cfg config.AudioConfig, format application.AudioFormat, logger *slog.Logger) application.AudioSource {
	switch cfg.Source {
	case "http":
		return audio.NewHTTPSource(cfg.HTTPAddr, cfg.AuthToken, format, logger)
	case "file":
		return audio.NewFileSource(cfg.FileDir, format, logger)
	default:
		return audio.NewMicrophoneSource(format, logger)
	}
}

func createTranscriber(cfg config.STTConfig, sampleRate int, logger *slog.Logger) (application.SpeechToText, func(), error) {
	switch cfg.Backend {
	case "whisper":
		t, err := whisper.New(cfg.ModelPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("loading whisper model: %w", err)
		}
		return t, func() {
			if err := t.Close(); err != nil {
				logger.Warn("closing whisper model", "error", err)
			}
		}, nil
	default:
		return openai.NewWhisperClient(cfg.APIKey, sampleRate), func() {}, nil
	}
}

func createWakeGate(cfg config.WakeConfig, stt application.SpeechToText, language string) (application.WakeGate, error) {
	var scorer application.WakeScorer
	if cfg.Scorer == "phrase" {
		s, err := wake.NewPhraseScorer(stt, language, cfg.Phrase)
		if err != nil {
			return nil, fmt.Errorf("creating wake scorer: %w", err)
		}
		scorer = s
	}
	return application.NewWakeGate(*cfg.Required, scorer, *cfg.Threshold), nil
}

func createSynthesizer(cfg config.TTSConfig, logger *slog.Logger) application.Synthesizer {
	if cfg.Backend == "console" || cfg.APIKey == "" {
		return application.SilentSynthesizer{}
	}
	return openai.NewSpeechClient(cfg.APIKey, audio.NewSpeaker(), logger)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
