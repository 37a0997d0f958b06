package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"buddy/internal/domain"
	"buddy/internal/observe"
)

// UtteranceCollector is satisfied by *Segmenter.
type UtteranceCollector interface {
	Collect(ctx context.Context, policy Policy) domain.Utterance
}

type Components struct {
	Audio     AudioSource
	Frames    FrameSink
	Segmenter UtteranceCollector
	Wake      WakeGate
	Token     TokenHolder
	STT       SpeechToText
	TTS       Synthesizer
	Dialogue  DialogueService
	Notifier  Notifier
}

type Settings struct {
	Device          string
	Voice           string
	Language        string
	AckPhrase       string
	FallbackReply   string
	CandidateWindow time.Duration
	Silence         time.Duration
	MaxUtterance    time.Duration
	DispatchTimeout time.Duration
	IdleBackoff     time.Duration
	TokenBackoff    time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Device:          "windows",
		Language:        "en",
		AckPhrase:       domain.DefaultAckPhrase,
		FallbackReply:   domain.DefaultFallbackReply,
		CandidateWindow: 2 * time.Second,
		Silence:         900 * time.Millisecond,
		MaxUtterance:    8 * time.Second,
		DispatchTimeout: 30 * time.Second,
		IdleBackoff:     50 * time.Millisecond,
		TokenBackoff:    300 * time.Millisecond,
	}
}

type Option func(*Assistant)

func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithStateHook is called on every state transition, from the turn loop.
func WithStateHook(fn func(domain.TurnState)) Option {
	return func(a *Assistant) { a.onState = fn }
}

// Assistant runs one conversational turn at a time: listen for a wake
// trigger, claim the floor, record, transcribe, ask the dialogue service
// and speak its reply.
type Assistant struct {
	audio     AudioSource
	frames    FrameSink
	segmenter UtteranceCollector
	wake      WakeGate
	token     TokenHolder
	stt       SpeechToText
	tts       Synthesizer
	dialogue  DialogueService
	notifier  Notifier
	settings  Settings
	metrics   *observe.Metrics
	onState   func(domain.TurnState)
	state     atomic.Value
	logger    *slog.Logger
}

func NewAssistant(c Components, settings Settings, logger *slog.Logger, opts ...Option) *Assistant {
	a := &Assistant{
		audio:     c.Audio,
		frames:    c.Frames,
		segmenter: c.Segmenter,
		wake:      c.Wake,
		token:     c.Token,
		stt:       c.STT,
		tts:       c.TTS,
		dialogue:  c.Dialogue,
		notifier:  c.Notifier,
		settings:  settings,
		logger:    logger,
	}
	if a.wake == nil {
		a.wake = AlwaysAccept{}
	}
	if a.token == nil {
		a.token = HeldToken{}
	}
	if a.tts == nil {
		a.tts = SilentSynthesizer{}
	}
	if a.notifier == nil {
		a.notifier = &NoopNotifier{}
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.Noop()
	}
	a.state.Store(domain.StateIdleListen)
	return a
}

// State is the current turn state. Safe to call from any goroutine.
func (a *Assistant) State() domain.TurnState {
	return a.state.Load().(domain.TurnState)
}

func (a *Assistant) Run(ctx context.Context) error {
	if a.audio != nil {
		a.logger.Info("starting audio source", "source", a.audio.Name())
		if err := a.audio.Start(ctx, a.frames); err != nil {
			return fmt.Errorf("starting audio: %w", err)
		}
		defer a.audio.Stop()

		if f, ok := a.audio.(SourceFailer); ok {
			var cancel context.CancelCauseFunc
			ctx, cancel = context.WithCancelCause(ctx)
			defer cancel(nil)
			go func() {
				select {
				case err := <-f.Failed():
					cancel(fmt.Errorf("audio source %s failed: %w", a.audio.Name(), err))
				case <-ctx.Done():
				}
			}()
		}
	}

	a.logger.Info("assistant ready, listening", "device", a.settings.Device)

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		default:
			if err := a.runTurn(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("processing turn", "error", err)
			}
		}
	}
}

func (a *Assistant) runTurn(ctx context.Context) error {
	a.enter(domain.StateIdleListen)
	candidate := a.collect(ctx, CandidatePolicy(a.settings.CandidateWindow, a.settings.Silence))
	if candidate.Empty() {
		if ctx.Err() == nil {
			a.metrics.RecordOutcome(ctx, string(domain.OutcomeNoAudio))
		}
		sleep(ctx, a.settings.IdleBackoff)
		return nil
	}

	a.enter(domain.StateWakeCheck)
	wake, err := a.wake.ShouldActivate(ctx, candidate)
	if err != nil {
		a.metrics.RecordOutcome(ctx, string(domain.OutcomeFailed))
		return fmt.Errorf("checking wake trigger: %w", err)
	}
	if !wake {
		a.metrics.RecordOutcome(ctx, string(domain.OutcomeWakeRejected))
		return nil
	}

	a.enter(domain.StateTokenCheck)
	if !a.token.HasToken() {
		a.logger.Debug("wake trigger dropped, another device holds the floor")
		a.metrics.RecordOutcome(ctx, string(domain.OutcomeNoToken))
		sleep(ctx, a.settings.TokenBackoff)
		return nil
	}

	turnID := uuid.NewString()
	ctx = WithTurnID(ctx, turnID)
	ctx, span := observe.StartSpan(ctx, "buddy.turn",
		attribute.String("turn.id", turnID),
		attribute.String("device", a.settings.Device),
	)
	logger := a.logger.With("turn_id", turnID)

	start := time.Now()
	outcome, err := a.converse(ctx, logger)
	a.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	a.metrics.RecordOutcome(ctx, string(outcome))
	span.SetAttributes(attribute.String("turn.outcome", string(outcome)))
	observe.EndSpan(span, err)

	return err
}

func (a *Assistant) converse(ctx context.Context, logger *slog.Logger) (domain.TurnOutcome, error) {
	a.enter(domain.StateAck)
	a.say(ctx, logger, a.settings.AckPhrase)

	a.enter(domain.StateRecord)
	utt := a.collect(ctx, UtterancePolicy(a.settings.Silence, a.settings.MaxUtterance))
	if utt.Empty() {
		logger.Info("no command recorded")
		return domain.OutcomeEmptyCommand, nil
	}
	logger.Info("recorded command",
		"duration", utt.Duration(),
		"end", utt.EndReason,
		"speech_frames", utt.SpeechFrames,
	)

	a.enter(domain.StateTranscribe)
	start := time.Now()
	text, err := a.stt.Transcribe(ctx, utt.Float32(), a.settings.Language)
	a.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return domain.OutcomeFailed, fmt.Errorf("transcribing: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		logger.Info("empty transcript")
		return domain.OutcomeNoTranscript, nil
	}
	logger.Info("transcribed", "text", text)

	a.enter(domain.StateDispatch)
	reply := a.dispatch(ctx, logger, text)

	a.enter(domain.StateRespond)
	if strings.TrimSpace(reply) == "" {
		logger.Info("dialogue service returned an empty reply")
		return domain.OutcomeResponded, nil
	}
	logger.Info("responding", "reply", reply)
	a.say(ctx, logger, reply)

	return domain.OutcomeResponded, nil
}

func (a *Assistant) dispatch(ctx context.Context, logger *slog.Logger, text string) string {
	dctx, cancel := context.WithTimeout(ctx, a.settings.DispatchTimeout)
	defer cancel()

	start := time.Now()
	reply, err := a.dialogue.Reply(dctx, text, a.settings.Device)
	a.metrics.DialogueDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		logger.Warn("dialogue service unavailable, using fallback reply", "error", err)
		a.metrics.RecordFallback(ctx, "dialogue")
		return a.settings.FallbackReply
	}
	return reply
}

// say speaks text and falls back to the notifier when synthesis fails.
func (a *Assistant) say(ctx context.Context, logger *slog.Logger, text string) {
	start := time.Now()
	err := a.tts.Speak(ctx, text, a.settings.Voice)
	a.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil {
		return
	}

	logger.Warn("speech synthesis failed, notifying instead", "error", err)
	a.metrics.RecordFallback(ctx, "speech")
	if err := a.notifier.Notify(ctx, text); err != nil {
		logger.Error("notifying", "error", err)
	}
}

func (a *Assistant) collect(ctx context.Context, policy Policy) domain.Utterance {
	utt := a.segmenter.Collect(ctx, policy)
	if !utt.Empty() {
		a.metrics.RecordUtterance(ctx, policy.Name, utt.Duration().Seconds())
	}
	return utt
}

func (a *Assistant) enter(state domain.TurnState) {
	a.state.Store(state)
	a.logger.Debug("turn state", "state", state)
	if a.onState != nil {
		a.onState(state)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type turnIDKey struct{}

// WithTurnID attaches the current turn id to ctx for downstream requests.
func WithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnIDKey{}, id)
}

func TurnIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(turnIDKey{}).(string)
	return id
}
