package application

import (
	"context"
	"log/slog"
	"time"

	"buddy/internal/domain"
)

// Classifier decides whether a single frame contains speech.
type Classifier interface {
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}

type FrameSource interface {
	Pop(ctx context.Context, timeout time.Duration) (domain.Frame, bool)
}

// Policy bounds one collection. A zero Silence disables silence termination.
type Policy struct {
	Name        string
	MaxDuration time.Duration
	Silence     time.Duration
}

// CandidatePolicy collects a short buffer for wake evaluation. It ends at
// the window or after silence has lasted the threshold, and keeps whatever
// was accumulated even if none of it was speech.
func CandidatePolicy(window, silence time.Duration) Policy {
	return Policy{Name: "candidate", MaxDuration: window, Silence: silence}
}

// UtterancePolicy collects until silence has lasted the threshold or the
// ceiling is reached.
func UtterancePolicy(silence, ceiling time.Duration) Policy {
	return Policy{Name: "utterance", MaxDuration: ceiling, Silence: silence}
}

const DefaultPopTimeout = time.Second

type Segmenter struct {
	frames     FrameSource
	classifier Classifier
	sampleRate int
	popTimeout time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type SegmenterOption func(*Segmenter)

// WithClock replaces the wall clock used for silence and ceiling timing.
func WithClock(now func() time.Time) SegmenterOption {
	return func(s *Segmenter) { s.now = now }
}

func WithPopTimeout(d time.Duration) SegmenterOption {
	return func(s *Segmenter) { s.popTimeout = d }
}

func NewSegmenter(frames FrameSource, classifier Classifier, sampleRate int, logger *slog.Logger, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		frames:     frames,
		classifier: classifier,
		sampleRate: sampleRate,
		popTimeout: DefaultPopTimeout,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collect pulls frames until the policy ends the utterance. If no frame
// arrives within the pop timeout collection ends early with whatever has
// been accumulated, possibly nothing.
func (s *Segmenter) Collect(ctx context.Context, policy Policy) domain.Utterance {
	utt := domain.Utterance{SampleRate: s.sampleRate}

	start := s.now()
	var silenceStart time.Time

	for {
		frame, ok := s.frames.Pop(ctx, s.popTimeout)
		if !ok {
			if ctx.Err() != nil {
				utt.EndReason = domain.EndCancelled
			} else {
				utt.EndReason = domain.EndNoAudio
			}
			return utt
		}

		rate := frame.SampleRate
		if rate == 0 {
			rate = s.sampleRate
		}
		utt.SampleRate = rate
		utt.Samples = append(utt.Samples, frame.Samples...)
		utt.Frames++

		speech := s.isSpeech(frame, rate)
		now := s.now()

		if speech {
			utt.SpeechFrames++
			silenceStart = time.Time{}
		} else if policy.Silence > 0 {
			if silenceStart.IsZero() {
				silenceStart = now
			} else if now.Sub(silenceStart) >= policy.Silence {
				utt.EndReason = domain.EndSilence
				return utt
			}
		}

		if now.Sub(start) >= policy.MaxDuration {
			utt.EndReason = domain.EndMaxDuration
			return utt
		}
	}
}

// isSpeech treats classifier failures as silence.
func (s *Segmenter) isSpeech(frame domain.Frame, sampleRate int) bool {
	speech, err := s.classifier.IsSpeech(frame.Bytes(), sampleRate)
	if err != nil {
		s.logger.Debug("classifying frame", "error", err)
		return false
	}
	return speech
}
