package application_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"buddy/internal/application"
)

type failingNotifier struct {
	err   error
	calls int
}

func (f *failingNotifier) Notify(_ context.Context, _ string) error {
	f.calls++
	return f.err
}

func TestConsoleNotifier_PrintsMessage(t *testing.T) {
	var buf bytes.Buffer
	n := application.NewConsoleNotifier(&buf)

	if err := n.Notify(context.Background(), "I'm here."); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := buf.String(); got != "TTS: I'm here.\n" {
		t.Errorf("output = %q", got)
	}
}

func TestMultiNotifier_DeliversToAllAndJoinsErrors(t *testing.T) {
	errPush := errors.New("push down")
	first := &failingNotifier{err: errPush}
	second := &failingNotifier{}

	err := application.MultiNotifier{first, second}.Notify(context.Background(), "hello")

	if !errors.Is(err, errPush) {
		t.Errorf("err = %v, want %v", err, errPush)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", first.calls, second.calls)
	}
}
