package application

import "context"

// DialogueService turns a transcript into the reply to speak.
type DialogueService interface {
	Reply(ctx context.Context, text, device string) (string, error)
}

// TokenHolder reports whether this device currently owns the conversation.
type TokenHolder interface {
	HasToken() bool
}

// HeldToken is used when arbitration is turned off.
type HeldToken struct{}

func (HeldToken) HasToken() bool { return true }
