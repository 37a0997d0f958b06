package domain

type TurnState string

const (
	StateIdleListen TurnState = "idle_listen"
	StateWakeCheck  TurnState = "wake_check"
	StateTokenCheck TurnState = "token_check"
	StateAck        TurnState = "ack"
	StateRecord     TurnState = "record"
	StateTranscribe TurnState = "transcribe"
	StateDispatch   TurnState = "dispatch"
	StateRespond    TurnState = "respond"
)

// TurnOutcome labels how a turn left the state machine.
type TurnOutcome string

const (
	OutcomeNoAudio      TurnOutcome = "no_audio"
	OutcomeWakeRejected TurnOutcome = "wake_rejected"
	OutcomeNoToken      TurnOutcome = "no_token"
	OutcomeEmptyCommand TurnOutcome = "empty_command"
	OutcomeNoTranscript TurnOutcome = "no_transcript"
	OutcomeResponded    TurnOutcome = "responded"
	OutcomeFailed       TurnOutcome = "failed"
)

const (
	DefaultAckPhrase     = "I'm listening."
	DefaultReply         = "I'm here."
	DefaultFallbackReply = "I couldn't reach the local brain."
)
