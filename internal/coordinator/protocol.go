// Package coordinator implements the arbitration server that grants the
// conversation floor to one device at a time.
package coordinator

const (
	TypeClaim   = "claim"
	TypeRelease = "release"
	TypeGranted = "granted"
	TypeDenied  = "denied"
)

// Message is the JSON frame exchanged in both directions.
type Message struct {
	Type   string `json:"type"`
	Device string `json:"device,omitempty"`
	Active string `json:"active,omitempty"`
}
