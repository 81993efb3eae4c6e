package types

// Event represents a typed event emitted during a state transition. Attributes
// carry string-rendered values so the payload can be exposed unchanged over
// RPC and to external indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
