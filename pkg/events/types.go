package events

import "encoding/json"

// Event name constants
const (
	TestState  = "test.state"
	TestAction = "test.action"
)

// Event is a generic daemon event, ready for SSE or websocket delivery.
type Event struct {
	Name string          // event name
	Data json.RawMessage // raw JSON payload
}

// TestStateEvent is the typed payload for test.state: one state-label
// transition of a running characterization test.
type TestStateEvent struct {
	Key   string `json:"key"`   // routine-specific telemetry key
	State string `json:"state"` // state label, "none" on completion/cancel
	Ts    int64  `json:"ts"`
}

// TestActionEvent is the typed payload for test.action: user- or
// schedule-initiated lifecycle changes.
type TestActionEvent struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// DecodeAs unmarshals the event payload into T. Empty payloads decode to the
// zero value of T with a nil error.
func DecodeAs[T any](e Event) (T, error) {
	var v T
	if len(e.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(e.Data, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
