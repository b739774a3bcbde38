package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"forecast/internal/core"
)

// RecalcMessage asks a worker to re-project one obligation over a window.
// An empty Kind means every active obligation.
type RecalcMessage struct {
	RunID        uuid.UUID  `json:"run_id"`
	Kind         string     `json:"kind,omitempty"`
	ObligationID int64      `json:"obligation_id,omitempty"`
	Start        core.Month `json:"start"`
	End          core.Month `json:"end"`
	Timestamp    time.Time  `json:"timestamp"`
}

var ErrMissingObligation = errors.New("obligation id is required when kind is set")

func NewRecalcMessage(kind core.ObligationKind, id int64, w core.Window) *RecalcMessage {
	return &RecalcMessage{
		RunID:        uuid.New(),
		Kind:         string(kind),
		ObligationID: id,
		Start:        w.Start,
		End:          w.End,
		Timestamp:    time.Now(),
	}
}

func (m *RecalcMessage) Window() core.Window {
	return core.Window{Start: m.Start, End: m.End}
}

// IsFullRecalc reports whether the message covers every obligation.
func (m *RecalcMessage) IsFullRecalc() bool {
	return m.Kind == ""
}

// Validate checks the kind, id and window before any work is scheduled.
func (m *RecalcMessage) Validate() error {
	if err := m.Window().Validate(); err != nil {
		return err
	}
	if m.IsFullRecalc() {
		return nil
	}
	if _, err := core.ParseKind(m.Kind); err != nil {
		return err
	}
	if m.ObligationID <= 0 {
		return core.NewValidationError("obligation_id", ErrMissingObligation)
	}
	return nil
}

func (m *RecalcMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecalcMessageFromJSON(data []byte) (*RecalcMessage, error) {
	var msg RecalcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
