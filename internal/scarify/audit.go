package scarify

import "time"

const (
	ActionAdd           = "ADD"
	ActionRemove        = "REMOVE"
	ActionSetOverride   = "SET_DISTANCE_OVERRIDE"
	ActionResetOverride = "RESET_DISTANCE_OVERRIDE"
)

// AuditEntry records one successful mutation of the registry.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Player string    `json:"player"`
	Value  string    `json:"value,omitempty"`
}

type AuditSink interface {
	WriteAudit(AuditEntry) error
}

// AuditSinks fans an entry out to every sink and returns the first error.
type AuditSinks []AuditSink

func (s AuditSinks) WriteAudit(e AuditEntry) error {
	var first error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.WriteAudit(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
