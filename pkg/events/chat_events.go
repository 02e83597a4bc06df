package events

import "time"

// EventTurnRecorded is published after an exchange is appended to a session
const EventTurnRecorded = "chat.turn_recorded"

// NewTurnRecorded describes one finished exchange for analytics consumers.
// Message text is not included.
func NewTurnRecorded(sessionID, mode, language string, sources []string, confidence float64, at time.Time) BaseEvent {
	return BaseEvent{
		Type: EventTurnRecorded,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"mode":       mode,
			"language":   language,
			"sources":    sources,
			"confidence": confidence,
		},
		OccurredAt: at,
	}
}
