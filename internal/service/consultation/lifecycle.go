package consultation

import "github.com/jwalitptl/telemed-api/internal/model"

// Advance returns the status following s in the fixed lifecycle
// Booked -> In Progress -> Completed. Completed is terminal: ok is false
// and there is no next status.
func Advance(s model.ConsultationStatus) (model.ConsultationStatus, bool) {
	switch s {
	case model.StatusBooked:
		return model.StatusInProgress, true
	case model.StatusInProgress:
		return model.StatusCompleted, true
	default:
		return "", false
	}
}
