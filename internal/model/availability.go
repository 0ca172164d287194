package model

// AvailabilitySlot lives at availability/{doctorId}/{date}/slots/{time}.
// Invariant: ConsultationID is set iff Available is false.
type AvailabilitySlot struct {
	Available      bool   `json:"available"`
	ConsultationID string `json:"consultationId,omitempty"`
}

type PublishAvailabilityRequest struct {
	Date  string   `json:"date" binding:"required,datetime=2006-01-02"`
	Slots []string `json:"slots" binding:"required,min=1,dive,datetime=15:04"`
}

type SlotRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
	Time string `json:"time" binding:"required,datetime=15:04"`
}
