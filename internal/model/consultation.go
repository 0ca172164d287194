package model

import "time"

type ConsultationStatus string

// The lifecycle is strictly linear: Booked -> In Progress -> Completed.
const (
	StatusBooked     ConsultationStatus = "Booked"
	StatusInProgress ConsultationStatus = "In Progress"
	StatusCompleted  ConsultationStatus = "Completed"
)

func (s ConsultationStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Consultation lives under the "consultations" tree, keyed by ID. Created
// only by the booking orchestrator; after creation the only mutable fields
// are Status and UpdatedAt.
type Consultation struct {
	ID            string             `json:"id"`
	PatientID     string             `json:"patientId"`
	PatientName   string             `json:"patientName"`
	DoctorID      string             `json:"doctorId"`
	DoctorName    string             `json:"doctorName"`
	ScheduledDate string             `json:"scheduledDate"`
	ScheduledTime string             `json:"scheduledTime"`
	Reason        string             `json:"reason"`
	Status        ConsultationStatus `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

type BookConsultationRequest struct {
	ScheduledDate string `json:"scheduledDate" binding:"required,datetime=2006-01-02"`
	ScheduledTime string `json:"scheduledTime" binding:"required,datetime=15:04"`
	Reason        string `json:"reason" binding:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
