package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/telemed-api/internal/email"
	"github.com/jwalitptl/telemed-api/internal/fallback"
	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/audit"
	"github.com/jwalitptl/telemed-api/internal/service/availability"
	"github.com/jwalitptl/telemed-api/internal/service/user"
	"github.com/jwalitptl/telemed-api/internal/store"
	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
	"github.com/jwalitptl/telemed-api/pkg/messaging"
	"github.com/jwalitptl/telemed-api/pkg/metrics"
)

const consultationsPath = "consultations"

// Service is the booking orchestrator and lifecycle authority. All slot
// matching and status decisions happen here; clients only call it.
type Service struct {
	store   store.Directory
	users   *user.Service
	ledger  *availability.Service
	broker  messaging.Broker
	mailer  email.Service
	auditor *audit.Service
	spool   *fallback.Spool
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewService(
	dir store.Directory,
	users *user.Service,
	ledger *availability.Service,
	broker messaging.Broker,
	mailer email.Service,
	auditor *audit.Service,
	spool *fallback.Spool,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:   dir,
		users:   users,
		ledger:  ledger,
		broker:  broker,
		mailer:  mailer,
		auditor: auditor,
		spool:   spool,
		metrics: m,
		logger:  logger,
	}
}

// BookingResult carries the created consultation. Provisional marks a
// booking accepted on the fallback path: not yet authoritative, pending
// reconciliation.
type BookingResult struct {
	Consultation *model.Consultation
	Provisional  bool
}

// Book matches the request to an available doctor and reserves the slot.
// Candidates are tried in doctor-id ascending order; each reservation is a
// conditional write, so a slot can only ever be claimed once. If the
// consultation record cannot be written after a reservation, the slot is
// released again.
func (s *Service) Book(ctx context.Context, patient *model.Session, req *model.BookConsultationRequest) (*BookingResult, error) {
	id := uuid.NewString()

	doctors, err := s.users.ListDoctors(ctx)
	if err != nil {
		return s.bookFallback(ctx, patient, req, id, err)
	}

	for _, doctor := range doctors {
		reserved, err := s.ledger.Reserve(ctx, doctor.ID, req.ScheduledDate, req.ScheduledTime, id)
		if err != nil {
			return s.bookFallback(ctx, patient, req, id, err)
		}
		if !reserved {
			continue
		}

		now := time.Now().UTC()
		cons := &model.Consultation{
			ID:            id,
			PatientID:     patient.UserID,
			PatientName:   patient.Name,
			DoctorID:      doctor.ID,
			DoctorName:    doctor.Name,
			ScheduledDate: req.ScheduledDate,
			ScheduledTime: req.ScheduledTime,
			Reason:        req.Reason,
			Status:        model.StatusBooked,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := s.store.Set(ctx, store.Join(consultationsPath, id), cons); err != nil {
			if relErr := s.ledger.Release(ctx, doctor.ID, req.ScheduledDate, req.ScheduledTime); relErr != nil {
				s.logger.Error().Err(relErr).
					Str("doctor_id", doctor.ID).
					Str("date", req.ScheduledDate).
					Str("time", req.ScheduledTime).
					Msg("failed to release slot after consultation write failure")
			}
			s.metrics.BookingsTotal.WithLabelValues("error").Inc()
			return nil, apperrors.StoreUnavailable(err)
		}

		s.metrics.BookingsTotal.WithLabelValues("success").Inc()
		s.notify(ctx, messaging.ChannelConsultationCreated, cons, patient.Email)
		s.auditor.Log(ctx, patient.UserID, "book", "consultation", id, map[string]interface{}{
			"doctor_id": doctor.ID,
			"date":      req.ScheduledDate,
			"time":      req.ScheduledTime,
		})
		return &BookingResult{Consultation: cons}, nil
	}

	s.metrics.BookingsTotal.WithLabelValues("no_availability").Inc()
	return nil, apperrors.NoAvailability()
}

// bookFallback accepts a booking provisionally while the store is down.
// The consultation has no doctor yet; matching happens at reconcile time.
func (s *Service) bookFallback(ctx context.Context, patient *model.Session, req *model.BookConsultationRequest, id string, cause error) (*BookingResult, error) {
	if s.spool == nil || !errors.Is(cause, store.ErrUnavailable) {
		s.metrics.BookingsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.StoreUnavailable(cause)
	}

	now := time.Now().UTC()
	cons := &model.Consultation{
		ID:            id,
		PatientID:     patient.UserID,
		PatientName:   patient.Name,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		Reason:        req.Reason,
		Status:        model.StatusBooked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.spool.Enqueue(ctx, cons); err != nil {
		s.metrics.BookingsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.StoreUnavailable(cause)
	}

	s.metrics.BookingsTotal.WithLabelValues("fallback").Inc()
	s.metrics.FallbackSpooled.Inc()
	s.logger.Warn().Str("consultation_id", id).Msg("store unavailable, booking spooled for reconciliation")
	return &BookingResult{Consultation: cons, Provisional: true}, nil
}

// Replay runs a spooled booking through the normal reservation path.
// Idempotent by consultation id: a booking already present in the store is
// left untouched, so duplicate replays cannot double-book.
func (s *Service) Replay(ctx context.Context, cons *model.Consultation) error {
	var existing model.Consultation
	err := s.store.Get(ctx, store.Join(consultationsPath, cons.ID), &existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return apperrors.StoreUnavailable(err)
	}

	doctors, err := s.users.ListDoctors(ctx)
	if err != nil {
		return err
	}
	for _, doctor := range doctors {
		reserved, err := s.ledger.Reserve(ctx, doctor.ID, cons.ScheduledDate, cons.ScheduledTime, cons.ID)
		if err != nil {
			return apperrors.StoreUnavailable(err)
		}
		if !reserved {
			continue
		}

		cons.DoctorID = doctor.ID
		cons.DoctorName = doctor.Name
		cons.UpdatedAt = time.Now().UTC()
		if err := s.store.Set(ctx, store.Join(consultationsPath, cons.ID), cons); err != nil {
			if relErr := s.ledger.Release(ctx, doctor.ID, cons.ScheduledDate, cons.ScheduledTime); relErr != nil {
				s.logger.Error().Err(relErr).Str("consultation_id", cons.ID).
					Msg("failed to release slot after replay write failure")
			}
			return apperrors.StoreUnavailable(err)
		}

		s.notify(ctx, messaging.ChannelConsultationCreated, cons, "")
		s.auditor.Log(ctx, cons.PatientID, "reconcile", "consultation", cons.ID, map[string]interface{}{
			"doctor_id": doctor.ID,
		})
		return nil
	}
	return apperrors.NoAvailability()
}

func (s *Service) Get(ctx context.Context, id string) (*model.Consultation, error) {
	var cons model.Consultation
	err := s.store.Get(ctx, store.Join(consultationsPath, id), &cons)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("consultation")
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	cons.ID = id
	return &cons, nil
}

// ListForPatient returns the patient's consultations ordered by schedule.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]*model.Consultation, error) {
	return s.list(ctx, func(c *model.Consultation) bool { return c.PatientID == patientID })
}

// ListForDoctor returns the consultations assigned to a doctor.
func (s *Service) ListForDoctor(ctx context.Context, doctorID string) ([]*model.Consultation, error) {
	return s.list(ctx, func(c *model.Consultation) bool { return c.DoctorID == doctorID })
}

func (s *Service) list(ctx context.Context, keep func(*model.Consultation) bool) ([]*model.Consultation, error) {
	raw, err := s.store.GetAll(ctx, consultationsPath)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	out := make([]*model.Consultation, 0)
	for id, doc := range raw {
		var c model.Consultation
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("corrupt consultation %s: %w", id, err)
		}
		c.ID = id
		if keep(&c) {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate != out[j].ScheduledDate {
			return out[i].ScheduledDate < out[j].ScheduledDate
		}
		if out[i].ScheduledTime != out[j].ScheduledTime {
			return out[i].ScheduledTime < out[j].ScheduledTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus advances a consultation's lifecycle. Only the assigned
// doctor may call it; the requested status must be the exact next step.
// UpdatedAt is refreshed on every accepted transition.
func (s *Service) UpdateStatus(ctx context.Context, actor *model.Session, id, status string) (*model.Consultation, error) {
	st := model.ConsultationStatus(status)
	if !st.Valid() {
		return nil, apperrors.Validation(`status must be one of "Booked", "In Progress", "Completed"`)
	}
	if actor.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("only doctors can update consultation status")
	}

	cons, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cons.DoctorID != actor.UserID {
		return nil, apperrors.Forbidden("only the assigned doctor can update this consultation")
	}

	next, ok := Advance(cons.Status)
	if !ok {
		return nil, apperrors.Conflict("consultation is already completed")
	}
	if st != next {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot move consultation from %q to %q", cons.Status, st))
	}

	now := time.Now().UTC()
	err = s.store.Update(ctx, store.Join(consultationsPath, id), map[string]interface{}{
		"status":    st,
		"updatedAt": now,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	cons.Status = st
	cons.UpdatedAt = now
	s.metrics.StatusTransitions.WithLabelValues(string(st)).Inc()
	s.notifyStatus(ctx, cons)
	s.auditor.Log(ctx, actor.UserID, "status_change", "consultation", id, map[string]interface{}{
		"status": string(st),
	})
	return cons, nil
}

// notify publishes the created event and emails the patient. Both are
// best-effort; failures are logged and audited, never surfaced.
func (s *Service) notify(ctx context.Context, channel string, cons *model.Consultation, patientEmail string) {
	if err := s.broker.Publish(ctx, channel, cons); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish event")
	}
	if patientEmail == "" {
		return
	}
	if err := s.mailer.SendBookingConfirmation(ctx, patientEmail, cons); err != nil {
		s.auditor.Log(ctx, cons.PatientID, "notification_failed", "consultation", cons.ID, map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Service) notifyStatus(ctx context.Context, cons *model.Consultation) {
	if err := s.broker.Publish(ctx, messaging.ChannelConsultationStatusChanged, cons); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish status event")
	}
	patient, err := s.users.Get(ctx, cons.PatientID)
	if err != nil {
		return
	}
	if err := s.mailer.SendStatusUpdate(ctx, patient.Email, cons); err != nil {
		s.auditor.Log(ctx, cons.PatientID, "notification_failed", "consultation", cons.ID, map[string]interface{}{
			"error": err.Error(),
		})
	}
}
