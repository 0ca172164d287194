package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/audit"
	"github.com/jwalitptl/telemed-api/internal/store"
	"github.com/jwalitptl/telemed-api/pkg/messaging"
	"github.com/jwalitptl/telemed-api/pkg/metrics"
)

// Service is the availability ledger: per doctor, per date, per time-slot
// availability with a back-reference to the occupying consultation.
type Service struct {
	store   store.Directory
	broker  messaging.Broker
	auditor *audit.Service
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewService(dir store.Directory, broker messaging.Broker, auditor *audit.Service, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{store: dir, broker: broker, auditor: auditor, metrics: m, logger: logger}
}

func slotsPath(doctorID, date string) string {
	return store.Join("availability", doctorID, date, "slots")
}

func slotPath(doctorID, date, tm string) string {
	return store.Join("availability", doctorID, date, "slots", tm)
}

func datesPath(doctorID string) string {
	return store.Join("availability", doctorID, "dates")
}

// Publish replaces the slot map for (doctorID, date) with one open slot per
// time. The replace is whole-map: slots booked under a previous publish and
// absent from the new set are lost, back-reference included. That matches
// the upstream contract; see DESIGN.md before changing it.
func (s *Service) Publish(ctx context.Context, doctorID, date string, times []string) error {
	values := make(map[string]interface{}, len(times))
	for _, t := range times {
		values[t] = model.AvailabilitySlot{Available: true}
	}
	if err := s.store.SetAll(ctx, slotsPath(doctorID, date), values); err != nil {
		return err
	}
	// Date index so AllAvailability can enumerate published days.
	if err := s.store.Set(ctx, store.Join(datesPath(doctorID), date), map[string]int{"slots": len(times)}); err != nil {
		return err
	}
	s.metrics.SlotsPublished.Add(float64(len(times)))

	if err := s.broker.Publish(ctx, messaging.ChannelAvailabilityPublished, map[string]interface{}{
		"doctorId": doctorID,
		"date":     date,
		"slots":    times,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish availability event")
	}
	s.auditor.Log(ctx, doctorID, "publish", "availability", store.Join(doctorID, date), map[string]interface{}{
		"slots": len(times),
	})
	return nil
}

// IsAvailable reports whether an open slot exists at the key. A missing
// entry is simply not available; it is not an error.
func (s *Service) IsAvailable(ctx context.Context, doctorID, date, tm string) (bool, error) {
	var slot model.AvailabilitySlot
	err := s.store.Get(ctx, slotPath(doctorID, date, tm), &slot)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return slot.Available, nil
}

// Reserve flips the slot to unavailable and links it to consultationID.
// The write is conditional on the slot currently being open, so two
// concurrent reservations for one slot cannot both succeed. Safe to retry:
// a reservation already held by the same consultation reports success.
func (s *Service) Reserve(ctx context.Context, doctorID, date, tm, consultationID string) (bool, error) {
	open := model.AvailabilitySlot{Available: true}
	held := model.AvailabilitySlot{Available: false, ConsultationID: consultationID}

	ok, err := s.store.CompareAndSet(ctx, slotPath(doctorID, date, tm), open, held)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	var cur model.AvailabilitySlot
	if err := s.store.Get(ctx, slotPath(doctorID, date, tm), &cur); err == nil &&
		!cur.Available && cur.ConsultationID == consultationID {
		return true, nil
	}
	s.metrics.ReserveConflicts.Inc()
	return false, nil
}

// Release reopens a slot, dropping the consultation back-reference.
// Idempotent: releasing an already open slot is a no-op.
func (s *Service) Release(ctx context.Context, doctorID, date, tm string) error {
	return s.store.Set(ctx, slotPath(doctorID, date, tm), model.AvailabilitySlot{Available: true})
}

// RemoveSlot deletes the entry entirely. Distinct from Release: an absent
// slot cannot be booked.
func (s *Service) RemoveSlot(ctx context.Context, doctorID, date, tm string) error {
	return s.store.Delete(ctx, slotPath(doctorID, date, tm))
}

// DayAvailability returns the slot map for one date.
func (s *Service) DayAvailability(ctx context.Context, doctorID, date string) (map[string]model.AvailabilitySlot, error) {
	raw, err := s.store.GetAll(ctx, slotsPath(doctorID, date))
	if err != nil {
		return nil, err
	}
	return decodeSlots(raw)
}

// AllAvailability returns every published date's slot map for a doctor.
func (s *Service) AllAvailability(ctx context.Context, doctorID string) (map[string]map[string]model.AvailabilitySlot, error) {
	dates, err := s.store.GetAll(ctx, datesPath(doctorID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]model.AvailabilitySlot, len(dates))
	for date := range dates {
		day, err := s.DayAvailability(ctx, doctorID, date)
		if err != nil {
			return nil, err
		}
		out[date] = day
	}
	return out, nil
}

func decodeSlots(raw map[string]json.RawMessage) (map[string]model.AvailabilitySlot, error) {
	slots := make(map[string]model.AvailabilitySlot, len(raw))
	for tm, doc := range raw {
		var slot model.AvailabilitySlot
		if err := json.Unmarshal(doc, &slot); err != nil {
			return nil, fmt.Errorf("corrupt slot %s: %w", tm, err)
		}
		slots[tm] = slot
	}
	return slots, nil
}
