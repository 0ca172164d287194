// Package fallback implements the degraded write path: bookings accepted
// while the authoritative store is unreachable are spooled locally and
// replayed by a reconciler once the store recovers. Spooled bookings are
// always flagged as provisional to the caller and deduplicated by
// consultation id on replay; nothing is dropped silently.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/store"
)

const spoolPath = "fallback/bookings"

// Spool holds provisional bookings. The backing Directory is either the
// in-process memory store (single API instance, in-process reconciler) or
// a secondary store drained by the worker binary.
type Spool struct {
	local store.Directory
}

func NewSpool(local store.Directory) *Spool {
	return &Spool{local: local}
}

func (s *Spool) Enqueue(ctx context.Context, c *model.Consultation) error {
	return s.local.Set(ctx, store.Join(spoolPath, c.ID), c)
}

func (s *Spool) Pending(ctx context.Context) ([]*model.Consultation, error) {
	raw, err := s.local.GetAll(ctx, spoolPath)
	if err != nil {
		return nil, err
	}
	pending := make([]*model.Consultation, 0, len(raw))
	for id, doc := range raw {
		var c model.Consultation
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("corrupt spooled booking %s: %w", id, err)
		}
		pending = append(pending, &c)
	}
	return pending, nil
}

func (s *Spool) Remove(ctx context.Context, id string) error {
	return s.local.Delete(ctx, store.Join(spoolPath, id))
}
