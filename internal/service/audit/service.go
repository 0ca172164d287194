package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/telemed-api/internal/store"
)

const auditPath = "audit"

// Entry is an append-only audit record under the "audit" tree.
type Entry struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actorId"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resourceId"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

type Service struct {
	store  store.Directory
	logger zerolog.Logger
}

func NewService(dir store.Directory, logger zerolog.Logger) *Service {
	return &Service{store: dir, logger: logger}
}

// Log records an audit entry. Best-effort: a failed audit write is logged
// and never fails the calling operation.
func (s *Service) Log(ctx context.Context, actorID, action, resource, resourceID string, metadata map[string]interface{}) {
	entry := Entry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Set(ctx, store.Join(auditPath, entry.ID), entry); err != nil {
		s.logger.Warn().Err(err).
			Str("action", action).
			Str("resource", resource).
			Str("resource_id", resourceID).
			Msg("failed to write audit entry")
	}
}
