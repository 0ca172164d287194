package email

import (
	"context"

	"github.com/jwalitptl/telemed-api/internal/model"
)

type Service interface {
	SendBookingConfirmation(ctx context.Context, to string, c *model.Consultation) error
	SendStatusUpdate(ctx context.Context, to string, c *model.Consultation) error
}

// Noop returns a Service that sends nothing. Used in tests and when SMTP
// is not configured.
func Noop() Service { return noop{} }

type noop struct{}

func (noop) SendBookingConfirmation(ctx context.Context, to string, c *model.Consultation) error {
	return nil
}

func (noop) SendStatusUpdate(ctx context.Context, to string, c *model.Consultation) error {
	return nil
}
