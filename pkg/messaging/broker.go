package messaging

import "context"

// Broker is the real-time event transport. Consumers (browser gateways,
// notification fan-out) subscribe to consultation and availability channels.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Event channels published by the API.
const (
	ChannelConsultationCreated       = "consultation.created"
	ChannelConsultationStatusChanged = "consultation.status_changed"
	ChannelAvailabilityPublished     = "availability.published"
)

// Noop is a Broker that discards everything. Used in tests and when
// eventing is disabled.
type Noop struct{}

func (Noop) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (Noop) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (Noop) Close() error { return nil }
