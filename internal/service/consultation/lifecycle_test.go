package consultation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/telemed-api/internal/model"
)

func TestAdvance(t *testing.T) {
	next, ok := Advance(model.StatusBooked)
	assert.True(t, ok)
	assert.Equal(t, model.StatusInProgress, next)

	next, ok = Advance(model.StatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, model.StatusCompleted, next)

	_, ok = Advance(model.StatusCompleted)
	assert.False(t, ok)

	_, ok = Advance(model.ConsultationStatus("Cancelled"))
	assert.False(t, ok)
}
