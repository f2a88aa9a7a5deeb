package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStub_AdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewStub(start)

	assert.Equal(t, start, s.Now())

	s.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), s.Now())

	later := time.Date(2025, 6, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	s.Set(later)
	assert.True(t, s.Now().Equal(later))
	assert.Equal(t, time.UTC, s.Now().Location())
}

func TestReal_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real{}.Now().Location())
}
