package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerEnforcesBudget(t *testing.T) {
	tracker := &GenerateRateTracker{attempts: make(map[string][]time.Time), limit: 3}
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, tracker.Allow("10.0.0.1", now))
	}
	assert.False(t, tracker.Allow("10.0.0.1", now))

	// A different client has its own budget.
	assert.True(t, tracker.Allow("10.0.0.2", now))
}

func TestTrackerWindowSlides(t *testing.T) {
	tracker := &GenerateRateTracker{attempts: make(map[string][]time.Time), limit: 2}
	now := time.Now()

	assert.True(t, tracker.Allow("10.0.0.1", now))
	assert.True(t, tracker.Allow("10.0.0.1", now))
	assert.False(t, tracker.Allow("10.0.0.1", now))

	later := now.Add(rateWindow + time.Minute)
	assert.True(t, tracker.Allow("10.0.0.1", later))
}

func TestDropStaleForgetsIdleClients(t *testing.T) {
	tracker := &GenerateRateTracker{attempts: make(map[string][]time.Time), limit: 2}
	now := time.Now()

	tracker.Allow("10.0.0.1", now.Add(-2*rateWindow))
	tracker.Allow("10.0.0.2", now)
	tracker.dropStale(now)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	assert.NotContains(t, tracker.attempts, "10.0.0.1")
	assert.Contains(t, tracker.attempts, "10.0.0.2")
}
