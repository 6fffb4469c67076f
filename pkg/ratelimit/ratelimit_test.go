package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withFixedTime(t *testing.T, at time.Time) {
	t.Helper()

	original := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = original })
}

func TestAllowCeiling(t *testing.T) {
	withFixedTime(t, time.Unix(1700000000, 0))

	l := NewPollLimiter(3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("feeder-001"), "call %d should be allowed", i+1)
	}

	assert.False(t, l.Allow("feeder-001"), "call over the ceiling must be denied")
}

func TestAllowResetsNextMinute(t *testing.T) {
	base := time.Unix(1700000000, 0).Truncate(time.Minute)
	withFixedTime(t, base)

	l := NewPollLimiter(1)
	assert.True(t, l.Allow("feeder-001"))
	assert.False(t, l.Allow("feeder-001"))

	nowFunc = func() time.Time { return base.Add(time.Minute) }
	assert.True(t, l.Allow("feeder-001"), "new calendar minute resets the counter")
}

func TestAllowIsPerKey(t *testing.T) {
	withFixedTime(t, time.Unix(1700000000, 0))

	l := NewPollLimiter(1)
	assert.True(t, l.Allow("feeder-001"))
	assert.True(t, l.Allow("feeder-002"), "keys count independently")
	assert.False(t, l.Allow("feeder-001"))
}

func TestAllowConcurrentNoLostIncrements(t *testing.T) {
	withFixedTime(t, time.Unix(1700000000, 0))

	const (
		limit = 50
		calls = 200
	)

	l := NewPollLimiter(limit)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	for i := 0; i < calls; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if l.Allow("feeder-001") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, limit, allowed, "exactly the ceiling may pass within one minute")
}

func TestAllowSweepsStaleCounters(t *testing.T) {
	base := time.Unix(1700000000, 0).Truncate(time.Minute)
	withFixedTime(t, base)

	l := NewPollLimiter(10)
	l.Allow("feeder-001")
	l.Allow("feeder-002")

	// Devices that stop polling must not leak counters: the first call of
	// a new minute sweeps every entry from past minutes.
	nowFunc = func() time.Time { return base.Add(2 * time.Minute) }
	l.Allow("feeder-003")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.state, 1)
	assert.Contains(t, l.state, "feeder-003")
}
