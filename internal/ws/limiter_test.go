package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(strokeLimit, clearLimit int) (*eventLimiter, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	l := newEventLimiter(strokeLimit, clearLimit)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestStrokeWindowExactThreshold(t *testing.T) {
	l, _ := newTestLimiter(60, 5)

	for i := 0; i < 60; i++ {
		assert.True(t, l.AllowStroke(), "event %d within threshold", i)
	}
	// threshold + k: exactly k dropped, none earlier.
	for k := 0; k < 7; k++ {
		assert.False(t, l.AllowStroke())
	}
}

func TestStrokeWindowLazyReset(t *testing.T) {
	l, now := newTestLimiter(2, 5)

	assert.True(t, l.AllowStroke())
	assert.True(t, l.AllowStroke())
	assert.False(t, l.AllowStroke())

	// First event after the window elapses restarts the counter.
	*now = now.Add(strokeWindow)
	assert.True(t, l.AllowStroke())
	assert.True(t, l.AllowStroke())
	assert.False(t, l.AllowStroke())
}

func TestStrokeWithinWindowDoesNotReset(t *testing.T) {
	l, now := newTestLimiter(2, 5)

	assert.True(t, l.AllowStroke())
	*now = now.Add(strokeWindow / 2)
	assert.True(t, l.AllowStroke())
	assert.False(t, l.AllowStroke(), "half a window in, counter still counts")
}

func TestClearWindowIndependentOfStroke(t *testing.T) {
	l, _ := newTestLimiter(1, 2)

	assert.True(t, l.AllowStroke())
	assert.False(t, l.AllowStroke())

	// Stroke exhaustion leaves the clear budget untouched.
	assert.True(t, l.AllowClear())
	assert.True(t, l.AllowClear())
	assert.False(t, l.AllowClear())
}

func TestClearWindowIsFiveSeconds(t *testing.T) {
	l, now := newTestLimiter(60, 1)

	assert.True(t, l.AllowClear())
	*now = now.Add(strokeWindow) // one second is not enough
	assert.False(t, l.AllowClear())
	*now = now.Add(clearWindow)
	assert.True(t, l.AllowClear())
}
