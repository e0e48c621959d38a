package ws

import "time"

const (
	strokeWindow = time.Second
	clearWindow  = 5 * time.Second
)

// windowCounter is a fixed window with lazy reset: the first hit after
// the window has elapsed restarts it. Monotonic and non-negative within
// a window.
type windowCounter struct {
	count       int
	windowStart time.Time
}

func (w *windowCounter) hit(now time.Time, window time.Duration, limit int) bool {
	if now.Sub(w.windowStart) >= window {
		w.windowStart = now
		w.count = 0
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// eventLimiter gates one connection's stroke and clear events. It is
// owned by the connection's reader goroutine and needs no lock.
type eventLimiter struct {
	stroke windowCounter
	clear  windowCounter

	strokeLimit int
	clearLimit  int
	now         func() time.Time
}

func newEventLimiter(strokeLimit, clearLimit int) *eventLimiter {
	return &eventLimiter{
		strokeLimit: strokeLimit,
		clearLimit:  clearLimit,
		now:         time.Now,
	}
}

func (l *eventLimiter) AllowStroke() bool {
	return l.stroke.hit(l.now(), strokeWindow, l.strokeLimit)
}

func (l *eventLimiter) AllowClear() bool {
	return l.clear.hit(l.now(), clearWindow, l.clearLimit)
}
