package limiter

import (
	"runtime"
	"sync"
	"time"
)

// workSlice is how long a caller may run between throttling pauses
const workSlice = 10 * time.Millisecond

// CPULimiter throttles CPU usage to a maximum percentage. It is shared by all
// walk workers, so a parallel walk is throttled as a whole.
type CPULimiter struct {
	mu         sync.Mutex
	maxPercent float64
	lastSleep  time.Time
	sleep      func(time.Duration)
}

// NewCPULimiter creates a new CPU limiter
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastSleep:  time.Now(),
		sleep:      time.Sleep,
	}
}

// Throttle is called once per deleted entry. After each work slice it pauses
// long enough that the slice makes up maxPercent of wall time.
func (l *CPULimiter) Throttle() {
	pause := l.pauseFor(time.Now())
	if pause > 0 {
		l.sleep(pause)
	}
	runtime.Gosched()
}

func (l *CPULimiter) pauseFor(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxPercent <= 0 || l.maxPercent >= 100 {
		return 0
	}
	if now.Sub(l.lastSleep) <= workSlice {
		return 0
	}

	pause := time.Duration(float64(workSlice) * ((100.0 - l.maxPercent) / l.maxPercent))
	l.lastSleep = now.Add(pause)
	return pause
}

// SetMaxPercent updates the maximum CPU percentage
func (l *CPULimiter) SetMaxPercent(maxPercent float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxPercent = maxPercent
}
