package circuit

import (
	"errors"
	"sync"
	"time"
)

type Status uint8

const (
	Normal Status = iota
	Halted
	PreOpen
	Closed
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Halted:
		return "HALTED"
	case PreOpen:
		return "PRE_OPEN"
	case Closed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

type Level uint8

const (
	None Level = iota
	L1
	L2
	L3
)

func (l Level) String() string {
	switch l {
	case None:
		return "NONE"
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	}
	return "UNKNOWN"
}

var (
	// ErrMarketHalted rejects admission while trading is halted or the
	// session is closed.
	ErrMarketHalted = errors.New("market halted by circuit breaker")
	// ErrPreOpenAuction rejects admission during the pre-open window
	// that follows a halt.
	ErrPreOpenAuction = errors.New("pre-open auction in progress")
)

// preOpenWindow follows every expired halt before trading resumes.
const preOpenWindow = 15 * time.Minute

// Config fixes the breaker's reference index value and the session
// open wall-clock used by the halt-duration table.
type Config struct {
	Reference  float64
	OpenHour   int
	OpenMinute int
}

// Breaker is the market-wide circuit breaker: a state machine driven
// by explicit index updates. It owns no timers; time only advances
// through the now argument of Update.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	current   float64
	level     Level
	status    Status
	haltStart time.Time
	haltEnd   time.Time
}

func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, current: cfg.Reference}
}

// Update feeds a new index value at time now and returns true iff a
// halt (or session close) is newly triggered by this update.
func (b *Breaker) Update(value float64, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = value

	switch b.status {
	case Normal:
		pct := (value - b.cfg.Reference) / b.cfg.Reference * 100.0
		switch {
		case pct <= -20.0:
			return b.trigger(L3, now)
		case pct <= -15.0:
			return b.trigger(L2, now)
		case pct <= -10.0:
			return b.trigger(L1, now)
		}
	case Halted:
		if !now.Before(b.haltEnd) {
			b.status = PreOpen
			b.haltEnd = now.Add(preOpenWindow)
		}
	case PreOpen:
		if !now.Before(b.haltEnd) {
			b.status = Normal
			b.level = None
		}
	case Closed:
		// Terminal for the session.
	}
	return false
}

// trigger applies the halt-duration table. Durations depend on how
// deep into the session the trigger lands; a late L1 produces no halt
// at all, and deep-session L2 closes for the day like any L3.
func (b *Breaker) trigger(level Level, now time.Time) bool {
	sinceOpen := (now.Hour()-b.cfg.OpenHour)*60 + now.Minute() - b.cfg.OpenMinute

	switch level {
	case L1:
		switch {
		case sinceOpen < 240:
			b.halt(level, now, 45*time.Minute)
		case sinceOpen < 330:
			b.halt(level, now, 15*time.Minute)
		default:
			return false
		}
	case L2:
		switch {
		case sinceOpen < 240:
			b.halt(level, now, 105*time.Minute)
		case sinceOpen < 300:
			b.halt(level, now, 45*time.Minute)
		default:
			b.close(level, now)
		}
	case L3:
		b.close(level, now)
	}
	return true
}

func (b *Breaker) halt(level Level, now time.Time, d time.Duration) {
	b.level = level
	b.status = Halted
	b.haltStart = now
	b.haltEnd = now.Add(d)
}

func (b *Breaker) close(level Level, now time.Time) {
	b.level = level
	b.status = Closed
	b.haltStart = now
	b.haltEnd = time.Time{}
}

// Admit reports whether new orders may enter the book right now.
func (b *Breaker) Admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.status {
	case Normal:
		return nil
	case PreOpen:
		return ErrPreOpenAuction
	default:
		return ErrMarketHalted
	}
}

func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Breaker) TripLevel() Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

// HaltEnd returns when the current halt or pre-open window expires.
// Zero while trading normally or once closed for the session.
func (b *Breaker) HaltEnd() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == Halted || b.status == PreOpen {
		return b.haltEnd
	}
	return time.Time{}
}

func (b *Breaker) Reference() float64 { return b.cfg.Reference }

func (b *Breaker) Current() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
