package presets

import (
	"time"

	"github.com/dougsko/microfm/pkg/display"
	"github.com/dougsko/microfm/pkg/tuner"
)

// Keys are the button edges seen by the memory manager in one step. The
// physical buttons are shared with the outer controller: seek up/down move
// the station, volume up stores and volume down recalls.
type Keys struct {
	Next   bool
	Prev   bool
	Store  bool
	Recall bool
	Cancel bool
}

// Exit says why a session finished.
type Exit int

const (
	ExitNone Exit = iota
	ExitStored
	ExitRecalled
	ExitCancelled
	ExitTimeout
)

func (e Exit) String() string {
	switch e {
	case ExitStored:
		return "stored"
	case ExitRecalled:
		return "recalled"
	case ExitCancelled:
		return "cancelled"
	case ExitTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Outcome is the result of a finished session.
type Outcome struct {
	Exit    Exit
	Station int
	// Channel is the recalled channel when Exit is ExitRecalled, else the
	// channel the session was opened with.
	Channel tuner.Channel
}

// Recalled reports whether the caller should tune to Channel.
func (o Outcome) Recalled() bool { return o.Exit == ExitRecalled }

// SessionConfig tunes the session's timing.
type SessionConfig struct {
	IdleTicks   int
	RecallDelay time.Duration
	CancelDelay time.Duration
	Sleep       func(time.Duration)
}

// DefaultSessionConfig returns the stock timing: 2000 idle ticks, 100 ms
// pause after a recall, 60 ms after a cancel.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		IdleTicks:   2000,
		RecallDelay: 100 * time.Millisecond,
		CancelDelay: 60 * time.Millisecond,
		Sleep:       time.Sleep,
	}
}

// Session is one visit to the memory manager. The owner calls Step once per
// tick until it reports done.
type Session struct {
	store   *Store
	cfg     SessionConfig
	station int
	channel tuner.Channel
	idle    int
	done    bool
	outcome Outcome
}

// NewSession opens the memory manager at station for the currently tuned
// channel. Stations outside 1..10 start at 1.
func NewSession(store *Store, station int, channel tuner.Channel, cfg SessionConfig) *Session {
	if station < MinSlot || station > MaxSlot {
		station = MinSlot
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Session{
		store:   store,
		cfg:     cfg,
		station: station,
		channel: channel,
	}
}

// Station is the station number currently selected.
func (s *Session) Station() int { return s.station }

// Display is what the panel shows while the session is open.
func (s *Session) Display() display.Buffer { return display.Station(s.station) }

// Done reports whether the session has finished.
func (s *Session) Done() bool { return s.done }

// Step applies one tick of edges. It returns the outcome and true once the
// session finishes; the error is from storage and also finishes the session.
func (s *Session) Step(k Keys) (Outcome, bool, error) {
	if s.done {
		return s.outcome, true, nil
	}

	if k.Next {
		s.station++
		if s.station > MaxSlot {
			s.station = MinSlot
		}
		s.idle = 0
	}
	if k.Prev {
		s.station--
		if s.station < MinSlot {
			s.station = MaxSlot
		}
		s.idle = 0
	}

	switch {
	case k.Store:
		if err := s.store.Store(s.station, s.channel); err != nil {
			return s.finish(ExitCancelled, s.channel), true, err
		}
		return s.finish(ExitStored, s.channel), true, nil
	case k.Recall:
		ch, err := s.store.Recall(s.station)
		if err != nil {
			return s.finish(ExitCancelled, s.channel), true, err
		}
		s.cfg.Sleep(s.cfg.RecallDelay)
		return s.finish(ExitRecalled, ch), true, nil
	case k.Cancel:
		s.cfg.Sleep(s.cfg.CancelDelay)
		return s.finish(ExitCancelled, s.channel), true, nil
	}

	s.idle++
	if s.idle > s.cfg.IdleTicks {
		return s.finish(ExitTimeout, s.channel), true, nil
	}
	return Outcome{}, false, nil
}

func (s *Session) finish(exit Exit, ch tuner.Channel) Outcome {
	s.done = true
	s.outcome = Outcome{Exit: exit, Station: s.station, Channel: ch}
	return s.outcome
}
