package tracking

import (
	"context"
	"errors"
	"sync"

	"github.com/jengzang/walkaround-go/internal/models"
)

// ErrSourceUnavailable is returned by a source that has no capability on this host
var ErrSourceUnavailable = errors.New("source unavailable")

// LocationSource delivers location fixes until ctx is done
type LocationSource interface {
	Locations(ctx context.Context) (<-chan models.Fix, error)
}

// StepMode describes the semantics of a step source's values
type StepMode int

const (
	// StepModeUnavailable means the host has no step sensor
	StepModeUnavailable StepMode = iota
	// StepModeCounter delivers a cumulative count since boot
	StepModeCounter
	// StepModeDetector delivers one event with value 1 per step
	StepModeDetector
)

// String returns the mode name
func (m StepMode) String() string {
	switch m {
	case StepModeCounter:
		return "COUNTER"
	case StepModeDetector:
		return "DETECTOR"
	default:
		return "UNAVAILABLE"
	}
}

// ParseStepMode parses a mode name. Unknown names map to StepModeUnavailable.
func ParseStepMode(s string) StepMode {
	switch s {
	case "COUNTER", "counter":
		return StepModeCounter
	case "DETECTOR", "detector":
		return StepModeDetector
	default:
		return StepModeUnavailable
	}
}

// StepEvent is one reading from a step source
type StepEvent struct {
	Value float64 `json:"value"`
	Time  int64   `json:"time,omitempty"` // Unix milliseconds
}

// StepSource delivers step readings until ctx is done
type StepSource interface {
	Mode() StepMode
	Steps(ctx context.Context) (<-chan StepEvent, error)
}

// PushLocationSource is a LocationSource fed by the host through Push
type PushLocationSource struct {
	mu  sync.Mutex
	out chan models.Fix
}

// NewPushLocationSource creates a source buffering up to size fixes
func NewPushLocationSource(size int) *PushLocationSource {
	return &PushLocationSource{out: make(chan models.Fix, size)}
}

// Locations implements LocationSource. Fixes left over from an earlier
// subscription are discarded.
func (s *PushLocationSource) Locations(ctx context.Context) (<-chan models.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case <-s.out:
		default:
			return s.out, nil
		}
	}
}

// Push enqueues a fix. Returns false when the buffer is full.
func (s *PushLocationSource) Push(fix models.Fix) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.out <- fix:
		return true
	default:
		return false
	}
}

// PushStepSource is a StepSource fed by the host through Push
type PushStepSource struct {
	mode StepMode

	mu  sync.Mutex
	out chan StepEvent
}

// NewPushStepSource creates a step source of the given mode buffering up to size events
func NewPushStepSource(mode StepMode, size int) *PushStepSource {
	return &PushStepSource{mode: mode, out: make(chan StepEvent, size)}
}

// Mode implements StepSource
func (s *PushStepSource) Mode() StepMode {
	return s.mode
}

// Steps implements StepSource
func (s *PushStepSource) Steps(ctx context.Context) (<-chan StepEvent, error) {
	if s.mode == StepModeUnavailable {
		return nil, ErrSourceUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case <-s.out:
		default:
			return s.out, nil
		}
	}
}

// Push enqueues a reading. Returns false when the buffer is full or the
// source is unavailable.
func (s *PushStepSource) Push(ev StepEvent) bool {
	if s.mode == StepModeUnavailable {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.out <- ev:
		return true
	default:
		return false
	}
}
