package service

import (
	"context"
	"errors"

	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/timeutil"
	"github.com/jengzang/walkaround-go/internal/tracking"
)

var (
	// ErrNotRecording is returned when input arrives while no session runs
	ErrNotRecording = errors.New("no session is recording")
	// ErrNoFix is returned when no accurate location has been observed yet
	ErrNoFix = errors.New("no accurate location available")
	// ErrNoAddress is returned when the current location could not be resolved
	ErrNoAddress = errors.New("address not available")
)

// PushResult reports how many pushed events were queued
type PushResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// SessionService exposes the tracker and feeds its push sources
type SessionService struct {
	tracker   *tracking.Tracker
	locations *tracking.PushLocationSource
	steps     *tracking.PushStepSource
	resolver  Resolver
	clock     timeutil.Clock
}

// NewSessionService creates a new session service. steps may be nil.
func NewSessionService(tracker *tracking.Tracker, locations *tracking.PushLocationSource, steps *tracking.PushStepSource, resolver Resolver, clock timeutil.Clock) *SessionService {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SessionService{
		tracker:   tracker,
		locations: locations,
		steps:     steps,
		resolver:  resolver,
		clock:     clock,
	}
}

// Start begins a recording session
func (s *SessionService) Start(ctx context.Context) (tracking.Status, error) {
	return s.tracker.Start(ctx)
}

// Stop ends the recording session. Stopping while idle returns a nil summary.
func (s *SessionService) Stop(ctx context.Context) (*tracking.Summary, error) {
	return s.tracker.Stop(ctx)
}

// Status returns the tracker snapshot
func (s *SessionService) Status() tracking.Status {
	return s.tracker.Status()
}

func (s *SessionService) recording() bool {
	return s.tracker.Status().State == tracking.StateRecording
}

// PushLocations queues fixes for the running session. Fixes without a
// timestamp are stamped with the current time.
func (s *SessionService) PushLocations(fixes []models.Fix) (*PushResult, error) {
	if !s.recording() {
		return nil, ErrNotRecording
	}

	result := &PushResult{}
	for _, fix := range fixes {
		if fix.Time == 0 {
			fix.Time = s.clock.Now().UnixMilli()
		}
		if s.locations.Push(fix) {
			result.Accepted++
		} else {
			result.Dropped++
		}
	}
	return result, nil
}

// PushSteps queues step readings for the running session
func (s *SessionService) PushSteps(events []tracking.StepEvent) (*PushResult, error) {
	if s.steps == nil || s.steps.Mode() == tracking.StepModeUnavailable {
		return nil, tracking.ErrSourceUnavailable
	}
	if !s.recording() {
		return nil, ErrNotRecording
	}

	result := &PushResult{}
	for _, ev := range events {
		if ev.Time == 0 {
			ev.Time = s.clock.Now().UnixMilli()
		}
		if s.steps.Push(ev) {
			result.Accepted++
		} else {
			result.Dropped++
		}
	}
	return result, nil
}

// CurrentAddress resolves the last accurate location of the running session
func (s *SessionService) CurrentAddress(ctx context.Context) (*models.AddressRecord, error) {
	obs, ok := s.tracker.LastAccurate()
	if !ok {
		return nil, ErrNoFix
	}

	addr := s.resolver.ResolveLocalized(ctx, obs.Location.Latitude, obs.Location.Longitude)
	if addr == nil {
		return nil, ErrNoAddress
	}

	rec := models.NewAddressRecord(addr, s.clock.Now().UnixMilli(), nil, obs.TrackID, obs.Location.Latitude, obs.Location.Longitude)
	return &rec, nil
}
