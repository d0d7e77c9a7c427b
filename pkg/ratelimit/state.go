// Package ratelimit limits how many cart commands a device may issue per
// window. Counters live in Redis so every proxy instance shares them.
package ratelimit

import (
	"time"
)

// Thresholds, as a share of the window limit.
const (
	// WarningShare marks a window as throttled once fewer than this share of
	// the limit remains.
	WarningShare = 0.2

	// HealthyShare marks a window as healthy while at least this share remains.
	HealthyShare = 0.5
)

// WindowState is the command budget of one device in the current window.
type WindowState struct {
	// Limit is the number of commands allowed per window.
	Limit int `json:"limit"`

	// Used counts commands issued in this window, including rejected ones.
	Used int `json:"used"`

	// ResetAt is when the window ends and the budget is restored.
	ResetAt time.Time `json:"reset_at"`

	// IsHealthy is true while at least HealthyShare of the limit remains.
	IsHealthy bool `json:"is_healthy"`
}

// Remaining returns the commands left in this window, never negative.
func (s *WindowState) Remaining() int {
	if r := s.Limit - s.Used; r > 0 {
		return r
	}
	return 0
}

// NeedsCriticalBlock returns true once the budget is exceeded.
func (s *WindowState) NeedsCriticalBlock() bool {
	return s.Used > s.Limit
}

// NeedsThrottling returns true when the budget is nearly spent.
func (s *WindowState) NeedsThrottling() bool {
	return float64(s.Remaining()) < float64(s.Limit)*WarningShare && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *WindowState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Used and Limit.
func (s *WindowState) UpdateHealth() {
	s.IsHealthy = float64(s.Remaining()) >= float64(s.Limit)*HealthyShare
}
