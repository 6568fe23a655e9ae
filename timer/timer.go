// Package timer runs work once a day at a fixed wall clock hour.
package timer

import (
	"context"
	"log/slog"
	"time"
)

// immediateThreshold is how long the first wait may be before a run at
// startup is wanted.
const immediateThreshold = 4 * time.Hour

// Daily fires once a day at Hour o'clock in Location.
type Daily struct {
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time // Defaults to time.Now
	Hour     int
}

// Next returns the start of Hour tomorrow, relative to now in the timer's location.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.Location)
	y, m, day := local.Date()
	return time.Date(y, m, day+1, d.Hour, 0, 0, 0, d.Location)
}

// ImmediateRunWanted reports whether the wait for the first run is long
// enough that work should also run right away.
func (d *Daily) ImmediateRunWanted(now time.Time) bool {
	return d.Next(now).Sub(now) > immediateThreshold
}

// Run calls fn at every firing until ctx is done. Errors from fn are logged
// and do not stop the loop.
func (d *Daily) Run(ctx context.Context, fn func(context.Context) error) error {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	for {
		current := now()
		next := d.Next(current)
		delay := next.Sub(current)
		d.Logger.Info("Waiting for next run", "next", next.Format(time.RFC3339), "delay", delay.Round(time.Second))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		d.Logger.Info("Finished waiting")
		if err := fn(ctx); err != nil {
			d.Logger.Error("Scheduled run failed", "error", err)
		}
	}
}
