// Package schedule parses cron expressions and computes fire times.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidCron = errors.New("invalid cron expression")

// parser accepts five fields, six fields with a leading seconds field, and
// descriptors such as @daily. "?" is a wildcard for day-of-month and day-of-week.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that expr parses as a cron expression.
func Validate(expr string) error {
	if expr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCron)
	}

	_, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidCron, expr, err)
	}

	return nil
}

// Location loads a timezone, falling back to UTC when it is empty or unknown.
func Location(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// Next returns the first fire time strictly after from, evaluated in timezone, as UTC.
func Next(expr, timezone string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", ErrInvalidCron, expr, err)
	}

	return sched.Next(from.In(Location(timezone))).UTC(), nil
}

// IsDue reports whether a schedule whose last run was at last has a fire time at or before now.
func IsDue(expr, timezone string, last, now time.Time) (bool, error) {
	next, err := Next(expr, timezone, last)
	if err != nil {
		return false, err
	}

	return !next.After(now), nil
}
