// Package cron implements C1: parsing a cron expression (5/6-field or
// nickname) and computing the next/previous fire instant for a given moment
// in a given timezone.
package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowcraft/corepipe/engine/core"
)

const backwardSearchCap = 20 * 365 * 24 * time.Hour

// Spec is an immutable, parsed cron expression bound to a timezone.
// Construct with ParseSpec; the zero value is not usable.
type Spec struct {
	Expression  string
	WithSeconds bool
	Location    *time.Location

	schedule cron.Schedule
}

func fieldMask(withSeconds bool) cron.ParseOption {
	if withSeconds {
		return cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor
	}
	return cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor
}

// ParseSpec parses expression under the given field arity and timezone.
// Returns *core.Error with code INVALID_CRON_EXPRESSION on failure.
func ParseSpec(expression string, withSeconds bool, timezone string) (*Spec, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, core.NewError(fmt.Errorf("cron expression must not be empty"), "INVALID_CRON_EXPRESSION", nil)
	}
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, core.NewError(
				fmt.Errorf("invalid timezone %q: %w", timezone, err),
				"INVALID_CRON_EXPRESSION",
				map[string]any{"timezone": timezone},
			)
		}
		loc = l
	}
	parser := cron.NewParser(fieldMask(withSeconds))
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, core.NewError(
			fmt.Errorf("invalid cron expression %q: %w", expression, err),
			"INVALID_CRON_EXPRESSION",
			map[string]any{"expression": expression},
		)
	}
	return &Spec{
		Expression:  expression,
		WithSeconds: withSeconds,
		Location:    loc,
		schedule:    schedule,
	}, nil
}

// NextAfter returns the smallest fire instant strictly greater than instant,
// projected into the spec's timezone. The second return is false if no such
// instant can be found (practically unreachable for valid specs).
func (s *Spec) NextAfter(instant time.Time) (time.Time, bool) {
	t := instant.In(s.Location)
	next := s.schedule.Next(t)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.Truncate(time.Second), true
}

// LastBefore returns the largest fire instant strictly less than instant,
// projected into the spec's timezone. Because robfig/cron only exposes a
// forward Next, this walks backward via a galloping search: double the
// look-back window until an anchor is found whose next fire lands before
// instant, then walk forward from that anchor to the last fire still before
// instant. Bounded to a 20-year look-back.
func (s *Spec) LastBefore(instant time.Time) (time.Time, bool) {
	t := instant.In(s.Location)
	step := time.Minute
	if s.WithSeconds {
		step = time.Second
	}
	for step <= backwardSearchCap {
		anchor := t.Add(-step)
		next := s.schedule.Next(anchor)
		if !next.IsZero() && next.Before(t) {
			return s.walkForwardToLastBefore(next, t), true
		}
		step *= 2
	}
	return time.Time{}, false
}

func (s *Spec) walkForwardToLastBefore(from, before time.Time) time.Time {
	prev := from
	for {
		next := s.schedule.Next(prev)
		if next.IsZero() || !next.Before(before) {
			return prev.Truncate(time.Second)
		}
		prev = next
	}
}
