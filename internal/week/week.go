// Package week derives league week identifiers from wall-clock time.
//
// A week starts at a fixed weekday and hour in a fixed time zone. Its
// identifier is the local start date formatted as 2006-01-02, so identifiers
// sort chronologically as strings.
package week

import (
	"errors"
	"fmt"
	"time"

	"league-engine/internal/config"
)

const idLayout = "2006-01-02"

var ErrInvalidWeekID = errors.New("invalid week id")

type Clock struct {
	loc       *time.Location
	startDay  time.Weekday
	startHour int
	now       func() time.Time
}

func NewClock(loc *time.Location, startDay time.Weekday, startHour int, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, startDay: startDay, startHour: startHour, now: now}
}

func NewFromConfig(cfg *config.Config) *Clock {
	return NewClock(cfg.Location(), cfg.WeekStartDay, cfg.WeekStartHour, nil)
}

// Start returns the boundary instant that opens the week containing t.
func (c *Clock) Start(t time.Time) time.Time {
	local := t.In(c.loc)
	offset := (int(local.Weekday()) - int(c.startDay) + 7) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-offset, c.startHour, 0, 0, 0, c.loc)
	if start.After(local) {
		start = time.Date(local.Year(), local.Month(), local.Day()-offset-7, c.startHour, 0, 0, 0, c.loc)
	}
	return start
}

// NextBoundary returns the instant the week containing t closes.
func (c *Clock) NextBoundary(t time.Time) time.Time {
	s := c.Start(t)
	return time.Date(s.Year(), s.Month(), s.Day()+7, c.startHour, 0, 0, 0, c.loc)
}

func (c *Clock) ID(t time.Time) string {
	return c.Start(t).Format(idLayout)
}

func (c *Clock) Current() string {
	return c.ID(c.now())
}

// Previous returns the identifier of the week before id.
func (c *Clock) Previous(id string) (string, error) {
	d, err := c.parse(id)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, -7).Format(idLayout), nil
}

// StartOf returns the opening instant of the week named by id.
func (c *Clock) StartOf(id string) (time.Time, error) {
	d, err := c.parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.startHour, 0, 0, 0, c.loc), nil
}

func (c *Clock) parse(id string) (time.Time, error) {
	d, err := time.ParseInLocation(idLayout, id, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}
	if d.Weekday() != c.startDay {
		return time.Time{}, fmt.Errorf("%w: %q does not fall on %s", ErrInvalidWeekID, id, c.startDay)
	}
	return d, nil
}
