package core

import (
	"errors"
	"time"
)

// ErrUnknownPeriod is returned for reporting periods other than week/month.
var ErrUnknownPeriod = errors.New("unknown report period")

// Period selects the reporting window.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Valid reports whether p names a supported window.
func (p Period) Valid() bool {
	return p == PeriodWeek || p == PeriodMonth
}

// CategoryVolume is a summed volume for one sortiment code.
type CategoryVolume struct {
	Code   string
	Label  string
	Volume float64
}

// WindowReport is the result of a time-windowed reporting query: the grand
// total over the sessions in the window plus a per-category breakdown sorted
// by summed volume, largest first.
type WindowReport struct {
	Period    Period
	Start     time.Time
	End       time.Time
	Total     float64
	Breakdown []CategoryVolume
}

// WeekRange returns the current week-to-date window: the most recent Monday
// at day start through now. A Sunday counts as six days past Monday.
func WeekRange(now time.Time) (start, end time.Time) {
	diffToMonday := int(time.Monday - now.Weekday())
	if now.Weekday() == time.Sunday {
		diffToMonday = -6
	}
	monday := now.AddDate(0, 0, diffToMonday)
	start = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
	return start, now
}

// MonthRange returns the current month-to-date window: the first of the month
// at day start through now.
func MonthRange(now time.Time) (start, end time.Time) {
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, now
}

// WindowRange resolves a period to its concrete time window.
func WindowRange(period Period, now time.Time) (start, end time.Time) {
	if period == PeriodMonth {
		return MonthRange(now)
	}
	return WeekRange(now)
}
