package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

type (
	// Date is a calendar date at day granularity. Sessions belong to exactly
	// one Date, set at creation.
	Date struct {
		time.Time
	}

	// Session groups the measurements logged during one calendar day.
	// TotalVolume is a maintained aggregate: it must always equal the sum of
	// Volume over the measurements currently referencing the session.
	Session struct {
		ID          string
		Label       string
		Owner       string
		Date        Date
		TotalVolume float64
		CreatedAt   time.Time
	}

	// Measurement is one immutable logged tree measurement. Volume is derived
	// from Diameter and Length once at insertion and never recomputed.
	Measurement struct {
		ID           string
		SessionID    string
		CategoryCode string
		Diameter     float64 // cm
		Length       float64 // m
		Volume       float64 // m³
		Timestamp    time.Time
	}
)

var (
	ErrInvalidDiameter = errors.New("diameter must be a positive finite number")
	ErrInvalidLength   = errors.New("length must be a positive finite number")
	ErrEmptyCategory   = errors.New("empty category code")
	ErrInvalidDate     = errors.New("invalid date")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, the form it is persisted in.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Equal reports whether two dates name the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.String() == other.String()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ValidateMeasurementInput checks the caller-supplied fields of a new
// measurement. It must pass before anything is written.
func ValidateMeasurementInput(categoryCode string, diameter, length float64) error {
	if !positiveFinite(diameter) {
		return ErrInvalidDiameter
	}
	if !positiveFinite(length) {
		return ErrInvalidLength
	}
	if strings.TrimSpace(categoryCode) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// VolumeM3 computes the timber volume in m³ for a log of the given diameter
// (cm) and length (m): π·(d/2/100)²·L, rounded to three decimals.
func VolumeM3(diameterCm, lengthM float64) float64 {
	radius := diameterCm / 2 / 100
	return Round3(math.Pi * radius * radius * lengthM)
}

// Round3 rounds to three decimals, the precision measurements are stored at.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
