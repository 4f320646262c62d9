package appointment

import (
	"time"
)

// Appointment is one free slot as listed on the booking shop.
type Appointment struct {
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Treatment  string  `json:"treatment"`
	Price      string  `json:"price"`
	BookingURL string  `json:"bookingUrl"`
	ImageURL   *string `json:"imageUrl"`
}

// DateText returns the date column as shown, e.g. "Di, 13.01.2026".
func (a Appointment) DateText() string { return a.Date }

// TimeText returns the time column as shown, e.g. "10:00".
func (a Appointment) TimeText() string { return a.Time }

// HasImage reports whether the enrichment step found an image.
func (a Appointment) HasImage() bool {
	return a.ImageURL != nil && *a.ImageURL != ""
}

// Snapshot is the document written to disk and served by the API.
type Snapshot struct {
	Success      bool          `json:"success"`
	Appointments []Appointment `json:"appointments"`
	Count        int           `json:"count"`
	LastUpdated  *time.Time    `json:"lastUpdated,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func NewSnapshot(appointments []Appointment, now time.Time) *Snapshot {
	if appointments == nil {
		appointments = []Appointment{}
	}
	ts := now.UTC()
	return &Snapshot{
		Success:      true,
		Appointments: appointments,
		Count:        len(appointments),
		LastUpdated:  &ts,
	}
}

// FailedSnapshot is the body returned when no data could be produced.
func FailedSnapshot(err error) *Snapshot {
	msg := "Failed to fetch appointments"
	if err != nil {
		msg = err.Error()
	}
	return &Snapshot{
		Success:      false,
		Appointments: []Appointment{},
		Error:        msg,
	}
}

// Clock returns the current instant. Tests pass a fixed one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
func SystemClock() Clock { return systemClock{} }

// FixedClock always returns t.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
