// Package route orders a day's bookings by start time and annotates each
// stop with the distance from the previous one.
package route

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sprayDispatch/internal/geo"
	"sprayDispatch/models"
)

// ParseClock converts "HH:MM AM|PM" into minutes since midnight.
func ParseClock(v string) (int, error) {
	fields := strings.Fields(strings.TrimSpace(v))
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: time %q is not HH:MM AM|PM", models.ErrValidation, v)
	}
	meridiem := strings.ToUpper(fields[1])
	if meridiem != "AM" && meridiem != "PM" {
		return 0, fmt.Errorf("%w: time %q has no AM/PM marker", models.ErrValidation, v)
	}
	hh, mm, ok := strings.Cut(fields[0], ":")
	if !ok {
		return 0, fmt.Errorf("%w: time %q is not HH:MM AM|PM", models.ErrValidation, v)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 1 || h > 12 || len(hh) != 2 {
		return 0, fmt.Errorf("%w: hour in %q out of range", models.ErrValidation, v)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: minute in %q out of range", models.ErrValidation, v)
	}
	switch {
	case meridiem == "AM" && h == 12:
		h = 0
	case meridiem == "PM" && h != 12:
		h += 12
	}
	return h*60 + m, nil
}

// Filter picks which of a day's bookings become stops.
type Filter string

const (
	// FilterAccepted keeps bookings the operator has committed to.
	FilterAccepted Filter = "accepted"
	// FilterAll keeps every booking that is still open.
	FilterAll Filter = "all"
)

// ParseFilter accepts accepted or all. Empty means accepted.
func ParseFilter(v string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return FilterAccepted, nil
	case FilterAccepted, FilterAll:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown route filter %q", models.ErrValidation, v)
}

func (f Filter) keep(s models.BookingStatus) bool {
	if f == FilterAll {
		return !s.IsTerminal()
	}
	return s == models.BookingStatusActive || s == models.BookingStatusInProgress
}

// ForDay returns the bookings on date that pass the filter, in input order.
func ForDay(bookings []models.Booking, date string, f Filter) []models.Booking {
	out := []models.Booking{}
	for _, b := range bookings {
		if b.ScheduledDate == date && f.keep(b.Status) {
			out = append(out, b)
		}
	}
	return out
}

// Stop is one leg of the route. DistanceKm is nil when either end of the
// leg has no coordinates.
type Stop struct {
	Booking    models.Booking `json:"booking"`
	Sequence   int            `json:"sequence"`
	DistanceKm *float64       `json:"distanceKm"`
	FromHome   bool           `json:"fromHome"`
}

// Plan sorts bookings by scheduled time (ties keep input order) and measures
// each leg: the first from home, the rest from the previous stop.
func Plan(home *models.Coordinates, bookings []models.Booking) ([]Stop, error) {
	type keyed struct {
		b   models.Booking
		min int
	}
	items := make([]keyed, 0, len(bookings))
	for _, b := range bookings {
		m, err := ParseClock(b.ScheduledTime)
		if err != nil {
			return nil, fmt.Errorf("booking %q: %w", b.ID, err)
		}
		items = append(items, keyed{b: b, min: m})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].min < items[j].min })

	stops := make([]Stop, 0, len(items))
	prev := home
	for i, it := range items {
		stops = append(stops, Stop{
			Booking:    it.b,
			Sequence:   i + 1,
			DistanceKm: legKm(prev, it.b.Location),
			FromHome:   i == 0,
		})
		prev = it.b.Location
	}
	return stops, nil
}

// TotalKm sums the legs whose distance is known.
func TotalKm(stops []Stop) float64 {
	var total float64
	for _, s := range stops {
		if s.DistanceKm != nil {
			total += *s.DistanceKm
		}
	}
	return total
}

func legKm(from, to *models.Coordinates) *float64 {
	if from == nil || to == nil {
		return nil
	}
	d := geo.Distance(geo.Point{Lat: from.Latitude, Lng: from.Longitude}, geo.Point{Lat: to.Latitude, Lng: to.Longitude})
	return &d
}
