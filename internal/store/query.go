package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sprayDispatch/models"
)

// ByStatus returns the bookings whose status is one of statuses, in
// collection order.
func ByStatus(bookings []models.Booking, statuses ...models.BookingStatus) []models.Booking {
	want := make(map[models.BookingStatus]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	out := []models.Booking{}
	for _, b := range bookings {
		if _, ok := want[b.Status]; ok {
			out = append(out, b)
		}
	}
	return out
}

// DateString formats t as a calendar date in its own location.
func DateString(t time.Time) string {
	return t.Format(models.DateLayout)
}

// OnDate returns the bookings scheduled on date (YYYY-MM-DD).
func OnDate(bookings []models.Booking, date string) []models.Booking {
	out := []models.Booking{}
	for _, b := range bookings {
		if b.ScheduledDate == date {
			out = append(out, b)
		}
	}
	return out
}

// Period is an earnings window.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts today, week or month.
func ParsePeriod(v string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(v))); p {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", models.ErrValidation, v)
}

// Start returns the inclusive lower bound of the window ending at now.
// Calendar boundaries use now's location.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return startOfDay(now)
	}
}

// Summary aggregates completed work.
type Summary struct {
	Total int64   `json:"total"`
	Count int     `json:"count"`
	Acres float64 `json:"acres"`
}

// Earnings sums completed bookings whose completedAt falls in the period.
func Earnings(bookings []models.Booking, p Period, now time.Time) Summary {
	start := p.Start(now)
	var sum Summary
	for _, b := range bookings {
		if b.Status != models.BookingStatusCompleted || b.CompletedAt == nil {
			continue
		}
		if b.CompletedAt.Before(start) {
			continue
		}
		sum.Total += b.Amount
		sum.Count++
		sum.Acres += b.Acreage
	}
	return sum
}

// HistoryWindow selects how far back the completed history reaches.
type HistoryWindow string

const (
	HistoryAll         HistoryWindow = "all"
	HistoryLast7Days   HistoryWindow = "7days"
	HistoryThisMonth   HistoryWindow = "month"
	HistoryLast3Months HistoryWindow = "3months"
)

// ParseHistoryWindow accepts all, 7days, month or 3months. Empty means all.
func ParseHistoryWindow(v string) (HistoryWindow, error) {
	w := HistoryWindow(strings.ToLower(strings.TrimSpace(v)))
	switch w {
	case "":
		return HistoryAll, nil
	case HistoryAll, HistoryLast7Days, HistoryThisMonth, HistoryLast3Months:
		return w, nil
	}
	return "", fmt.Errorf("%w: unknown history window %q", models.ErrValidation, v)
}

// History returns completed bookings inside the window, in collection order.
// Bookings without completedAt are placed by their scheduled date.
func History(bookings []models.Booking, w HistoryWindow, now time.Time) []models.Booking {
	completed := ByStatus(bookings, models.BookingStatusCompleted)
	var start time.Time
	switch w {
	case HistoryLast7Days:
		start = now.Add(-7 * 24 * time.Hour)
	case HistoryThisMonth:
		start = PeriodMonth.Start(now)
	case HistoryLast3Months:
		start = now.Add(-90 * 24 * time.Hour)
	default:
		return completed
	}
	out := []models.Booking{}
	for _, b := range completed {
		at, ok := completedOrScheduled(b, now.Location())
		if ok && !at.Before(start) {
			out = append(out, b)
		}
	}
	return out
}

func completedOrScheduled(b models.Booking, loc *time.Location) (time.Time, bool) {
	if b.CompletedAt != nil {
		return *b.CompletedAt, true
	}
	t, err := time.ParseInLocation(models.DateLayout, b.ScheduledDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayGroup is the bookings scheduled on one calendar date.
type DayGroup struct {
	Date     string           `json:"date"`
	Bookings []models.Booking `json:"bookings"`
}

// GroupUpcoming groups bookings scheduled on or after today by date,
// earliest date first. Within a day collection order is kept.
func GroupUpcoming(bookings []models.Booking, today string) []DayGroup {
	byDate := map[string][]models.Booking{}
	for _, b := range bookings {
		if b.ScheduledDate >= today {
			byDate[b.ScheduledDate] = append(byDate[b.ScheduledDate], b)
		}
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]DayGroup, 0, len(dates))
	for _, d := range dates {
		out = append(out, DayGroup{Date: d, Bookings: byDate[d]})
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ByStatus returns copies of the bookings in any of statuses.
func (s *Store) ByStatus(statuses ...models.BookingStatus) []models.Booking {
	return cloneAll(ByStatus(s.snapshot(), statuses...))
}

// Today returns the bookings scheduled on the current local date.
func (s *Store) Today() []models.Booking {
	return cloneAll(OnDate(s.snapshot(), DateString(s.Now())))
}

// OnDate returns the bookings scheduled on date.
func (s *Store) OnDate(date string) []models.Booking {
	return cloneAll(OnDate(s.snapshot(), date))
}

// Earnings aggregates completed work for the period ending now.
func (s *Store) Earnings(p Period) Summary {
	return Earnings(s.snapshot(), p, s.Now())
}

// History returns completed bookings inside the window ending now.
func (s *Store) History(w HistoryWindow) []models.Booking {
	return cloneAll(History(s.snapshot(), w, s.Now()))
}

// Upcoming groups today's and later bookings by date.
func (s *Store) Upcoming() []DayGroup {
	groups := GroupUpcoming(s.snapshot(), DateString(s.Now()))
	for i := range groups {
		groups[i].Bookings = cloneAll(groups[i].Bookings)
	}
	return groups
}
