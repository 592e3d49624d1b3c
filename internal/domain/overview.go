package domain

import (
	"fmt"
	"time"
)

const yearMonthLayout = "2006-01"

// Period is an inclusive calendar-month range.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the period, bounds included.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// ParsePeriod converts a YYYY-MM specifier into the month's first and last
// instants in loc. The last day is day 0 of the following month, so month
// lengths and leap years come from the calendar.
func ParsePeriod(yearMonth string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := time.Parse(yearMonthLayout, yearMonth)
	if err != nil || len(yearMonth) != len(yearMonthLayout) || parsed.Year() < 1 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, yearMonth)
	}
	year, month := parsed.Year(), parsed.Month()
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	end := time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	return Period{Start: start, End: end}, nil
}

// Aggregate builds the per-member presence map for the period. Only members
// with at least one visit get an entry. Records outside the period or owned
// by another admin are ignored.
func Aggregate(adminID string, period Period, valid []ResolvedRecord) map[string]OverviewEntry {
	loc := period.Start.Location()
	entries := make(map[string]OverviewEntry)
	for _, rr := range valid {
		if rr.Record.AdminID != adminID || !period.Contains(rr.Record.Date) {
			continue
		}
		entry, ok := entries[rr.Member.ID]
		if !ok {
			entry = OverviewEntry{
				MemberID: rr.Member.ID,
				AdminID:  adminID,
				Name:     rr.Member.Name,
				Days:     make(map[int]int),
			}
			entries[rr.Member.ID] = entry
		}
		entry.Days[rr.Record.Date.In(loc).Day()] = 1
	}
	return entries
}
