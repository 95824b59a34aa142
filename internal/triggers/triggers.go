// Package triggers computes proactive signals from contacts: upcoming
// recurring dates and overdue reconnections. Everything here is pure —
// callers pass the reference date and get derived values back.
package triggers

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kinvault/kinvault/pkg/types"
)

const (
	// InvalidDateSentinel is returned by DaysUntilRecurring when the
	// (day, month) pair does not exist in a candidate year (Feb 29 off a
	// leap year). It sorts such dates to the end; it is not an error.
	InvalidDateSentinel = 999

	// DefaultDaysSince is assumed when a contact has neither a last-talked
	// date nor a creation timestamp, or when the recorded date is malformed.
	DefaultDaysSince = 30

	// StartupWindow is the upcoming-event horizon for startup proactive
	// checks; ListingWindow is the wider horizon used by the explicit
	// "upcoming dates" listing.
	StartupWindow = 30
	ListingWindow = 60
)

// Reconnection thresholds in days, strict greater-than per priority.
const (
	highThreshold   = 7
	mediumThreshold = 30
	lowThreshold    = 90
)

// DaysUntilRecurring returns the number of days from referenceDate to the
// next occurrence of (day, month), rolling into the next year if this
// year's occurrence has passed. If the pair is invalid in the candidate
// year it returns InvalidDateSentinel.
func DaysUntilRecurring(day, month int, referenceDate time.Time) int {
	ref := truncateToDay(referenceDate)

	if !validDate(day, month, ref.Year()) {
		return InvalidDateSentinel
	}

	next := time.Date(ref.Year(), time.Month(month), day, 0, 0, 0, 0, referenceDate.Location())
	if next.Before(ref) {
		if !validDate(day, month, ref.Year()+1) {
			return InvalidDateSentinel
		}
		next = time.Date(ref.Year()+1, time.Month(month), day, 0, 0, 0, 0, referenceDate.Location())
	}

	return int(next.Sub(ref).Hours() / 24)
}

// DaysSinceContact returns how many days ago the contact was last talked
// to, as of referenceDate. Absent or malformed last-talked dates fall back
// to the creation timestamp, then to DefaultDaysSince.
func DaysSinceContact(contact *types.Contact, referenceDate time.Time) int {
	if contact.LastTalkedDate != "" {
		if last, err := time.Parse("2006-01-02", contact.LastTalkedDate); err == nil {
			return daysBetween(last, referenceDate)
		}
		return DefaultDaysSince
	}

	if !contact.CreatedAt.IsZero() {
		return daysBetween(contact.CreatedAt, referenceDate)
	}

	return DefaultDaysSince
}

// ReconnectionDue reports whether daysSince exceeds the priority's
// threshold. The comparison is strictly greater-than: a medium contact at
// exactly 30 days is not yet due.
func ReconnectionDue(priority types.Priority, daysSince int) bool {
	switch priority {
	case types.PriorityHigh:
		return daysSince > highThreshold
	case types.PriorityLow:
		return daysSince > lowThreshold
	default:
		return daysSince > mediumThreshold
	}
}

// ScanTriggers walks every contact and emits upcoming-event triggers for
// recurring dates within window days of referenceDate, plus one
// reconnection trigger per overdue contact. Output preserves scan order;
// sorting by urgency is the caller's concern.
func ScanTriggers(contacts []*types.Contact, referenceDate time.Time, window int) []types.ProactiveTrigger {
	var out []types.ProactiveTrigger

	for _, contact := range contacts {
		// Sorted keys keep the per-contact event order stable; map
		// iteration would reshuffle it on every scan.
		dateTypes := make([]string, 0, len(contact.Dates))
		for dateType := range contact.Dates {
			dateTypes = append(dateTypes, dateType)
		}
		sort.Strings(dateTypes)

		for _, dateType := range dateTypes {
			value := contact.Dates[dateType]
			if strings.HasSuffix(dateType, types.DateNotesSuffix) {
				continue
			}
			day, month, ok := parseRecurringDate(value)
			if !ok {
				continue
			}
			days := DaysUntilRecurring(day, month, referenceDate)
			if days >= 0 && days <= window {
				out = append(out, types.ProactiveTrigger{
					Type:        types.TriggerUpcomingEvent,
					ContactName: contact.Name,
					DateType:    dateType,
					Date:        value,
					DaysUntil:   days,
				})
			}
		}

		priority := types.NormalizePriority(string(contact.Priority))
		daysSince := DaysSinceContact(contact, referenceDate)
		if ReconnectionDue(priority, daysSince) {
			out = append(out, types.ProactiveTrigger{
				Type:        types.TriggerReconnection,
				ContactName: contact.Name,
				DaysSince:   daysSince,
				Priority:    priority,
			})
		}
	}

	return out
}

// parseRecurringDate parses "DD-MM" or "DD-MM-YYYY".
func parseRecurringDate(value string) (day, month int, ok bool) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, 0, false
	}

	return day, month, true
}

// validDate reports whether (day, month) exists in year. time.Date
// normalises overflow (Feb 30 → Mar 2), so round-tripping detects it.
func validDate(day, month, year int) bool {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	days := int(truncateToDay(to).Sub(truncateToDay(from)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
