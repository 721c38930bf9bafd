// Package timeparse turns the relative and partial timestamps shown on the
// site ("5分钟前", "昨天 20:33", "12-25") into absolute local times.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the output format of Normalize
const Layout = "2006-01-02 15:04:05"

var (
	reMinutes   = regexp.MustCompile(`^(\d+)\s*(?:分钟前|minutes? ago)`)
	reHours     = regexp.MustCompile(`^(\d+)\s*(?:小时前|hours? ago)`)
	reDays      = regexp.MustCompile(`^(\d+)\s*(?:天前|days? ago)`)
	reToday     = regexp.MustCompile(`^(?:今天|today)\s+(\d{1,2}):(\d{2})`)
	reYesterday = regexp.MustCompile(`^(?:昨天|yesterday)\s+(\d{1,2}):(\d{2})`)
	reDayBefore = regexp.MustCompile(`^(?:前天|day-before-yesterday)\s+(\d{1,2}):(\d{2})`)
	reMonthDay  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})(?:\s+(\d{1,2}):(\d{2}))?`)
	reFullDate  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:\s+(\d{1,2}):(\d{2}))?`)
	reYearHead  = regexp.MustCompile(`^\d{4}-`)
	reWeeks     = regexp.MustCompile(`^(\d+)\s*(?:周前|weeks? ago)`)
	reMonths    = regexp.MustCompile(`^(\d+)\s*(?:个?月前|months? ago)`)
	reYears     = regexp.MustCompile(`^(\d+)\s*(?:年前|years? ago)`)
)

// Normalize resolves raw against ref and formats it with Layout. Patterns
// are tried in a fixed order and the first match wins. Text that matches no
// pattern comes back trimmed but otherwise unchanged.
func Normalize(raw string, ref time.Time) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if t, ok := Parse(text, ref); ok {
		return t.Format(Layout)
	}
	return text
}

// Parse is Normalize without formatting. ok is false for unrecognized text.
func Parse(text string, ref time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)

	if text == "刚刚" || strings.EqualFold(text, "just now") {
		return ref, true
	}

	if m := reMinutes.FindStringSubmatch(text); m != nil {
		return ref.Add(-time.Duration(atoi(m[1])) * time.Minute), true
	}
	if m := reHours.FindStringSubmatch(text); m != nil {
		return ref.Add(-time.Duration(atoi(m[1])) * time.Hour), true
	}
	if m := reDays.FindStringSubmatch(text); m != nil {
		return ref.AddDate(0, 0, -atoi(m[1])), true
	}

	if m := reToday.FindStringSubmatch(text); m != nil {
		return atClock(ref, 0, m[1], m[2]), true
	}
	if m := reYesterday.FindStringSubmatch(text); m != nil {
		return atClock(ref, -1, m[1], m[2]), true
	}
	if m := reDayBefore.FindStringSubmatch(text); m != nil {
		return atClock(ref, -2, m[1], m[2]), true
	}

	if m := reMonthDay.FindStringSubmatch(text); m != nil && !reYearHead.MatchString(text) {
		d := time.Date(ref.Year(), time.Month(atoi(m[1])), atoi(m[2]), atoi(m[3]), atoi(m[4]), 0, 0, ref.Location())
		// A month-day later than the reference belongs to the previous year.
		if d.After(ref) {
			d = d.AddDate(-1, 0, 0)
		}
		return d, true
	}
	if m := reFullDate.FindStringSubmatch(text); m != nil {
		return time.Date(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), atoi(m[4]), atoi(m[5]), 0, 0, ref.Location()), true
	}

	if m := reWeeks.FindStringSubmatch(text); m != nil {
		return ref.AddDate(0, 0, -7*atoi(m[1])), true
	}
	if m := reMonths.FindStringSubmatch(text); m != nil {
		return ref.AddDate(0, -atoi(m[1]), 0), true
	}
	if m := reYears.FindStringSubmatch(text); m != nil {
		return ref.AddDate(-atoi(m[1]), 0, 0), true
	}

	return time.Time{}, false
}

// atClock returns the day offset from ref at hh:mm:00
func atClock(ref time.Time, dayOffset int, hh, mm string) time.Time {
	d := ref.AddDate(0, 0, dayOffset)
	return time.Date(d.Year(), d.Month(), d.Day(), atoi(hh), atoi(mm), 0, 0, ref.Location())
}

// atoi treats empty optional groups as zero
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
