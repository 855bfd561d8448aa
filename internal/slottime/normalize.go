// Package slottime converts the time strings agents and availability feeds
// use ("2:30 PM", "09:00", "10:30 AM–12:30 PM") into canonical HH:MM:SS.
package slottime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	twelveHour    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(?::(\d{2}))?\s*([AaPp])\.?\s*[Mm]\.?$`)
	twentyFour    = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	canonicalTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d:[0-5]\d$`)
)

// rangeSeparators split an interval; only the start is kept.
var rangeSeparators = []string{"–", "—", "-", " to "}

// Normalize returns the canonical 24-hour HH:MM:SS form of the start of raw.
// Input it cannot interpret is returned unchanged.
func Normalize(raw string) string {
	s := strings.TrimSpace(startOfRange(raw))

	if m := twelveHour.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := atoiOrZero(m[2])
		second := atoiOrZero(m[3])
		if hour < 1 || hour > 12 || minute > 59 || second > 59 {
			return raw
		}
		pm := strings.EqualFold(m[4], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return format(hour, minute, second)
	}

	if m := twentyFour.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		second := atoiOrZero(m[3])
		if hour > 23 || minute > 59 || second > 59 {
			return raw
		}
		return format(hour, minute, second)
	}

	return raw
}

// IsCanonical reports whether s is already in HH:MM:SS 24-hour form.
func IsCanonical(s string) bool {
	return canonicalTime.MatchString(s)
}

func startOfRange(raw string) string {
	for _, sep := range rangeSeparators {
		if idx := strings.Index(raw, sep); idx > 0 {
			return raw[:idx]
		}
	}
	return raw
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

func format(hour, minute, second int) string {
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second)
}
