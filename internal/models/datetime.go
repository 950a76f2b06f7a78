package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateTimeLayout is the DATA_HORA layout (dd/MM/yyyy HH:mm:ss).
const DateTimeLayout = "02/01/2006 15:04:05"

const (
	dateTimeShortLayout = "02/01/2006 15:04"
	dateLayout          = "02/01/2006"
	timeLayout          = "15:04:05"
)

var looseDateTime = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})(?:\D+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)

// FormatDataHora renders t in the DATA_HORA layout.
func FormatDataHora(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// ParseDataHora parses a DATA_HORA value. It tries the full layout, then the
// layout without seconds, then a loose dd/mm/yyyy [hh:mm[:ss]] match anywhere
// in the string.
func ParseDataHora(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateTimeLayout, dateTimeShortLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}

	m := looseDateTime.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	var hour, minute, second int
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			second, _ = strconv.Atoi(m[6])
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	// time.Date normalizes 31/02 into March; reject that instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// SplitDataHora returns the date and time parts used in alert messages.
func SplitDataHora(s string) (date, clock string) {
	if t, ok := ParseDataHora(s); ok {
		return t.Format(dateLayout), t.Format(timeLayout)
	}
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
