package habit

import (
	"errors"
	"regexp"
	"strconv"
)

// Duration bounds in days, inclusive.
const (
	MinDurationDays = 1
	MaxDurationDays = 365
)

var (
	clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

	// ErrInvalidTime is returned by ParseTime for anything ValidateTime rejects.
	ErrInvalidTime = errors.New("invalid time of day, expected HH:MM")
)

// ValidateDuration reports whether text is a whole number of days in
// [MinDurationDays, MaxDurationDays]. Signs, spaces and decimals are rejected.
func ValidateDuration(text string) bool {
	if text == "" || len(text) > 6 {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	days, err := strconv.Atoi(text)
	if err != nil {
		return false
	}
	return days >= MinDurationDays && days <= MaxDurationDays
}

// ValidateTime reports whether text is a 24-hour HH:MM time. Both fields
// need two digits, so "7:30" and "07:3" are rejected.
func ValidateTime(text string) bool {
	return clockRegex.MatchString(text)
}

// ParseTime splits a valid HH:MM string into hour and minute.
func ParseTime(text string) (hour, minute int, err error) {
	m := clockRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, ErrInvalidTime
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}
