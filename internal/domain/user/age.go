package user

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date (YYYY-MM-DD) or a full RFC3339 timestamp
// and returns midnight UTC of that calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, ErrInvalidDate
		}
	}

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// CalculateAge returns the whole years elapsed between birthDate and today.
// An empty birthDate means unknown and yields 0.
func CalculateAge(birthDate string, today time.Time) (int, error) {
	if strings.TrimSpace(birthDate) == "" {
		return 0, nil
	}

	birth, err := ParseDate(birthDate)
	if err != nil {
		return 0, err
	}

	return AgeAt(birth, today)
}

func AgeAt(birth, today time.Time) (int, error) {
	ty, tm, td := today.Date()
	by, bm, bd := birth.Date()

	if by > ty || (by == ty && (bm > tm || (bm == tm && bd > td))) {
		return 0, ErrFutureDate
	}

	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}

	return age, nil
}
