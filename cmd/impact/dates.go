package main

import (
	"fmt"
	"time"

	apperrors "github.com/reillywatson/impact/internal/errors"
	"github.com/reillywatson/impact/internal/ledger"
)

const dateLayout = "2006-01-02"

// Layouts without an offset produce naive bounds.
var naiveLayouts = []string{
	dateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseDate reads a window bound. Empty input means no bound.
func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, ledger.Naive); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError(fmt.Sprintf("invalid --%s %q, use YYYY-MM-DD or RFC3339", flag, s))
}

// parseUntil is parseDate for window ends: a bare date covers that whole day.
func parseUntil(s string) (*time.Time, error) {
	t, err := parseDate("until", s)
	if err != nil || t == nil {
		return t, err
	}
	if _, err := time.Parse(dateLayout, s); err == nil {
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		return &end, nil
	}
	return t, nil
}
