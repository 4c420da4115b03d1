package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrEmptyAnchors is returned when no anchor month-days are available.
	ErrEmptyAnchors = errors.New("anchor set is empty")
	// ErrInvalidAnchor is returned for strings not in "MM-DD" form.
	ErrInvalidAnchor = errors.New("invalid anchor")
)

const anchorLayout = "01-02"

// AnchorSet is a set of "MM-DD" month-day strings matched against calendar dates.
// It carries no fiscal meaning.
type AnchorSet map[string]struct{}

// ParseAnchors builds an AnchorSet from "MM-DD" strings. Whitespace is trimmed and
// empty entries are skipped. "02-29" is accepted.
func ParseAnchors(list []string) (AnchorSet, error) {
	set := make(AnchorSet, len(list))
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		// Parse against a leap year so 02-29 validates.
		if len(s) != len(anchorLayout) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAnchor, raw)
		}
		if _, err := time.Parse("2006-"+anchorLayout, "2000-"+s); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAnchor, raw)
		}
		set[s] = struct{}{}
	}
	if len(set) == 0 {
		return nil, ErrEmptyAnchors
	}
	return set, nil
}

// AnchorsFromPeriodEnds keeps the month and day of each fiscal period-end date and
// deduplicates them. Zero dates are ignored.
func AnchorsFromPeriodEnds(dates []time.Time) (AnchorSet, error) {
	set := make(AnchorSet)
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		set[d.Format(anchorLayout)] = struct{}{}
	}
	if len(set) == 0 {
		return nil, ErrEmptyAnchors
	}
	return set, nil
}

// Match reports whether t's month-day is in the set.
func (a AnchorSet) Match(t time.Time) bool {
	_, ok := a[t.Format(anchorLayout)]
	return ok
}

// Sorted returns the anchors in ascending order.
func (a AnchorSet) Sorted() []string {
	out := make([]string, 0, len(a))
	for s := range a {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// String renders the set as a comma-separated list.
func (a AnchorSet) String() string {
	return strings.Join(a.Sorted(), ",")
}
