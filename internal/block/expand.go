package block

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/evcraddock/showinghive/internal/apperr"
)

const (
	maxOccurrences = 5000
	// horizon bounds how far ahead a new recurring block is checked
	// against existing ones.
	horizon = 366 * 24 * time.Hour
)

// parseRule parses an RFC 5545 recurrence rule anchored at start.
// A leading "RRULE:" is accepted.
func parseRule(raw string, start time.Time) (*rrule.RRule, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "RRULE:")
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, apperr.Newf(apperr.KindInvalid, "invalid rrule: %v", err)
	}
	r.DTStart(start)
	return r, nil
}

// Occurrences returns the block's intervals that intersect [from, to),
// sorted by start. Recurrences are expanded in loc so a weekly 10:00 block
// stays at 10:00 local time across DST changes.
func (b *Block) Occurrences(from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	occ, truncated, err := b.expand(from, to, loc)
	if truncated {
		slog.Warn("truncated block occurrences", "block", b.ID, "cap", maxOccurrences)
	}
	return occ, err
}

// expand is Occurrences without logging; truncated reports that more than
// maxOccurrences starts fell in the window and only the first were kept.
func (b *Block) expand(from, to time.Time, loc *time.Location) ([]Occurrence, bool, error) {
	if b.RRule == "" {
		if Overlaps(b.Start, b.End, from, to) {
			return []Occurrence{{BlockID: b.ID, Start: b.Start, End: b.End}}, false, nil
		}
		return nil, false, nil
	}

	if loc == nil {
		loc = time.UTC
	}
	r, err := parseRule(b.RRule, b.Start.In(loc))
	if err != nil {
		return nil, false, err
	}

	dur := b.Duration()
	// Occurrences starting up to dur before from can still reach into the window.
	starts := r.Between(from.Add(-dur).In(loc), to.In(loc), true)
	truncated := len(starts) > maxOccurrences
	if truncated {
		starts = starts[:maxOccurrences]
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		s = s.UTC()
		e := s.Add(dur)
		if Overlaps(s, e, from, to) {
			out = append(out, Occurrence{BlockID: b.ID, Start: s, End: e})
		}
	}
	return out, truncated, nil
}

// window is the span a block must be checked over for conflicts.
func (b *Block) window() (time.Time, time.Time) {
	if b.RRule == "" {
		return b.Start, b.End
	}
	return b.Start, b.Start.Add(horizon)
}

// expandAll expands every block over [from, to) into one start-sorted list.
func expandAll(blocks []*Block, from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	var all []Occurrence
	for _, b := range blocks {
		occ, err := b.Occurrences(from, to, loc)
		if err != nil {
			return nil, fmt.Errorf("expanding block %s: %w", b.ID, err)
		}
		all = append(all, occ...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })
	return all, nil
}

// expandComplete is expandAll for conflict checks: a block with more
// occurrences than the cap in [from, to) fails with ErrTooDense rather than
// being checked on a prefix.
func expandComplete(blocks []*Block, from, to time.Time, loc *time.Location) ([]Occurrence, error) {
	var all []Occurrence
	for _, b := range blocks {
		occ, truncated, err := b.expand(from, to, loc)
		if err != nil {
			return nil, fmt.Errorf("expanding block %s: %w", b.ID, err)
		}
		if truncated {
			return nil, ErrTooDense
		}
		all = append(all, occ...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })
	return all, nil
}

// anyOverlap reports whether any interval in a intersects any in b.
// Both must be sorted by start.
func anyOverlap(a, b []Occurrence) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if Overlaps(a[i].Start, a[i].End, b[j].Start, b[j].End) {
			return true
		}
		// The interval ending first lies wholly before the other one, and so
		// before everything after it in the other list.
		if !a[i].End.After(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return false
}
