package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCandidate rejects a malformed candidate window before any scan.
var ErrInvalidCandidate = errors.New("invalid candidate window: start must be set and duration positive")

type ConflictType string

const (
	ConflictExactMatch ConflictType = "exact_match"
	ConflictOverlap    ConflictType = "overlap"
)

// Candidate is a proposed session window to be checked against existing sessions.
// ExcludeID lets an update-in-place skip comparing a session against itself.
type Candidate struct {
	Start           time.Time
	DurationMinutes int
	ExcludeID       string
}

func (c Candidate) End() time.Time {
	return c.Start.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

type ConflictEntry struct {
	SessionID        string       `json:"session_id"`
	Title            string       `json:"title"`
	GroupName        string       `json:"group_name"`
	ConflictingStart time.Time    `json:"conflicting_start"`
	ConflictingEnd   time.Time    `json:"conflicting_end"`
	Type             ConflictType `json:"conflict_type"`
	Detail           string       `json:"detail"`
}

// ConflictReport lists every existing session colliding with a candidate
// window, in scan order. HasConflict is true iff Conflicts is non-empty.
type ConflictReport struct {
	HasConflict bool            `json:"has_conflict"`
	Conflicts   []ConflictEntry `json:"conflicts"`
}

// CheckConflicts scans existing sessions for collisions with the candidate
// window and explains each one. It is a pure function: the caller is
// responsible for fetching existing over a buffered range (see FetchBuffer);
// the check itself applies true interval overlap only.
//
// Overlap uses half-open interval semantics: [s1,e1) and [s2,e2) overlap iff
// s1 < e2 && s2 < e1. A session ending exactly when another starts is NOT a
// conflict.
func CheckConflicts(candidate Candidate, existing []Session) (ConflictReport, error) {
	if candidate.Start.IsZero() || candidate.DurationMinutes <= 0 {
		return ConflictReport{}, ErrInvalidCandidate
	}

	s1, e1 := candidate.Start, candidate.End()

	var conflicts []ConflictEntry
	for _, sess := range existing {
		if candidate.ExcludeID != "" && sess.ID == candidate.ExcludeID {
			continue
		}

		s2, e2 := sess.ScheduledStart, sess.ScheduledEnd()
		if !(s1.Before(e2) && s2.Before(e1)) {
			continue
		}

		typ, detail := classifyConflict(s1, e1, s2, e2)
		conflicts = append(conflicts, ConflictEntry{
			SessionID:        sess.ID,
			Title:            sess.Title,
			GroupName:        sess.DisplayGroupName(),
			ConflictingStart: s2,
			ConflictingEnd:   e2,
			Type:             typ,
			Detail:           detail,
		})
	}

	return ConflictReport{HasConflict: len(conflicts) > 0, Conflicts: conflicts}, nil
}

// classifyConflict maps an overlapping pair of windows to a conflict type and
// a human-readable detail. Cases are evaluated in priority order; first match
// wins. Both windows are known to overlap when this is called.
func classifyConflict(s1, e1, s2, e2 time.Time) (ConflictType, string) {
	switch {
	case s1.Equal(s2) && e1.Equal(e2):
		return ConflictExactMatch, "Exact time match with an existing session"
	case !s2.Before(s1) && !e2.After(e1): // existing fully inside candidate
		return ConflictOverlap, fmt.Sprintf("Completely overlaps with an existing session (%s–%s)", clockTime(s2), clockTime(e2))
	case !s1.Before(s2) && !e1.After(e2): // candidate fully inside existing
		return ConflictOverlap, "Completely within an existing session"
	case s2.Before(s1) && e2.After(s1): // existing starts before, ends during candidate
		return ConflictOverlap, fmt.Sprintf("Overlaps with a session ending at %s", clockTime(e2))
	case s2.Before(e1) && e2.After(e1): // existing starts during candidate, ends after
		return ConflictOverlap, fmt.Sprintf("Overlaps with a session starting at %s", clockTime(s2))
	default:
		return ConflictOverlap, "Scheduling conflict detected"
	}
}

func clockTime(t time.Time) string {
	return t.UTC().Format("3:04 PM")
}
