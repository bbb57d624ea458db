package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mkSession(id, title string, start time.Time, durationMins int) Session {
	return Session{
		ID:              id,
		Title:           title,
		GroupName:       "Algorithms Crew",
		ScheduledStart:  start,
		DurationMinutes: durationMins,
	}
}

func TestCheckConflicts(t *testing.T) {
	base := time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		candidate   Candidate
		existing    []Session
		wantErr     error
		wantEntries int
		wantType    ConflictType
		wantDetail  string
	}{
		{
			name:      "zero start is rejected",
			candidate: Candidate{DurationMinutes: 60},
			wantErr:   ErrInvalidCandidate,
		},
		{
			name:      "non-positive duration is rejected",
			candidate: Candidate{Start: base, DurationMinutes: 0},
			wantErr:   ErrInvalidCandidate,
		},
		{
			name:      "negative duration is rejected",
			candidate: Candidate{Start: base, DurationMinutes: -30},
			wantErr:   ErrInvalidCandidate,
		},
		{
			name:      "empty existing list",
			candidate: Candidate{Start: base, DurationMinutes: 60},
		},
		{
			name:        "exact time match",
			candidate:   Candidate{Start: base, DurationMinutes: 60},
			existing:    []Session{mkSession("s1", "Graphs", base, 60)},
			wantEntries: 1,
			wantType:    ConflictExactMatch,
			wantDetail:  "Exact time match with an existing session",
		},
		{
			name:        "existing fully inside candidate",
			candidate:   Candidate{Start: base, DurationMinutes: 120},
			existing:    []Session{mkSession("s1", "Graphs", base.Add(30*time.Minute), 30)},
			wantEntries: 1,
			wantType:    ConflictOverlap,
			wantDetail:  "Completely overlaps with an existing session (2:30 PM–3:00 PM)",
		},
		{
			name:        "candidate fully inside existing",
			candidate:   Candidate{Start: base.Add(30 * time.Minute), DurationMinutes: 30},
			existing:    []Session{mkSession("s1", "Graphs", base, 120)},
			wantEntries: 1,
			wantType:    ConflictOverlap,
			wantDetail:  "Completely within an existing session",
		},
		{
			name:        "existing ends during candidate",
			candidate:   Candidate{Start: base.Add(30 * time.Minute), DurationMinutes: 60},
			existing:    []Session{mkSession("s1", "Graphs", base, 60)},
			wantEntries: 1,
			wantType:    ConflictOverlap,
			wantDetail:  "Overlaps with a session ending at 3:00 PM",
		},
		{
			name:        "existing starts during candidate and ends after",
			candidate:   Candidate{Start: base, DurationMinutes: 60},
			existing:    []Session{mkSession("s1", "Graphs", base.Add(30*time.Minute), 60)},
			wantEntries: 1,
			wantType:    ConflictOverlap,
			wantDetail:  "Overlaps with a session starting at 2:30 PM",
		},
		{
			name:      "back-to-back after is not a conflict",
			candidate: Candidate{Start: base.Add(time.Hour), DurationMinutes: 60},
			existing:  []Session{mkSession("s1", "Graphs", base, 60)},
		},
		{
			name:      "back-to-back before is not a conflict",
			candidate: Candidate{Start: base.Add(-time.Hour), DurationMinutes: 60},
			existing:  []Session{mkSession("s1", "Graphs", base, 60)},
		},
		{
			name:      "exclude id skips self regardless of overlap",
			candidate: Candidate{Start: base, DurationMinutes: 60, ExcludeID: "s1"},
			existing:  []Session{mkSession("s1", "Graphs", base, 60)},
		},
		{
			name:      "exclude id only skips the matching session",
			candidate: Candidate{Start: base, DurationMinutes: 60, ExcludeID: "s2"},
			existing: []Session{
				mkSession("s1", "Graphs", base, 60),
			},
			wantEntries: 1,
			wantType:    ConflictExactMatch,
			wantDetail:  "Exact time match with an existing session",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := CheckConflicts(tt.candidate, tt.existing)
			if err != tt.wantErr {
				t.Fatalf("CheckConflicts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			assert.Equal(t, tt.wantEntries > 0, report.HasConflict)
			assert.Len(t, report.Conflicts, tt.wantEntries)
			if tt.wantEntries > 0 {
				entry := report.Conflicts[0]
				assert.Equal(t, tt.wantType, entry.Type)
				assert.Equal(t, tt.wantDetail, entry.Detail)
				assert.Equal(t, tt.existing[0].ID, entry.SessionID)
				assert.Equal(t, tt.existing[0].Title, entry.Title)
				assert.Equal(t, tt.existing[0].ScheduledStart, entry.ConflictingStart)
				assert.Equal(t, tt.existing[0].ScheduledEnd(), entry.ConflictingEnd)
			}
		})
	}
}

func TestCheckConflictsScanOrder(t *testing.T) {
	base := time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC)
	existing := []Session{
		mkSession("s3", "Late", base.Add(30*time.Minute), 60),
		mkSession("s1", "Exact", base, 60),
		mkSession("s2", "Far away", base.Add(6*time.Hour), 60),
	}

	report, err := CheckConflicts(Candidate{Start: base, DurationMinutes: 60}, existing)
	if err != nil {
		t.Fatalf("CheckConflicts() failed: %v", err)
	}

	// all colliding sessions are reported in scan order; no sorting, no dedupe
	assert.True(t, report.HasConflict)
	if assert.Len(t, report.Conflicts, 2) {
		assert.Equal(t, "s3", report.Conflicts[0].SessionID)
		assert.Equal(t, "s1", report.Conflicts[1].SessionID)
	}
}

func TestCheckConflictsIdempotent(t *testing.T) {
	base := time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC)
	cand := Candidate{Start: base, DurationMinutes: 90}
	existing := []Session{
		mkSession("s1", "Graphs", base.Add(-30*time.Minute), 60),
		mkSession("s2", "Dynamic Programming", base.Add(time.Hour), 60),
	}

	first, err := CheckConflicts(cand, existing)
	if err != nil {
		t.Fatalf("CheckConflicts() failed: %v", err)
	}
	second, err := CheckConflicts(cand, existing)
	if err != nil {
		t.Fatalf("CheckConflicts() failed: %v", err)
	}
	assert.Equal(t, first, second)
}

func TestCheckConflictsUnknownGroupName(t *testing.T) {
	base := time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC)
	sess := mkSession("s1", "Graphs", base, 60)
	sess.GroupName = ""

	report, err := CheckConflicts(Candidate{Start: base, DurationMinutes: 60}, []Session{sess})
	if err != nil {
		t.Fatalf("CheckConflicts() failed: %v", err)
	}
	if assert.Len(t, report.Conflicts, 1) {
		assert.Equal(t, UnknownGroupName, report.Conflicts[0].GroupName)
	}
}

func TestScheduledEndExact(t *testing.T) {
	start := time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC)
	sess := mkSession("s1", "Graphs", start, 45)
	assert.Equal(t, start.Add(45*time.Minute), sess.ScheduledEnd())
}
