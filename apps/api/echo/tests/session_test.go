package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echoapi "github.com/trezcool/kikundi/apps/api/echo"
	"github.com/trezcool/kikundi/core/session"
)

func Test_sessionApi_create_permissions(t *testing.T) {
	owner := createUser(t, "Owner", "sess-owner", "sess-owner@test.cd", nil, true)
	member := createUser(t, "Member", "sess-member", "sess-member@test.cd", nil, true)
	outsider := createUser(t, "Outsider", "sess-outsider", "sess-outsider@test.cd", nil, true)

	pubGrp := createGroup(t, owner, "Session Perms Public", false)
	privGrp := createGroup(t, owner, "Session Perms Private", true)
	joinGroup(t, pubGrp, member)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)
	body := marchallObj(t, session.NewSession{Title: "Algebra review", ScheduledStart: start, DurationMinutes: 60})

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/groups/" + pubGrp.ID + "/sessions", body: body,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Non-member cannot schedule", method: http.MethodPost, path: "/v1/groups/" + pubGrp.ID + "/sessions",
			body: body, token: getToken(t, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Private group hidden from non-members", method: http.MethodPost, path: "/v1/groups/" + privGrp.ID + "/sessions",
			body: body, token: getToken(t, outsider), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "Plain member cannot schedule", method: http.MethodPost, path: "/v1/groups/" + pubGrp.ID + "/sessions",
			body: body, token: getToken(t, member), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Unknown group", method: http.MethodPost, path: "/v1/groups/nope/sessions",
			body: body, token: getToken(t, owner), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_sessionApi_create(t *testing.T) {
	owner := createUser(t, "Owner", "sess-create-owner", "sess-create-owner@test.cd", nil, true)
	grp := createGroup(t, owner, "Session Create", false)
	token := getToken(t, owner)

	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Minute)

	t.Run("scheduled", func(t *testing.T) {
		body := marchallObj(t, session.NewSession{
			Title:           "Sprint planning",
			Description:     "Chapters 3-4",
			Location:        "Library room 2",
			ScheduledStart:  start,
			DurationMinutes: 90,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/sessions", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var resp echoapi.SessionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Session.ID == "" {
			t.Error("session has no ID")
		}
		if resp.Session.GroupID != grp.ID {
			t.Errorf("GroupID = %v; want %v", resp.Session.GroupID, grp.ID)
		}
		if resp.Session.GroupName != grp.Name {
			t.Errorf("GroupName = %v; want %v", resp.Session.GroupName, grp.Name)
		}
		if resp.Session.CreatedBy != owner.ID {
			t.Errorf("CreatedBy = %v; want %v", resp.Session.CreatedBy, owner.ID)
		}
		if len(resp.Conflicts) != 0 {
			t.Errorf("unexpected conflicts: %v", resp.Conflicts)
		}
	})

	t.Run("title required", func(t *testing.T) {
		body := marchallObj(t, session.NewSession{ScheduledStart: start.Add(100 * time.Hour), DurationMinutes: 60})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/sessions", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}

func Test_sessionApi_create_conflicts(t *testing.T) {
	owner := createUser(t, "Owner", "sess-confl-owner", "sess-confl-owner@test.cd", nil, true)
	grp := createGroup(t, owner, "Session Conflicts A", false)
	otherGrp := createGroup(t, owner, "Session Conflicts B", false)
	token := getToken(t, owner)

	// existing session 10:00-11:00 UTC, in a different group of the same user
	day := time.Now().UTC().AddDate(0, 0, 7)
	s2 := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	existing := scheduleSession(t, owner, otherGrp, "Calculus drill", s2, 60)

	t.Run("overlap rejected", func(t *testing.T) {
		body := marchallObj(t, session.NewSession{
			Title:           "Overlapping",
			ScheduledStart:  s2.Add(30 * time.Minute), // 10:30, overlaps 10:00-11:00
			DurationMinutes: 60,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/sessions", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusConflict, rec.Body.String())
		}
		var resp echoapi.ConflictResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(resp.Conflicts) != 1 {
			t.Fatalf("conflicts = %v; want 1 entry", resp.Conflicts)
		}
		confl := resp.Conflicts[0]
		if confl.SessionID != existing.ID {
			t.Errorf("SessionID = %v; want %v", confl.SessionID, existing.ID)
		}
		if confl.GroupName != otherGrp.Name {
			t.Errorf("GroupName = %v; want %v", confl.GroupName, otherGrp.Name)
		}
		if confl.Type != session.ConflictOverlap {
			t.Errorf("Type = %v; want %v", confl.Type, session.ConflictOverlap)
		}
		wantDetail := fmt.Sprintf("Overlaps with a session ending at %s", existing.ScheduledEnd().UTC().Format("3:04 PM"))
		if confl.Detail != wantDetail {
			t.Errorf("Detail = %q; want %q", confl.Detail, wantDetail)
		}
	})

	t.Run("exact match rejected", func(t *testing.T) {
		body := marchallObj(t, session.NewSession{
			Title:           "Same slot",
			ScheduledStart:  s2,
			DurationMinutes: 60,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/sessions", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusConflict, rec.Body.String())
		}
		var resp echoapi.ConflictResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(resp.Conflicts) != 1 || resp.Conflicts[0].Type != session.ConflictExactMatch {
			t.Errorf("conflicts = %v; want one exact_match entry", resp.Conflicts)
		}
	})

	t.Run("back-to-back allowed", func(t *testing.T) {
		body := marchallObj(t, session.NewSession{
			Title:           "Right after",
			ScheduledStart:  s2.Add(60 * time.Minute), // starts exactly when existing ends
			DurationMinutes: 30,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/sessions", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
	})

	t.Run("force overrides conflict", func(t *testing.T) {
		body := marchallObj(t, session.NewSession{
			Title:           "Forced anyway",
			ScheduledStart:  s2.Add(15 * time.Minute),
			DurationMinutes: 30,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/sessions?force=true", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var resp echoapi.SessionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		// forced scheduling still reports what it collided with
		if len(resp.Conflicts) == 0 {
			t.Error("expected conflicts to be reported on forced scheduling")
		}
	})
}

func Test_sessionApi_update_conflicts(t *testing.T) {
	owner := createUser(t, "Owner", "sess-upd-owner", "sess-upd-owner@test.cd", nil, true)
	grp := createGroup(t, owner, "Session Update", false)
	token := getToken(t, owner)

	day := time.Now().UTC().AddDate(0, 0, 14)
	at := func(h int) time.Time { return time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, time.UTC) }

	sess := scheduleSession(t, owner, grp, "Morning block", at(9), 60)
	other := scheduleSession(t, owner, grp, "Afternoon block", at(14), 60)

	t.Run("no self-conflict on unchanged time", func(t *testing.T) {
		body := marchallObj(t, session.UpdateSession{Title: "Morning block v2"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/sessions/"+sess.ID, token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.SessionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Session.Title != "Morning block v2" {
			t.Errorf("Title = %v; want Morning block v2", resp.Session.Title)
		}
		if len(resp.Conflicts) != 0 {
			t.Errorf("unexpected conflicts: %v", resp.Conflicts)
		}
	})

	t.Run("move onto another session rejected", func(t *testing.T) {
		body := marchallObj(t, session.UpdateSession{ScheduledStart: other.ScheduledStart})
		req, rec := newAuthRequest(http.MethodPut, "/v1/sessions/"+sess.ID, token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusConflict, rec.Body.String())
		}
		var resp echoapi.ConflictResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(resp.Conflicts) != 1 || resp.Conflicts[0].SessionID != other.ID {
			t.Errorf("conflicts = %v; want entry for %v", resp.Conflicts, other.ID)
		}
	})

	t.Run("force move", func(t *testing.T) {
		body := marchallObj(t, session.UpdateSession{ScheduledStart: other.ScheduledStart})
		req, rec := newAuthRequest(http.MethodPut, "/v1/sessions/"+sess.ID+"?force=true", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})
}

func Test_sessionApi_rsvp(t *testing.T) {
	owner := createUser(t, "Owner", "rsvp-owner", "rsvp-owner@test.cd", nil, true)
	member := createUser(t, "Member", "rsvp-member", "rsvp-member@test.cd", nil, true)
	outsider := createUser(t, "Outsider", "rsvp-outsider", "rsvp-outsider@test.cd", nil, true)

	grp := createGroup(t, owner, "RSVP Group", false)
	joinGroup(t, grp, member)

	day := time.Now().UTC().AddDate(0, 0, 21)
	sess := scheduleSession(t, owner, grp, "RSVP session", time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, time.UTC), 60)

	rsvp := func(t *testing.T, token, status string) *httptest.ResponseRecorder {
		t.Helper()
		body := marchallObj(t, echoapi.RSVPRequest{Status: status})
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+sess.ID+"/rsvp", token, body)
		app.ServeHTTP(rec, req)
		return rec
	}

	t.Run("non-member cannot see session", func(t *testing.T) {
		rec := rsvp(t, getToken(t, outsider), "going")
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("invalid status", func(t *testing.T) {
		rec := rsvp(t, getToken(t, member), "attending")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("going", func(t *testing.T) {
		rec := rsvp(t, getToken(t, member), "going")
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got session.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(got.Attendees) != 1 {
			t.Fatalf("attendees = %v; want 1 entry", got.Attendees)
		}
		att := got.Attendees[0]
		if att.UserID != member.ID || att.Status != session.StatusGoing {
			t.Errorf("attendee = %+v; want %v going", att, member.ID)
		}
	})

	t.Run("change of heart replaces entry", func(t *testing.T) {
		rec := rsvp(t, getToken(t, member), "not-going")
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got session.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(got.Attendees) != 1 {
			t.Fatalf("attendees = %v; want 1 entry", got.Attendees)
		}
		if got.Attendees[0].Status != session.StatusNotGoing {
			t.Errorf("status = %v; want %v", got.Attendees[0].Status, session.StatusNotGoing)
		}
	})
}

func Test_sessionApi_calendar(t *testing.T) {
	usr := createUser(t, "Cal", "cal-user", "cal-user@test.cd", nil, true)
	other := createUser(t, "Other", "cal-other", "cal-other@test.cd", nil, true)

	g1 := createGroup(t, usr, "Calendar G1", false)
	g2 := createGroup(t, usr, "Calendar G2", false)
	g3 := createGroup(t, other, "Calendar G3", false) // usr is not a member

	day := time.Now().UTC().AddDate(0, 0, 3)
	at := func(h int) time.Time { return time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, time.UTC) }

	s1 := scheduleSession(t, usr, g1, "Cal s1", at(9), 60)
	s2 := scheduleSession(t, usr, g2, "Cal s2", at(11), 60)
	scheduleSession(t, other, g3, "Cal s3", at(13), 60)
	scheduleSession(t, usr, g1, "Far future", at(9).AddDate(0, 3, 0), 60) // outside default window

	token := getToken(t, usr)
	req, rec := newAuthRequest(http.MethodGet, "/v1/sessions", token)
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var got []session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("sessions = %v; want 2", got)
	}
	// ordered by start, scoped to the user's groups only
	if got[0].ID != s1.ID || got[1].ID != s2.ID {
		t.Errorf("sessions = [%v, %v]; want [%v, %v]", got[0].ID, got[1].ID, s1.ID, s2.ID)
	}
}
