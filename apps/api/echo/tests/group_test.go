package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	echoapi "github.com/trezcool/kikundi/apps/api/echo"
	"github.com/trezcool/kikundi/core/group"
)

func Test_groupApi_create(t *testing.T) {
	usr := createUser(t, "Creator", "grp-creator", "grp-creator@test.cd", nil, true)
	token := getToken(t, usr)

	t.Run("auth required", func(t *testing.T) {
		body := marchallObj(t, group.NewGroup{Name: "Unauthed", Subject: "Math"})
		req, rec := newRequest(http.MethodPost, "/v1/groups", body)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("created", func(t *testing.T) {
		body := marchallObj(t, group.NewGroup{Name: "Linear Algebra Crew", Subject: "Math"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var grp group.Group
		if err := json.Unmarshal(rec.Body.Bytes(), &grp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if grp.OwnerID != usr.ID {
			t.Errorf("OwnerID = %v; want %v", grp.OwnerID, usr.ID)
		}
		// creator is seeded as owner member
		if grp.MemberCount != 1 {
			t.Errorf("MemberCount = %v; want 1", grp.MemberCount)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		body := marchallObj(t, group.NewGroup{Name: "linear algebra crew", Subject: "Math"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("name and subject required", func(t *testing.T) {
		body := marchallObj(t, group.NewGroup{})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}

func Test_groupApi_query(t *testing.T) {
	usr := createUser(t, "Querier", "grp-querier", "grp-querier@test.cd", nil, true)
	other := createUser(t, "Other", "grp-other", "grp-other@test.cd", nil, true)

	g1 := createGroup(t, usr, "Query Biology", false)
	createGroup(t, other, "Query Chemistry", false)
	token := getToken(t, usr)

	list := func(t *testing.T, query string) []group.Group {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/v1/groups?"+query, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var groups []group.Group
		if err := json.Unmarshal(rec.Body.Bytes(), &groups); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		return groups
	}

	t.Run("search", func(t *testing.T) {
		groups := list(t, url.Values{"search": {"query biol"}}.Encode())
		if len(groups) != 1 || groups[0].ID != g1.ID {
			t.Errorf("groups = %v; want [%v]", groups, g1.ID)
		}
	})

	t.Run("mine", func(t *testing.T) {
		groups := list(t, "mine=true")
		if len(groups) != 1 || groups[0].ID != g1.ID {
			t.Errorf("groups = %v; want [%v]", groups, g1.ID)
		}
	})
}

func Test_groupApi_membership(t *testing.T) {
	owner := createUser(t, "Owner", "mbr-owner", "mbr-owner@test.cd", nil, true)
	joiner := createUser(t, "Joiner", "mbr-joiner", "mbr-joiner@test.cd", nil, true)

	grp := createGroup(t, owner, "Membership Group", false)
	privGrp := createGroup(t, owner, "Membership Private", true)

	ownerToken := getToken(t, owner)
	joinerToken := getToken(t, joiner)

	t.Run("private group hidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/groups/"+privGrp.ID, joinerToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("public group visible to non-members", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/groups/"+grp.ID, joinerToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("members listing is member-only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/groups/"+grp.ID+"/members", joinerToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("join", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/join", joinerToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var mbr group.Member
		if err := json.Unmarshal(rec.Body.Bytes(), &mbr); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if mbr.UserID != joiner.ID || mbr.Role != group.MemberRoleMember {
			t.Errorf("member = %+v; want %v as member", mbr, joiner.ID)
		}
	})

	t.Run("join is idempotent", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/join", joinerToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("promote member", func(t *testing.T) {
		body := marchallObj(t, echoapi.SetMemberRoleRequest{Role: group.MemberRoleOrganizer})
		req, rec := newAuthRequest(http.MethodPut, "/v1/groups/"+grp.ID+"/members/"+joiner.ID, ownerToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var mbr group.Member
		if err := json.Unmarshal(rec.Body.Bytes(), &mbr); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if mbr.Role != group.MemberRoleOrganizer {
			t.Errorf("Role = %v; want %v", mbr.Role, group.MemberRoleOrganizer)
		}
	})

	t.Run("non-owner cannot promote", func(t *testing.T) {
		body := marchallObj(t, echoapi.SetMemberRoleRequest{Role: group.MemberRoleOrganizer})
		req, rec := newAuthRequest(http.MethodPut, "/v1/groups/"+grp.ID+"/members/"+owner.ID, joinerToken, body)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("owner cannot demote self", func(t *testing.T) {
		body := marchallObj(t, echoapi.SetMemberRoleRequest{Role: group.MemberRoleMember})
		req, rec := newAuthRequest(http.MethodPut, "/v1/groups/"+grp.ID+"/members/"+owner.ID, ownerToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}

		mbr, err := grpSvc.GetMember(context.Background(), grp.ID, owner.ID)
		if err != nil {
			t.Fatalf("getting owner membership: %v", err)
		}
		if mbr.Role != group.MemberRoleOwner {
			t.Errorf("Role = %v; want %v", mbr.Role, group.MemberRoleOwner)
		}
	})

	t.Run("owner cannot leave", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/leave", ownerToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("leave", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/leave", joinerToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	})

	t.Run("delete owner only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/groups/"+grp.ID, joinerToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/groups/"+grp.ID, ownerToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	})
}
