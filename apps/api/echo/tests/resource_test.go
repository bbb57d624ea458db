package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/kikundi/core/resource"
)

func Test_resourceApi(t *testing.T) {
	owner := createUser(t, "Owner", "res-owner", "res-owner@test.cd", nil, true)
	member := createUser(t, "Member", "res-member", "res-member@test.cd", nil, true)
	outsider := createUser(t, "Outsider", "res-outsider", "res-outsider@test.cd", nil, true)

	grp := createGroup(t, owner, "Resource Group", false)
	joinGroup(t, grp, member)

	memberToken := getToken(t, member)
	path := "/v1/groups/" + grp.ID + "/resources"

	var shared resource.Resource

	t.Run("member shares a link", func(t *testing.T) {
		body := marchallObj(t, resource.NewResource{
			Title: "Linear algebra cheat sheet",
			URL:   "https://example.com/cheatsheet.pdf",
			Kind:  "link",
		})
		req, rec := newAuthRequest(http.MethodPost, path, memberToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &shared); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if shared.AddedBy != member.ID {
			t.Errorf("AddedBy = %v; want %v", shared.AddedBy, member.ID)
		}
	})

	t.Run("non-member cannot share", func(t *testing.T) {
		body := marchallObj(t, resource.NewResource{Title: "Nope", URL: "https://example.com", Kind: "link"})
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, outsider), body)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("listed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, memberToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resources []resource.Resource
		if err := json.Unmarshal(rec.Body.Bytes(), &resources); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(resources) != 1 || resources[0].ID != shared.ID {
			t.Errorf("resources = %v; want [%v]", resources, shared.ID)
		}
	})

	t.Run("hidden from non-members", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/resources/"+shared.ID, getToken(t, outsider))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("owner deletes any resource", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/resources/"+shared.ID, getToken(t, owner))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	})
}
