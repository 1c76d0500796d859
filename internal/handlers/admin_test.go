package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/superorange0707/environment-booking/internal/model"
)

func TestHandleAuditLog(t *testing.T) {
	root := &model.User{ID: 1, Username: "root", Role: model.RoleAdmin}

	var gotEnvironmentID int64
	var gotLimit int
	store := &fakeStore{
		listAuditEntries: func(_ context.Context, environmentID int64, limit int) ([]model.AuditEntry, error) {
			gotEnvironmentID = environmentID
			gotLimit = limit
			return []model.AuditEntry{
				{ID: 1, EnvironmentID: 2, ActorID: 1, Action: model.AuditStatusChanged},
			}, nil
		},
	}
	h := newTestHandlers(store, &fakeAdmission{}, &fakePublisher{})

	t.Run("filtered by environment", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/admin/audit-log?environment_id=2&limit=10", nil)
		rr := serve(h, root, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
		}
		if gotEnvironmentID != 2 || gotLimit != 10 {
			t.Errorf("query passed environment_id=%d limit=%d, want 2 and 10", gotEnvironmentID, gotLimit)
		}

		var entries []model.AuditEntry
		if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(entries) != 1 || entries[0].Action != model.AuditStatusChanged {
			t.Errorf("entries = %+v, want one status change", entries)
		}
	})

	t.Run("oversized limit is capped", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/admin/audit-log?limit=100000", nil)
		rr := serve(h, root, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		if gotLimit != maxAuditEntries {
			t.Errorf("limit = %d, want capped at %d", gotLimit, maxAuditEntries)
		}
	})

	t.Run("malformed environment_id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/admin/audit-log?environment_id=abc", nil)
		rr := serve(h, root, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestHandleMe(t *testing.T) {
	h := newTestHandlers(&fakeStore{}, &fakeAdmission{}, &fakePublisher{})
	alice := &model.User{ID: 7, Username: "alice", Role: model.RoleUser}

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		rr := serve(h, alice, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}

		var user model.User
		if err := json.NewDecoder(rr.Body).Decode(&user); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("username = %s, want alice", user.Username)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		rr := serve(h, nil, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})
}

func TestHandleListUsers(t *testing.T) {
	store := &fakeStore{
		listUsers: func(context.Context) ([]model.User, error) {
			return []model.User{
				{ID: 1, Username: "root", Role: model.RoleAdmin},
				{ID: 7, Username: "alice", Role: model.RoleUser},
			}, nil
		},
	}
	h := newTestHandlers(store, &fakeAdmission{}, &fakePublisher{})

	req := httptest.NewRequest("GET", "/api/users", nil)
	rr := serve(h, &model.User{ID: 7, Username: "alice"}, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var users []model.User
	if err := json.NewDecoder(rr.Body).Decode(&users); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d users, want 2", len(users))
	}
}
