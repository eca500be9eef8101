package carsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

func newTestRemote(t *testing.T, handler http.HandlerFunc) (RemoteStore, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
			body:   body,
		})
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	t.Setenv("REMOTE_API_BASE_URL", server.URL)
	t.Setenv("REMOTE_API_KEY", "test-anon-key")
	t.Setenv("REMOTE_ACCESS_TOKEN", "")
	t.Setenv("REMOTE_RATE_LIMIT_PER_MIN", "600000")

	remote, err := NewRemoteStore()
	if err != nil {
		t.Fatalf("NewRemoteStore: %v", err)
	}
	return remote, &requests
}

func TestRemoteUpsertRequestShape(t *testing.T) {
	remote, requests := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	payload := map[string]interface{}{"id": "abc", "status": "PARKED"}
	if err := remote.Upsert(context.Background(), "tickets", "abc", payload); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	req := (*requests)[0]
	if req.method != http.MethodPost || req.path != "/rest/v1/tickets" {
		t.Fatalf("unexpected request: %s %s", req.method, req.path)
	}
	if req.header.Get("apikey") != "test-anon-key" {
		t.Fatalf("apikey header missing: %v", req.header)
	}
	if req.header.Get("Authorization") != "Bearer test-anon-key" {
		t.Fatalf("bearer header missing: %v", req.header)
	}
	if got := req.header.Get("Prefer"); got != "resolution=merge-duplicates,return=minimal" {
		t.Fatalf("upsert must request merge-duplicates, got %q", got)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(req.body, &rows); err != nil || len(rows) != 1 {
		t.Fatalf("body must be a single-row array: %s", req.body)
	}
	if rows[0]["status"] != "PARKED" {
		t.Fatalf("payload lost: %v", rows[0])
	}
}

func TestRemoteUpdateAndDeleteFilterById(t *testing.T) {
	remote, requests := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	if err := remote.Update(ctx, "tickets", "abc", map[string]interface{}{"status": "PAID"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := remote.Delete(ctx, "tickets", "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	update := (*requests)[0]
	if update.method != http.MethodPatch || update.query != "id=eq.abc" {
		t.Fatalf("unexpected update request: %s ?%s", update.method, update.query)
	}
	del := (*requests)[1]
	if del.method != http.MethodDelete || del.query != "id=eq.abc" {
		t.Fatalf("unexpected delete request: %s ?%s", del.method, del.query)
	}
}

func TestRemoteErrorDecodesSQLState(t *testing.T) {
	remote, _ := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint","details":"Key (phone)=(+959777000111) already exists."}`))
	})

	err := remote.Upsert(context.Background(), "customers", "abc", map[string]interface{}{"id": "abc"})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if remoteErr.Code != RemoteCodeUniqueViolation {
		t.Fatalf("expected code 23505, got %s", remoteErr.Code)
	}
}

func TestRemoteErrorWithoutCodeStaysGeneric(t *testing.T) {
	remote, _ := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	})

	err := remote.Delete(context.Background(), "tickets", "abc")
	if err == nil {
		t.Fatal("expected error")
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		t.Fatalf("codeless failure must not classify as a remote error: %v", err)
	}
}

func TestRemoteFindByReturnsNilWhenEmpty(t *testing.T) {
	remote, requests := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	row, err := remote.FindBy(context.Background(), "customers", "phone", "+959777000111")
	if err != nil {
		t.Fatalf("FindBy: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil for no match, got %v", row)
	}

	req := (*requests)[0]
	if req.method != http.MethodGet || req.query != "phone=eq.%2B959777000111&limit=1" {
		t.Fatalf("unexpected lookup request: %s ?%s", req.method, req.query)
	}
}

func TestAuthValid(t *testing.T) {
	t.Setenv("REMOTE_API_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("REMOTE_API_KEY", "anon")
	t.Setenv("REMOTE_RATE_LIMIT_PER_MIN", "600000")

	// Anon key only: no expiry to check.
	t.Setenv("REMOTE_ACCESS_TOKEN", "")
	remote, err := NewRemoteStore()
	if err != nil {
		t.Fatalf("NewRemoteStore: %v", err)
	}
	if !remote.(AuthChecker).AuthValid() {
		t.Fatal("anon key access must always count as valid")
	}

	expired := signedToken(t, time.Now().Add(-time.Hour))
	t.Setenv("REMOTE_ACCESS_TOKEN", expired)
	remote, err = NewRemoteStore()
	if err != nil {
		t.Fatalf("NewRemoteStore: %v", err)
	}
	if remote.(AuthChecker).AuthValid() {
		t.Fatal("expired session token must report invalid")
	}

	live := signedToken(t, time.Now().Add(time.Hour))
	t.Setenv("REMOTE_ACCESS_TOKEN", live)
	remote, err = NewRemoteStore()
	if err != nil {
		t.Fatalf("NewRemoteStore: %v", err)
	}
	if !remote.(AuthChecker).AuthValid() {
		t.Fatal("live session token must report valid")
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": float64(exp.Unix())})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
