package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vidtube/httputil"
)

func testTokens() Tokens {
	return Tokens{
		AccessSecret:  "test-access-secret-1234",
		RefreshSecret: "test-refresh-secret-1234",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
}

func TestIssuePairRoundTrip(t *testing.T) {
	tk := testTokens()
	pair, err := tk.IssuePair("u1", "alice", "alice@test.com")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token in pair")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens are identical")
	}

	uid, err := tk.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if uid != "u1" {
		t.Errorf("access subject = %q, want u1", uid)
	}

	uid, err = tk.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if uid != "u1" {
		t.Errorf("refresh subject = %q, want u1", uid)
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	tk := testTokens()
	pair, err := tk.IssuePair("u1", "alice", "alice@test.com")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := tk.ParseAccess(pair.RefreshToken); err == nil {
		t.Error("refresh token accepted as access token")
	}
	if _, err := tk.ParseRefresh(pair.AccessToken); err == nil {
		t.Error("access token accepted as refresh token")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	tk := testTokens()
	tk.AccessTTL = -time.Minute
	pair, err := tk.IssuePair("u1", "alice", "alice@test.com")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	_, err = tk.ParseAccess(pair.AccessToken)
	if err == nil {
		t.Fatal("expired token accepted")
	}
	var apiErr *httputil.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Errorf("expected 401 APIError, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	tk := testTokens()
	pair, err := tk.IssuePair("u1", "alice", "alice@test.com")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := tk.ParseAccess(tampered); err == nil {
		t.Error("tampered token accepted")
	}
	if _, err := tk.ParseAccess("not-a-jwt"); err == nil {
		t.Error("garbage token accepted")
	}
}

// --- middleware ---

func echoUserID(w http.ResponseWriter, r *http.Request) {
	uid, ok := UserID(r)
	if !ok {
		uid = "<anonymous>"
	}
	w.Write([]byte(uid))
}

func TestRequireRejectsMissingToken(t *testing.T) {
	mw := &Middleware{Tokens: testTokens()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/users/me", nil)

	mw.Require(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRejectsInvalidToken(t *testing.T) {
	mw := &Middleware{Tokens: testTokens()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer bogus")

	mw.Require(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequirePassesValidToken(t *testing.T) {
	tk := testTokens()
	mw := &Middleware{Tokens: tk}
	pair, err := tk.IssuePair("u42", "alice", "alice@test.com")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	mw.Require(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "u42" {
		t.Errorf("resolved user = %q, want u42", rec.Body.String())
	}
}

func TestOptionalAllowsAnonymous(t *testing.T) {
	mw := &Middleware{Tokens: testTokens()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/videos", nil)

	mw.Optional(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "<anonymous>" {
		t.Errorf("anonymous request resolved to %q", rec.Body.String())
	}
}

func TestOptionalResolvesValidToken(t *testing.T) {
	tk := testTokens()
	mw := &Middleware{Tokens: tk}
	pair, err := tk.IssuePair("u7", "bob", "bob@test.com")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	mw.Optional(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)
	if rec.Body.String() != "u7" {
		t.Errorf("resolved user = %q, want u7", rec.Body.String())
	}
}
