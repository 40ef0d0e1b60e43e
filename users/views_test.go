package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"vidtube/auth"
	"vidtube/db"
)

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func seedUser(t *testing.T, d *db.CompatDB, id, username string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url)
		VALUES (?, ?, ?, ?, 'x', '/a.png')`, id, username, username+"@test.com", "User "+username); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func seedSubscription(t *testing.T, d *db.CompatDB, subscriberID, channelID string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO subscriptions (subscriber_id, channel_id) VALUES (?, ?)`,
		subscriberID, channelID); err != nil {
		t.Fatalf("seed subscription %s->%s: %v", subscriberID, channelID, err)
	}
}

func channelProfile(t *testing.T, h *Handler, username, viewerID string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/users/channel/"+username, nil)
	req = withChiParam(req, "userName", username)
	if viewerID != "" {
		req = req.WithContext(auth.WithUser(req.Context(), viewerID))
	}
	rec := httptest.NewRecorder()
	h.HandleGetChannelProfile(rec, req)
	if rec.Code != 200 {
		return rec, nil
	}
	return rec, decodeEnvelope(t, rec).Data.(map[string]interface{})
}

func TestHandleGetChannelProfile(t *testing.T) {
	h := newTestHandler(t)
	seedUser(t, h.DB, "u1", "channel")
	seedUser(t, h.DB, "u2", "fan")
	seedUser(t, h.DB, "u3", "other")
	seedSubscription(t, h.DB, "u2", "u1")
	seedSubscription(t, h.DB, "u3", "u1")
	seedSubscription(t, h.DB, "u1", "u3")

	// Subscribed viewer.
	_, data := channelProfile(t, h, "channel", "u2")
	if data["subscriberCount"].(float64) != 2 {
		t.Errorf("subscriberCount = %v, want 2", data["subscriberCount"])
	}
	if data["subscribedToCount"].(float64) != 1 {
		t.Errorf("subscribedToCount = %v, want 1", data["subscribedToCount"])
	}
	if data["isSubscribed"] != true {
		t.Error("subscribed viewer should see isSubscribed = true")
	}

	// Non-subscribed viewer.
	_, data = channelProfile(t, h, "channel", "u1")
	if data["isSubscribed"] != false {
		t.Error("owner viewing own channel should see isSubscribed = false")
	}

	// Anonymous viewer.
	_, data = channelProfile(t, h, "channel", "")
	if data["isSubscribed"] != false {
		t.Error("anonymous viewer should see isSubscribed = false")
	}
	if data["subscriberCount"].(float64) != 2 {
		t.Errorf("anonymous subscriberCount = %v, want 2", data["subscriberCount"])
	}
}

func TestHandleGetChannelProfileNotFound(t *testing.T) {
	h := newTestHandler(t)
	rec, _ := channelProfile(t, h, "ghost", "")
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetWatchHistory(t *testing.T) {
	h := newTestHandler(t)
	seedUser(t, h.DB, "u1", "uploader")
	seedUser(t, h.DB, "u2", "watcher")
	for _, v := range []struct{ id, title string }{
		{"v1", "first"}, {"v2", "second"}, {"v3", "third"},
	} {
		if _, err := h.DB.Exec(`INSERT INTO videos (id, file_url, thumbnail_url, title, owner_id)
			VALUES (?, '/v.mp4', '/t.jpg', ?, 'u1')`, v.id, v.title); err != nil {
			t.Fatalf("seed video: %v", err)
		}
	}
	// Watched v1 first, then v3, then v2: history returns v2, v3, v1.
	for _, w := range []struct{ videoID, at string }{
		{"v1", "2026-01-01T10:00:00Z"},
		{"v3", "2026-01-02T10:00:00Z"},
		{"v2", "2026-01-03T10:00:00Z"},
	} {
		if _, err := h.DB.Exec(`INSERT INTO watch_history (user_id, video_id, watched_at)
			VALUES ('u2', ?, ?)`, w.videoID, w.at); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	req := httptest.NewRequest("GET", "/api/users/watch-history?limit=2", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "u2"))
	rec := httptest.NewRecorder()
	h.HandleGetWatchHistory(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}

	page := decodeEnvelope(t, rec).Data.(map[string]interface{})
	if page["total"].(float64) != 3 {
		t.Errorf("total = %v, want 3", page["total"])
	}
	items := page["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	first := items[0].(map[string]interface{})["video"].(map[string]interface{})
	second := items[1].(map[string]interface{})["video"].(map[string]interface{})
	if first["id"] != "v2" || second["id"] != "v3" {
		t.Errorf("order = %v, %v; want v2, v3", first["id"], second["id"])
	}
	if first["owner"] == nil {
		t.Error("uploader summary missing from history entry")
	}

	// Second page carries the remaining entry.
	req = httptest.NewRequest("GET", "/api/users/watch-history?limit=2&page=2", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "u2"))
	rec = httptest.NewRecorder()
	h.HandleGetWatchHistory(rec, req)
	page = decodeEnvelope(t, rec).Data.(map[string]interface{})
	items = page["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("page 2 items = %d, want 1", len(items))
	}
	if v := items[0].(map[string]interface{})["video"].(map[string]interface{}); v["id"] != "v1" {
		t.Errorf("page 2 entry = %v, want v1", v["id"])
	}
}

func TestHandleGetWatchHistoryEmpty(t *testing.T) {
	h := newTestHandler(t)
	seedUser(t, h.DB, "u1", "loner")

	req := httptest.NewRequest("GET", "/api/users/watch-history", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	h.HandleGetWatchHistory(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	page := decodeEnvelope(t, rec).Data.(map[string]interface{})
	if page["total"].(float64) != 0 {
		t.Errorf("total = %v, want 0", page["total"])
	}
	if items := page["items"].([]interface{}); len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}
