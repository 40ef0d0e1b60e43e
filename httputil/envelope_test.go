package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, 201, map[string]string{"id": "abc"}, "created")

	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	env := decodeEnvelope(t, rec)
	if env.StatusCode != 201 {
		t.Errorf("envelope statusCode = %d, want 201", env.StatusCode)
	}
	if env.Message != "created" {
		t.Errorf("envelope message = %q", env.Message)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok || data["id"] != "abc" {
		t.Errorf("envelope data = %#v", env.Data)
	}
}

func TestWriteErrorKeepsAPIErrorStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Errorf(404, "video not found"))

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.StatusCode != 404 || env.Message != "video not found" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Data != nil {
		t.Errorf("error envelope data = %#v, want null", env.Data)
	}
}

func TestWriteErrorUnwrapsAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("toggle like: %w", Errorf(409, "conflict")))

	if rec.Code != 409 {
		t.Errorf("status = %d, want 409 from wrapped APIError", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "conflict" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused on host db-internal:5432"))

	if rec.Code != 500 {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "internal server error" {
		t.Errorf("internal details leaked: %q", env.Message)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(400, "%s is required", "title")
	if err.Status != 400 {
		t.Errorf("status = %d", err.Status)
	}
	if err.Error() != "title is required" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, 10},
		{"explicit", "page=3&limit=25", 3, 25},
		{"zero page clamps", "page=0", 1, 10},
		{"negative limit clamps", "limit=-5", 1, 10},
		{"garbage ignored", "page=abc&limit=xyz", 1, 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/videos?"+tc.query, nil)
			page, limit := PageParams(r, 10)
			if page != tc.wantPage || limit != tc.wantLimit {
				t.Errorf("PageParams(%q) = (%d, %d), want (%d, %d)",
					tc.query, page, limit, tc.wantPage, tc.wantLimit)
			}
		})
	}
}
