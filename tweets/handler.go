// Package tweets implements the short text posts that back the reserved
// tweet like target.
package tweets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"
	"vidtube/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxContentLen = 500

// Handler holds dependencies for the tweet endpoints.
type Handler struct {
	DB *db.CompatDB
}

// HandleCreate posts a tweet.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid request body"))
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || len(req.Content) > maxContentLen {
		httputil.WriteError(w, httputil.Errorf(400, "content is required and must be under %d characters", maxContentLen))
		return
	}

	tweetID := uuid.New().String()
	if _, err := h.DB.ExecContext(r.Context(),
		`INSERT INTO tweets (id, content, owner_id) VALUES (?, ?, ?)`,
		tweetID, req.Content, userID); err != nil {
		httputil.WriteError(w, fmt.Errorf("create tweet: %w", err))
		return
	}

	tweet, err := h.fetchTweet(r.Context(), tweetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 201, tweet, "tweet posted")
}

// HandleListForUser lists a user's tweets, newest first.
func (h *Handler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")
	if ownerID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "user id is required"))
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT t.id, t.content, t.likes_count, t.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM tweets t
		JOIN users u ON t.owner_id = u.id
		WHERE t.owner_id = ?
		ORDER BY t.created_at DESC
	`, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rows.Close()

	tweets := make([]model.Tweet, 0)
	for rows.Next() {
		var t model.Tweet
		var owner model.OwnerSummary
		if err := rows.Scan(&t.ID, &t.Content, &t.LikesCount, &t.CreatedAt,
			&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar); err != nil {
			httputil.WriteError(w, err)
			return
		}
		t.Owner = &owner
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, tweets, "tweets fetched")
}

// HandleDelete removes a tweet and its likes. Owner only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	tweetID := chi.URLParam(r, "tweetId")
	if tweetID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "tweet id is required"))
		return
	}

	var ownerID string
	err := h.DB.QueryRowContext(r.Context(), `SELECT owner_id FROM tweets WHERE id = ?`, tweetID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, httputil.Errorf(404, "tweet not found"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if ownerID != userID {
		httputil.WriteError(w, httputil.Errorf(403, "you do not own this tweet"))
		return
	}

	if _, err := h.DB.ExecContext(r.Context(), `DELETE FROM tweets WHERE id = ?`, tweetID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, nil, "tweet deleted")
}

func (h *Handler) fetchTweet(ctx context.Context, tweetID string) (model.Tweet, error) {
	var t model.Tweet
	var owner model.OwnerSummary
	err := h.DB.QueryRowContext(ctx, `
		SELECT t.id, t.content, t.likes_count, t.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM tweets t
		JOIN users u ON t.owner_id = u.id
		WHERE t.id = ?
	`, tweetID).Scan(&t.ID, &t.Content, &t.LikesCount, &t.CreatedAt,
		&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return t, httputil.Errorf(404, "tweet not found")
	}
	if err != nil {
		return t, fmt.Errorf("fetch tweet: %w", err)
	}
	t.Owner = &owner
	return t, nil
}
