// Package comments implements per-video comments with owner-gated edits.
package comments

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

const (
	maxContentLen    = 5000
	defaultPageLimit = 20
)

// Handler holds dependencies for the comment endpoints.
type Handler struct {
	DB *db.CompatDB
}

type commentRequest struct {
	Content string `json:"content"`
}

func (req *commentRequest) validate() error {
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || len(req.Content) > maxContentLen {
		return httputil.Errorf(400, "content is required and must be under %d characters", maxContentLen)
	}
	return nil
}

// HandleCreate adds a comment to a video.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	videoID := chi.URLParam(r, "videoId")
	if videoID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "video id is required"))
		return
	}

	httputil.MaxBody(r, httputil.DefaultBodyLimit)
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var one int
	err := h.DB.QueryRowContext(r.Context(), `SELECT 1 FROM videos WHERE id = ?`, videoID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, httputil.Errorf(404, "video not found"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	commentID := uuid.New().String()
	if _, err := h.DB.ExecContext(r.Context(),
		`INSERT INTO comments (id, content, video_id, owner_id) VALUES (?, ?, ?, ?)`,
		commentID, req.Content, videoID, userID); err != nil {
		httputil.WriteError(w, fmt.Errorf("create comment: %w", err))
		return
	}

	comment, err := h.fetchComment(r.Context(), commentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 201, comment, "comment added")
}

// HandleListForVideo lists a video's comments, newest first, paginated.
func (h *Handler) HandleListForVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	if videoID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "video id is required"))
		return
	}
	page, limit := httputil.PageParams(r, defaultPageLimit)

	var total int64
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM comments WHERE video_id = ?`, videoID).Scan(&total); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT c.id, c.content, c.video_id, c.likes_count, c.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM comments c
		JOIN users u ON c.owner_id = u.id
		WHERE c.video_id = ?
		ORDER BY c.created_at DESC
		LIMIT ? OFFSET ?
	`, videoID, limit, (page-1)*limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var c model.Comment
		var owner model.OwnerSummary
		if err := rows.Scan(&c.ID, &c.Content, &c.VideoID, &c.LikesCount, &c.CreatedAt,
			&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar); err != nil {
			httputil.WriteError(w, err)
			return
		}
		c.Owner = &owner
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteData(w, 200, model.Page{Items: comments, Page: page, Limit: limit, Total: total},
		"comments fetched")
}

// HandleUpdate edits a comment's content. Owner only.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	commentID := chi.URLParam(r, "commentId")

	if err := h.requireOwner(r.Context(), commentID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.MaxBody(r, httputil.DefaultBodyLimit)
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.DB.ExecContext(r.Context(),
		fmt.Sprintf(`UPDATE comments SET content = ?, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
		req.Content, commentID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	comment, err := h.fetchComment(r.Context(), commentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, comment, "comment updated")
}

// HandleDelete removes a comment and its likes. Owner only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	commentID := chi.URLParam(r, "commentId")

	if err := h.requireOwner(r.Context(), commentID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.DB.ExecContext(r.Context(), `DELETE FROM comments WHERE id = ?`, commentID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, nil, "comment deleted")
}

func (h *Handler) requireOwner(ctx context.Context, commentID, userID string) error {
	if commentID == "" {
		return httputil.Errorf(400, "comment id is required")
	}
	var ownerID string
	err := h.DB.QueryRowContext(ctx, `SELECT owner_id FROM comments WHERE id = ?`, commentID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return httputil.Errorf(404, "comment not found")
	}
	if err != nil {
		return fmt.Errorf("look up comment owner: %w", err)
	}
	if ownerID != userID {
		return httputil.Errorf(403, "you do not own this comment")
	}
	return nil
}

func (h *Handler) fetchComment(ctx context.Context, commentID string) (model.Comment, error) {
	var c model.Comment
	var owner model.OwnerSummary
	err := h.DB.QueryRowContext(ctx, `
		SELECT c.id, c.content, c.video_id, c.likes_count, c.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM comments c
		JOIN users u ON c.owner_id = u.id
		WHERE c.id = ?
	`, commentID).Scan(&c.ID, &c.Content, &c.VideoID, &c.LikesCount, &c.CreatedAt,
		&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return c, httputil.Errorf(404, "comment not found")
	}
	if err != nil {
		return c, fmt.Errorf("fetch comment: %w", err)
	}
	c.Owner = &owner
	return c, nil
}
