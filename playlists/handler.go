// Package playlists implements owner-gated playlist CRUD and the joined
// playlist-with-videos read view.
package playlists

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
	maxNameLen        = 200
	maxDescriptionLen = 2000
)

// Handler holds dependencies for the playlist endpoints.
type Handler struct {
	DB *db.CompatDB
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (req *playlistRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxNameLen {
		return httputil.Errorf(400, "name is required and must be under %d characters", maxNameLen)
	}
	if len(req.Description) > maxDescriptionLen {
		return httputil.Errorf(400, "description must be under %d characters", maxDescriptionLen)
	}
	return nil
}

// HandleCreate creates an empty playlist owned by the caller.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	id := uuid.New().String()
	if _, err := h.DB.ExecContext(r.Context(),
		`INSERT INTO playlists (id, name, description, owner_id) VALUES (?, ?, ?, ?)`,
		id, req.Name, req.Description, userID); err != nil {
		httputil.WriteError(w, fmt.Errorf("create playlist: %w", err))
		return
	}

	playlist, err := h.fetchPlaylist(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 201, playlist, "playlist created")
}

// HandleGet returns one playlist with its owner summary and ordered videos.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistId")
	if playlistID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "playlist id is required"))
		return
	}

	playlist, err := h.fetchPlaylist(r.Context(), playlistID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT v.id, v.file_url, v.thumbnail_url, v.title, v.description,
		       v.duration_seconds, v.view_count, v.is_public, v.likes_count, v.created_at
		FROM playlist_videos pv
		JOIN videos v ON pv.video_id = v.id
		WHERE pv.playlist_id = ?
		ORDER BY pv.position ASC
	`, playlistID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rows.Close()

	playlist.Videos = make([]model.Video, 0)
	for rows.Next() {
		var v model.Video
		var isPublic int
		if err := rows.Scan(&v.ID, &v.FileURL, &v.ThumbnailURL, &v.Title, &v.Description,
			&v.DurationSeconds, &v.ViewCount, &isPublic, &v.LikesCount, &v.CreatedAt); err != nil {
			httputil.WriteError(w, err)
			return
		}
		v.IsPublic = isPublic == 1
		playlist.Videos = append(playlist.Videos, v)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	playlist.VideoCount = len(playlist.Videos)

	httputil.WriteData(w, 200, playlist, "playlist fetched")
}

// HandleListForUser lists a user's playlists with video counts.
func (h *Handler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")
	if ownerID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "user id is required"))
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT p.id, p.name, p.description, p.created_at, p.updated_at,
		       COUNT(pv.video_id)
		FROM playlists p
		LEFT JOIN playlist_videos pv ON p.id = pv.playlist_id
		WHERE p.owner_id = ?
		GROUP BY p.id, p.name, p.description, p.created_at, p.updated_at
		ORDER BY p.created_at DESC
	`, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rows.Close()

	playlists := make([]model.Playlist, 0)
	for rows.Next() {
		var p model.Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.VideoCount); err != nil {
			httputil.WriteError(w, err)
			return
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, playlists, "playlists fetched")
}

// HandleUpdate renames a playlist. Owner only.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	playlistID := chi.URLParam(r, "playlistId")

	if err := h.requireOwner(r.Context(), playlistID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.MaxBody(r, httputil.DefaultBodyLimit)
	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.DB.ExecContext(r.Context(),
		fmt.Sprintf(`UPDATE playlists SET name = ?, description = ?, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
		req.Name, req.Description, playlistID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	playlist, err := h.fetchPlaylist(r.Context(), playlistID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, playlist, "playlist updated")
}

// HandleDelete removes a playlist and its memberships. Owner only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	playlistID := chi.URLParam(r, "playlistId")

	if err := h.requireOwner(r.Context(), playlistID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.DB.ExecContext(r.Context(), `DELETE FROM playlists WHERE id = ?`, playlistID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, nil, "playlist deleted")
}

// HandleAddVideo appends a video to a playlist. Owner only; adding a video
// that is already present is rejected without changing the set.
func (h *Handler) HandleAddVideo(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	playlistID := chi.URLParam(r, "playlistId")
	videoID := chi.URLParam(r, "videoId")

	if err := h.requireOwner(r.Context(), playlistID, userID); err != nil {
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

	res, err := h.DB.ExecContext(r.Context(), `
		INSERT INTO playlist_videos (playlist_id, video_id, position)
		VALUES (?, ?, COALESCE((SELECT MAX(position) + 1 FROM playlist_videos WHERE playlist_id = ?), 0))
		ON CONFLICT DO NOTHING
	`, playlistID, videoID, playlistID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if added, _ := res.RowsAffected(); added == 0 {
		httputil.WriteError(w, httputil.Errorf(409, "video is already in this playlist"))
		return
	}
	httputil.WriteData(w, 200, nil, "video added to playlist")
}

// HandleRemoveVideo removes a video from a playlist. Owner only.
func (h *Handler) HandleRemoveVideo(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	playlistID := chi.URLParam(r, "playlistId")
	videoID := chi.URLParam(r, "videoId")

	if err := h.requireOwner(r.Context(), playlistID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM playlist_videos WHERE playlist_id = ? AND video_id = ?`, playlistID, videoID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if removed, _ := res.RowsAffected(); removed == 0 {
		httputil.WriteError(w, httputil.Errorf(404, "video is not in this playlist"))
		return
	}
	httputil.WriteData(w, 200, nil, "video removed from playlist")
}

// requireOwner resolves the playlist and checks the caller owns it.
func (h *Handler) requireOwner(ctx context.Context, playlistID, userID string) error {
	if playlistID == "" {
		return httputil.Errorf(400, "playlist id is required")
	}
	var ownerID string
	err := h.DB.QueryRowContext(ctx, `SELECT owner_id FROM playlists WHERE id = ?`, playlistID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return httputil.Errorf(404, "playlist not found")
	}
	if err != nil {
		return fmt.Errorf("look up playlist owner: %w", err)
	}
	if ownerID != userID {
		return httputil.Errorf(403, "you do not own this playlist")
	}
	return nil
}

// fetchPlaylist loads the playlist row with its owner summary; videos are
// attached by the single-playlist view.
func (h *Handler) fetchPlaylist(ctx context.Context, playlistID string) (model.Playlist, error) {
	var p model.Playlist
	var owner model.OwnerSummary
	err := h.DB.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.description, p.created_at, p.updated_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM playlists p
		JOIN users u ON p.owner_id = u.id
		WHERE p.id = ?
	`, playlistID).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt,
		&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return p, httputil.Errorf(404, "playlist not found")
	}
	if err != nil {
		return p, fmt.Errorf("fetch playlist: %w", err)
	}
	p.Owner = &owner
	return p, nil
}
