// Package videos implements video publishing, the joined read views and the
// owner-gated mutations.
package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"
	"vidtube/media"
	"vidtube/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxUploadSize    = 256 << 20
	defaultPageLimit = 10
)

// Uploader is the slice of the media store the video handlers need.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectKey string, probeDuration bool) (*media.Result, error)
}

// Handler holds dependencies for the video endpoints.
type Handler struct {
	DB    *db.CompatDB
	Media Uploader
}

// HandlePublish uploads a new video. Multipart form: title and description
// text fields, videoFile and thumbnail files. The video's duration comes
// from probing the uploaded file.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid multipart form"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		httputil.WriteError(w, httputil.Errorf(400, "title is required"))
		return
	}
	if description == "" {
		httputil.WriteError(w, httputil.Errorf(400, "description is required"))
		return
	}

	videoRes, err := h.uploadFormFile(r, "videoFile", "videos", true)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	thumbRes, err := h.uploadFormFile(r, "thumbnail", "thumbnails", false)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	videoID := uuid.New().String()
	_, err = h.DB.ExecContext(r.Context(),
		`INSERT INTO videos (id, file_url, thumbnail_url, title, description, duration_seconds, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		videoID, videoRes.URL, thumbRes.URL, title, description, videoRes.DurationSeconds, userID)
	if err != nil {
		httputil.WriteError(w, fmt.Errorf("create video: %w", err))
		return
	}

	video, err := h.fetchVideoWithOwner(r.Context(), videoID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 201, video, "video published successfully")
}

func (h *Handler) uploadFormFile(r *http.Request, field, prefix string, probe bool) (*media.Result, error) {
	file := r.MultipartForm.File[field]
	if len(file) == 0 {
		return nil, httputil.Errorf(400, "%s is required", field)
	}
	path, err := media.StageFile(file[0])
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", field, err)
	}
	res, err := h.Media.Upload(r.Context(), path, media.ObjectKey(prefix, file[0].Filename), probe)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", field, err)
	}
	return res, nil
}

// sortColumns is the whitelist of user-selectable sort fields.
var sortColumns = map[string]string{
	"createdAt":       "created_at",
	"viewCount":       "view_count",
	"durationSeconds": "duration_seconds",
	"likesCount":      "likes_count",
	"title":           "title",
}

// HandleGetAllVideos lists videos with visibility filtering, optional
// case-insensitive substring search over title/description, a sort
// whitelist and pagination.
//
// Visibility: with a userId parameter the listing is scoped to that owner —
// the owner themselves sees private and public, everyone else only public.
// Without userId only public videos are returned.
func (h *Handler) HandleGetAllVideos(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserID(r)
	page, limit := httputil.PageParams(r, defaultPageLimit)
	q := r.URL.Query()

	var conds []string
	var args []interface{}

	if ownerID := q.Get("userId"); ownerID != "" {
		conds = append(conds, "v.owner_id = ?")
		args = append(args, ownerID)
		if ownerID != viewerID {
			conds = append(conds, "v.is_public = 1")
		}
	} else {
		conds = append(conds, "v.is_public = 1")
	}

	if search := strings.TrimSpace(q.Get("query")); search != "" {
		pattern := "%" + search + "%"
		conds = append(conds, fmt.Sprintf("(%s OR %s)",
			h.DB.LikeInsensitive("v.title"), h.DB.LikeInsensitive("v.description")))
		args = append(args, pattern, pattern)
	}

	where := "WHERE " + strings.Join(conds, " AND ")

	orderBy := "v.created_at DESC"
	if col, ok := sortColumns[q.Get("sortBy")]; ok {
		dir := "DESC"
		if strings.EqualFold(q.Get("sortType"), "asc") {
			dir = "ASC"
		}
		orderBy = fmt.Sprintf("v.%s %s", col, dir)
	}

	var total int64
	if err := h.DB.QueryRowContext(r.Context(),
		"SELECT COUNT(*) FROM videos v "+where, args...).Scan(&total); err != nil {
		httputil.WriteError(w, err)
		return
	}

	listArgs := append(args, limit, (page-1)*limit)
	rows, err := h.DB.QueryContext(r.Context(), fmt.Sprintf(`
		SELECT v.id, v.file_url, v.thumbnail_url, v.title, v.description,
		       v.duration_seconds, v.view_count, v.is_public, v.likes_count, v.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM videos v
		JOIN users u ON v.owner_id = u.id
		%s
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, where, orderBy), listArgs...)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rows.Close()

	videos := make([]model.Video, 0)
	for rows.Next() {
		v, err := scanVideoWithOwner(rows)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteData(w, 200, model.Page{Items: videos, Page: page, Limit: limit, Total: total},
		"videos fetched successfully")
}

// HandleGetVideo returns a single video with its uploader summary, bumps the
// view count and, for authenticated viewers, records the watch in their
// history.
func (h *Handler) HandleGetVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	if videoID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "video id is required"))
		return
	}

	video, err := h.fetchVideoWithOwner(r.Context(), videoID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.DB.ExecContext(r.Context(),
		`UPDATE videos SET view_count = view_count + 1 WHERE id = ?`, videoID); err != nil {
		log.Error().Err(err).Str("video_id", videoID).Msg("bump view count")
	} else {
		video.ViewCount++
	}

	if viewerID, ok := auth.UserID(r); ok {
		if err := h.recordWatch(r.Context(), viewerID, videoID); err != nil {
			log.Error().Err(err).Str("video_id", videoID).Msg("record watch history")
		}
	}

	httputil.WriteData(w, 200, video, "video fetched successfully")
}

// recordWatch upserts the history row; re-watching moves the entry to the
// front rather than duplicating it.
func (h *Handler) recordWatch(ctx context.Context, userID, videoID string) error {
	_, err := h.DB.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO watch_history (user_id, video_id, watched_at)
		VALUES (?, ?, %s)
		ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = excluded.watched_at
	`, h.DB.NowUTC()), userID, videoID)
	return err
}

// HandleUpdate replaces a video's title and description, and optionally its
// thumbnail. Owner only.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	videoID := chi.URLParam(r, "videoId")

	if err := h.requireOwner(r.Context(), videoID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid multipart form"))
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		httputil.WriteError(w, httputil.Errorf(400, "title and description are required"))
		return
	}

	thumbnailURL := ""
	if files := r.MultipartForm.File["thumbnail"]; len(files) > 0 {
		res, err := h.uploadFormFile(r, "thumbnail", "thumbnails", false)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		thumbnailURL = res.URL
	}

	if thumbnailURL != "" {
		_, err := h.DB.ExecContext(r.Context(),
			fmt.Sprintf(`UPDATE videos SET title = ?, description = ?, thumbnail_url = ?, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
			title, description, thumbnailURL, videoID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	} else {
		_, err := h.DB.ExecContext(r.Context(),
			fmt.Sprintf(`UPDATE videos SET title = ?, description = ?, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
			title, description, videoID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	video, err := h.fetchVideoWithOwner(r.Context(), videoID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, video, "video updated successfully")
}

// HandleDelete removes a video. Owner only. Likes, comments, playlist
// entries and history rows go with it via foreign-key cascades.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	videoID := chi.URLParam(r, "videoId")

	if err := h.requireOwner(r.Context(), videoID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.DB.ExecContext(r.Context(), `DELETE FROM videos WHERE id = ?`, videoID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, nil, "video deleted successfully")
}

// HandleTogglePublish flips a video between public and private. Owner only.
func (h *Handler) HandleTogglePublish(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	videoID := chi.URLParam(r, "videoId")

	if err := h.requireOwner(r.Context(), videoID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.DB.ExecContext(r.Context(),
		fmt.Sprintf(`UPDATE videos SET is_public = 1 - is_public, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
		videoID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	video, err := h.fetchVideoWithOwner(r.Context(), videoID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, video, "video publish status updated")
}

// requireOwner resolves the video and checks the caller owns it: 400 on a
// missing id, 404 when the video does not exist, 403 for non-owners.
func (h *Handler) requireOwner(ctx context.Context, videoID, userID string) error {
	if videoID == "" {
		return httputil.Errorf(400, "video id is required")
	}
	var ownerID string
	err := h.DB.QueryRowContext(ctx, `SELECT owner_id FROM videos WHERE id = ?`, videoID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return httputil.Errorf(404, "video not found")
	}
	if err != nil {
		return fmt.Errorf("look up video owner: %w", err)
	}
	if ownerID != userID {
		return httputil.Errorf(403, "you do not own this video")
	}
	return nil
}

// fetchVideoWithOwner loads one video joined with its uploader summary.
// Sensitive uploader columns are simply never selected.
func (h *Handler) fetchVideoWithOwner(ctx context.Context, videoID string) (model.Video, error) {
	row := h.DB.QueryRowContext(ctx, `
		SELECT v.id, v.file_url, v.thumbnail_url, v.title, v.description,
		       v.duration_seconds, v.view_count, v.is_public, v.likes_count, v.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM videos v
		JOIN users u ON v.owner_id = u.id
		WHERE v.id = ?
	`, videoID)

	v, err := scanVideoWithOwner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, httputil.Errorf(404, "video not found")
	}
	if err != nil {
		return v, fmt.Errorf("fetch video: %w", err)
	}
	return v, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideoWithOwner(row rowScanner) (model.Video, error) {
	var v model.Video
	var owner model.OwnerSummary
	var isPublic int
	err := row.Scan(&v.ID, &v.FileURL, &v.ThumbnailURL, &v.Title, &v.Description,
		&v.DurationSeconds, &v.ViewCount, &isPublic, &v.LikesCount, &v.CreatedAt,
		&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar)
	if err != nil {
		return v, err
	}
	v.IsPublic = isPublic == 1
	v.Owner = &owner
	return v, nil
}
