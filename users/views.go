package users

import (
	"database/sql"
	"errors"
	"net/http"

	"vidtube/auth"
	"vidtube/httputil"
	"vidtube/model"

	"github.com/go-chi/chi/v5"
)

// HandleGetChannelProfile returns the public channel view for a username:
// subscriber counts plus whether the current viewer is subscribed.
// Anonymous viewers always see isSubscribed = false.
func (h *Handler) HandleGetChannelProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "userName")
	if username == "" {
		httputil.WriteError(w, httputil.Errorf(400, "username is required"))
		return
	}
	viewerID, _ := auth.UserID(r)

	var p model.ChannelProfile
	var cover sql.NullString
	var subscribed int
	err := h.DB.QueryRowContext(r.Context(), `
		SELECT u.id, u.username, u.full_name, u.avatar_url, u.cover_image_url, u.created_at,
		       (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
		       (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
		       CASE WHEN EXISTS (
		           SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = ?
		       ) THEN 1 ELSE 0 END
		FROM users u
		WHERE u.username = ?
	`, viewerID, username).Scan(&p.ID, &p.Username, &p.FullName, &p.Avatar, &cover, &p.CreatedAt,
		&p.SubscriberCount, &p.SubscribedTo, &subscribed)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, httputil.Errorf(404, "channel not found"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if cover.Valid {
		p.CoverImage = &cover.String
	}
	p.IsSubscribed = viewerID != "" && subscribed == 1

	httputil.WriteData(w, 200, p, "channel profile fetched")
}

// HandleGetWatchHistory returns the caller's watch history, most recent
// first, with each video's uploader summary embedded.
func (h *Handler) HandleGetWatchHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	page, limit := httputil.PageParams(r, historyPageLimit)

	var total int64
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM watch_history WHERE user_id = ?`, userID).Scan(&total); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT v.id, v.file_url, v.thumbnail_url, v.title, v.description,
		       v.duration_seconds, v.view_count, v.is_public, v.likes_count, v.created_at,
		       u.id, u.username, u.full_name, u.avatar_url,
		       wh.watched_at
		FROM watch_history wh
		JOIN videos v ON wh.video_id = v.id
		JOIN users u ON v.owner_id = u.id
		WHERE wh.user_id = ?
		ORDER BY wh.watched_at DESC
		LIMIT ? OFFSET ?
	`, userID, limit, (page-1)*limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rows.Close()

	entries := make([]model.WatchEntry, 0)
	for rows.Next() {
		var e model.WatchEntry
		var owner model.OwnerSummary
		var isPublic int
		if err := rows.Scan(&e.Video.ID, &e.Video.FileURL, &e.Video.ThumbnailURL,
			&e.Video.Title, &e.Video.Description, &e.Video.DurationSeconds,
			&e.Video.ViewCount, &isPublic, &e.Video.LikesCount, &e.Video.CreatedAt,
			&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar,
			&e.WatchedAt); err != nil {
			httputil.WriteError(w, err)
			return
		}
		e.Video.IsPublic = isPublic == 1
		e.Video.Owner = &owner
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteData(w, 200, model.Page{Items: entries, Page: page, Limit: limit, Total: total},
		"watch history fetched")
}
