package likes

import (
	"net/http"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"
	"vidtube/model"

	"github.com/go-chi/chi/v5"
)

// Handler serves the like-toggle endpoints and liked-video listing.
type Handler struct {
	DB *db.CompatDB
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, target Target, param string) {
	userID := auth.MustUserID(r)
	res, err := Toggle(r.Context(), h.DB, target, chi.URLParam(r, param), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	message := string(target) + " unliked"
	if res.Liked {
		message = string(target) + " liked"
	}
	httputil.WriteData(w, 200, res, message)
}

// HandleToggleVideoLike flips the caller's like on a video.
func (h *Handler) HandleToggleVideoLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, TargetVideo, "videoId")
}

// HandleToggleCommentLike flips the caller's like on a comment.
func (h *Handler) HandleToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, TargetComment, "commentId")
}

// HandleToggleTweetLike flips the caller's like on a tweet.
func (h *Handler) HandleToggleTweetLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, TargetTweet, "tweetId")
}

// HandleGetLikedVideos lists the videos the caller currently likes, newest
// like first, with uploader summaries embedded.
func (h *Handler) HandleGetLikedVideos(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT v.id, v.file_url, v.thumbnail_url, v.title, v.description,
		       v.duration_seconds, v.view_count, v.is_public, v.likes_count, v.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM likes l
		JOIN videos v ON l.video_id = v.id
		JOIN users u ON v.owner_id = u.id
		WHERE l.liked_by = ? AND l.video_id IS NOT NULL
		ORDER BY l.created_at DESC
	`, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rows.Close()

	videos := make([]model.Video, 0)
	for rows.Next() {
		var v model.Video
		var owner model.OwnerSummary
		var isPublic int
		if err := rows.Scan(&v.ID, &v.FileURL, &v.ThumbnailURL, &v.Title, &v.Description,
			&v.DurationSeconds, &v.ViewCount, &isPublic, &v.LikesCount, &v.CreatedAt,
			&owner.ID, &owner.Username, &owner.FullName, &owner.Avatar); err != nil {
			httputil.WriteError(w, err)
			return
		}
		v.IsPublic = isPublic == 1
		v.Owner = &owner
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, videos, "liked videos fetched")
}
