// Package subscriptions implements the subscribe/unsubscribe toggle that
// feeds the channel-profile counts.
package subscriptions

import (
	"database/sql"
	"errors"
	"net/http"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"

	"github.com/go-chi/chi/v5"
)

// Handler holds dependencies for the subscription endpoints.
type Handler struct {
	DB *db.CompatDB
}

// ToggleResult reports the subscription state after a toggle.
type ToggleResult struct {
	Subscribed      bool  `json:"subscribed"`
	SubscriberCount int64 `json:"subscriberCount"`
}

// HandleToggle flips the caller's subscription to a channel. Subscribing to
// your own channel is rejected.
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	channelID := chi.URLParam(r, "channelId")
	if channelID == "" {
		httputil.WriteError(w, httputil.Errorf(400, "channel id is required"))
		return
	}
	if channelID == userID {
		httputil.WriteError(w, httputil.Errorf(400, "you cannot subscribe to your own channel"))
		return
	}

	var one int
	err := h.DB.QueryRowContext(r.Context(), `SELECT 1 FROM users WHERE id = ?`, channelID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, httputil.Errorf(404, "channel not found"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var res ToggleResult
	err = db.WithTx(r.Context(), h.DB, func(conn *db.CompatConn) error {
		delRes, err := conn.ExecContext(r.Context(),
			`DELETE FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`, userID, channelID)
		if err != nil {
			return err
		}
		if removed, _ := delRes.RowsAffected(); removed == 0 {
			if _, err := conn.ExecContext(r.Context(),
				`INSERT INTO subscriptions (subscriber_id, channel_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				userID, channelID); err != nil {
				return err
			}
			res.Subscribed = true
		}
		return conn.QueryRowContext(r.Context(),
			`SELECT COUNT(*) FROM subscriptions WHERE channel_id = ?`, channelID,
		).Scan(&res.SubscriberCount)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	message := "unsubscribed from channel"
	if res.Subscribed {
		message = "subscribed to channel"
	}
	httputil.WriteData(w, 200, res, message)
}
