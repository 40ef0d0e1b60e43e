// Package likes implements the toggle-reaction engine shared by video,
// comment and tweet targets, and the like-backed read views.
package likes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vidtube/db"
	"vidtube/httputil"

	"github.com/google/uuid"
)

// Target identifies what kind of entity a like refers to.
type Target string

const (
	TargetVideo   Target = "video"
	TargetComment Target = "comment"
	TargetTweet   Target = "tweet"
)

// targetSpec maps a target kind onto its table and the likes column
// referencing it. Both carry a likes_count column kept in lockstep with the
// like rows.
type targetSpec struct {
	table   string
	likeCol string
}

var targetSpecs = map[Target]targetSpec{
	TargetVideo:   {table: "videos", likeCol: "video_id"},
	TargetComment: {table: "comments", likeCol: "comment_id"},
	TargetTweet:   {table: "tweets", likeCol: "tweet_id"},
}

// ToggleResult reports the reaction state after a toggle.
type ToggleResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likesCount"`
}

// Toggle flips userID's reaction to the given target and keeps the target's
// denormalized counter in lockstep with the like rows.
//
// The whole check-and-flip runs in one transaction: delete-if-exists, else
// insert guarded by the partial unique index on (target, liked_by), with the
// counter mutated only when a row actually went away or appeared. A
// concurrent duplicate insert lands on the index conflict, changes no rows
// and leaves the counter alone, so two racing toggles can never create two
// like rows or drift the counter.
func Toggle(ctx context.Context, d *db.CompatDB, target Target, targetID, userID string) (ToggleResult, error) {
	var res ToggleResult

	spec, ok := targetSpecs[target]
	if !ok {
		return res, fmt.Errorf("unknown like target %q", target)
	}
	if targetID == "" {
		return res, httputil.Errorf(400, "%s id is required", target)
	}
	if userID == "" {
		return res, httputil.Errorf(401, "unauthorized")
	}

	err := db.WithTx(ctx, d, func(conn *db.CompatConn) error {
		var one int
		err := conn.QueryRowContext(ctx,
			fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", spec.table), targetID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return httputil.Errorf(404, "%s not found", target)
		}
		if err != nil {
			return fmt.Errorf("look up %s: %w", target, err)
		}

		delRes, err := conn.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM likes WHERE %s = ? AND liked_by = ?", spec.likeCol),
			targetID, userID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		removed, err := delRes.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete like rows: %w", err)
		}

		if removed > 0 {
			if _, err := conn.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET likes_count = likes_count - 1 WHERE id = ?", spec.table),
				targetID); err != nil {
				return fmt.Errorf("decrement likes_count: %w", err)
			}
			res.Liked = false
		} else {
			insRes, err := conn.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO likes (id, %s, liked_by) VALUES (?, ?, ?) ON CONFLICT DO NOTHING", spec.likeCol),
				uuid.New().String(), targetID, userID)
			if err != nil {
				return fmt.Errorf("insert like: %w", err)
			}
			inserted, err := insRes.RowsAffected()
			if err != nil {
				return fmt.Errorf("insert like rows: %w", err)
			}
			if inserted > 0 {
				if _, err := conn.ExecContext(ctx,
					fmt.Sprintf("UPDATE %s SET likes_count = likes_count + 1 WHERE id = ?", spec.table),
					targetID); err != nil {
					return fmt.Errorf("increment likes_count: %w", err)
				}
			}
			// On conflict a concurrent request already created the like;
			// the counter was mutated exactly once, by that request.
			res.Liked = true
		}

		if err := conn.QueryRowContext(ctx,
			fmt.Sprintf("SELECT likes_count FROM %s WHERE id = ?", spec.table), targetID,
		).Scan(&res.LikesCount); err != nil {
			return fmt.Errorf("read likes_count: %w", err)
		}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}
	return res, nil
}
