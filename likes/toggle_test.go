package likes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	_ "modernc.org/sqlite"

	"vidtube/db"
	"vidtube/httputil"
)

func newTestDB(t *testing.T) *db.CompatDB {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	raw.SetMaxOpenConns(1)
	if _, err := raw.Exec("PRAGMA foreign_keys=ON"); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if err := db.RunMigrations(raw, db.DialectSQLite); err != nil {
		t.Fatalf("schema migration: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return db.NewCompatDB(raw, db.DialectSQLite)
}

func seedUser(t *testing.T, d *db.CompatDB, id string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url)
		VALUES (?, ?, ?, ?, 'x', '/a.png')`, id, "user_"+id, id+"@test.com", "User "+id); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func seedVideo(t *testing.T, d *db.CompatDB, id, ownerID string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO videos (id, file_url, thumbnail_url, title, owner_id)
		VALUES (?, '/v.mp4', '/t.jpg', ?, ?)`, id, "Video "+id, ownerID); err != nil {
		t.Fatalf("seed video %s: %v", id, err)
	}
}

func seedComment(t *testing.T, d *db.CompatDB, id, videoID, ownerID string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO comments (id, content, video_id, owner_id)
		VALUES (?, 'nice', ?, ?)`, id, videoID, ownerID); err != nil {
		t.Fatalf("seed comment %s: %v", id, err)
	}
}

func seedTweet(t *testing.T, d *db.CompatDB, id, ownerID string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO tweets (id, content, owner_id)
		VALUES (?, 'hello', ?)`, id, ownerID); err != nil {
		t.Fatalf("seed tweet %s: %v", id, err)
	}
}

func likeRows(t *testing.T, d *db.CompatDB, col, targetID string) int64 {
	t.Helper()
	var n int64
	if err := d.QueryRow(
		fmt.Sprintf(`SELECT COUNT(*) FROM likes WHERE %s = ?`, col), targetID).Scan(&n); err != nil {
		t.Fatalf("count likes: %v", err)
	}
	return n
}

func counter(t *testing.T, d *db.CompatDB, table, id string) int64 {
	t.Helper()
	var n int64
	if err := d.QueryRow(
		fmt.Sprintf(`SELECT likes_count FROM %s WHERE id = ?`, table), id).Scan(&n); err != nil {
		t.Fatalf("read likes_count: %v", err)
	}
	return n
}

func TestToggleVideoLikeAndUnlike(t *testing.T) {
	d := newTestDB(t)
	seedUser(t, d, "u1")
	seedUser(t, d, "u2")
	seedVideo(t, d, "v1", "u1")
	ctx := context.Background()

	res, err := Toggle(ctx, d, TargetVideo, "v1", "u2")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !res.Liked || res.LikesCount != 1 {
		t.Errorf("after like: %+v, want liked=true count=1", res)
	}
	if n := likeRows(t, d, "video_id", "v1"); n != 1 {
		t.Errorf("like rows = %d, want 1", n)
	}

	res, err = Toggle(ctx, d, TargetVideo, "v1", "u2")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if res.Liked || res.LikesCount != 0 {
		t.Errorf("after unlike: %+v, want liked=false count=0", res)
	}
	if n := likeRows(t, d, "video_id", "v1"); n != 0 {
		t.Errorf("like rows = %d, want 0", n)
	}
	if n := counter(t, d, "videos", "v1"); n != 0 {
		t.Errorf("likes_count = %d, want 0", n)
	}
}

func TestToggleCommentAndTweetTargets(t *testing.T) {
	d := newTestDB(t)
	seedUser(t, d, "u1")
	seedVideo(t, d, "v1", "u1")
	seedComment(t, d, "c1", "v1", "u1")
	seedTweet(t, d, "t1", "u1")
	ctx := context.Background()

	res, err := Toggle(ctx, d, TargetComment, "c1", "u1")
	if err != nil {
		t.Fatalf("comment toggle: %v", err)
	}
	if !res.Liked || res.LikesCount != 1 {
		t.Errorf("comment toggle = %+v", res)
	}
	if n := counter(t, d, "comments", "c1"); n != 1 {
		t.Errorf("comment likes_count = %d, want 1", n)
	}

	res, err = Toggle(ctx, d, TargetTweet, "t1", "u1")
	if err != nil {
		t.Fatalf("tweet toggle: %v", err)
	}
	if !res.Liked || res.LikesCount != 1 {
		t.Errorf("tweet toggle = %+v", res)
	}

	// Liking a comment must not touch the tweet row, and vice versa.
	if n := counter(t, d, "tweets", "t1"); n != 1 {
		t.Errorf("tweet likes_count = %d, want 1", n)
	}
	if n := counter(t, d, "videos", "v1"); n != 0 {
		t.Errorf("video likes_count = %d, want 0", n)
	}
}

func TestToggleMissingTargetIs404(t *testing.T) {
	d := newTestDB(t)
	seedUser(t, d, "u1")

	_, err := Toggle(context.Background(), d, TargetVideo, "nope", "u1")
	var apiErr *httputil.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if n := likeRows(t, d, "video_id", "nope"); n != 0 {
		t.Errorf("like rows for missing video = %d", n)
	}
}

func TestToggleValidation(t *testing.T) {
	d := newTestDB(t)

	_, err := Toggle(context.Background(), d, TargetVideo, "", "u1")
	var apiErr *httputil.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Errorf("empty target id: got %v, want 400", err)
	}

	_, err = Toggle(context.Background(), d, TargetVideo, "v1", "")
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Errorf("empty user id: got %v, want 401", err)
	}

	if _, err := Toggle(context.Background(), d, Target("channel"), "x", "u1"); err == nil {
		t.Error("unknown target accepted")
	}
}

// Concurrent toggles on the same (video, user) pair must never leave more
// than one like row, and the counter must equal the row count.
func TestToggleConcurrentDuplicates(t *testing.T) {
	d := newTestDB(t)
	seedUser(t, d, "u1")
	seedUser(t, d, "u2")
	seedVideo(t, d, "v1", "u1")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Toggle(context.Background(), d, TargetVideo, "v1", "u2"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent toggle: %v", err)
	}

	rows := likeRows(t, d, "video_id", "v1")
	count := counter(t, d, "videos", "v1")
	if rows != count {
		t.Fatalf("likes_count %d drifted from row count %d", count, rows)
	}
	if rows != 0 && rows != 1 {
		t.Fatalf("like rows = %d, want 0 or 1", rows)
	}
	// Even number of toggles should land back on unliked.
	if rows != 0 {
		t.Errorf("after %d toggles, like rows = %d, want 0", workers, rows)
	}
}

// Property: for any sequence of toggles by a small set of users, the final
// likes_count equals the number of users who toggled an odd number of times,
// and always matches the actual like rows.
func TestToggleSequenceParityProperty(t *testing.T) {
	d := newTestDB(t)
	users := []string{"u0", "u1", "u2", "u3", "u4"}
	for _, u := range users {
		seedUser(t, d, u)
	}
	seedVideo(t, d, "v1", "u0")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("counter matches toggle parity", prop.ForAll(
		func(sequence []int) bool {
			if _, err := d.Exec(`DELETE FROM likes`); err != nil {
				t.Fatalf("reset likes: %v", err)
			}
			if _, err := d.Exec(`UPDATE videos SET likes_count = 0 WHERE id = 'v1'`); err != nil {
				t.Fatalf("reset counter: %v", err)
			}

			toggles := make(map[string]int)
			for _, idx := range sequence {
				u := users[idx%len(users)]
				if _, err := Toggle(context.Background(), d, TargetVideo, "v1", u); err != nil {
					t.Fatalf("toggle by %s: %v", u, err)
				}
				toggles[u]++
			}

			var wantLiked int64
			for _, n := range toggles {
				if n%2 == 1 {
					wantLiked++
				}
			}
			return counter(t, d, "videos", "v1") == wantLiked &&
				likeRows(t, d, "video_id", "v1") == wantLiked
		},
		gen.SliceOf(gen.IntRange(0, len(users)-1)),
	))

	properties.TestingRun(t)
}
