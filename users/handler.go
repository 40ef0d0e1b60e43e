// Package users implements accounts, sessions and the user-centric read
// views (channel profile, watch history).
package users

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
	"vidtube/media"
	"vidtube/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxPasswordLen   = 72 // bcrypt truncates at 72 bytes
	minPasswordLen   = 8
	maxUploadSize    = 32 << 20
	refreshCookie    = "refreshToken"
	historyPageLimit = 10
)

// Uploader is the slice of the media store the user handlers need.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectKey string, probeDuration bool) (*media.Result, error)
}

// Handler holds dependencies for the user endpoints.
type Handler struct {
	DB     *db.CompatDB
	Tokens auth.Tokens
	Media  Uploader
}

// HandleRegister creates a new account. Multipart form: userName, email,
// fullName, password text fields; avatar file required, coverImage optional.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid multipart form"))
		return
	}

	username := strings.ToLower(strings.TrimSpace(r.FormValue("userName")))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	fullName := strings.TrimSpace(r.FormValue("fullName"))
	password := r.FormValue("password")

	if username == "" || email == "" || fullName == "" || password == "" {
		httputil.WriteError(w, httputil.Errorf(400, "all fields are required"))
		return
	}
	if len(username) < 3 {
		httputil.WriteError(w, httputil.Errorf(400, "username must be at least 3 characters"))
		return
	}
	if !strings.Contains(email, "@") || len(email) < 5 {
		httputil.WriteError(w, httputil.Errorf(400, "a valid email address is required"))
		return
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		httputil.WriteError(w, httputil.Errorf(400, "password must be between %d and %d characters", minPasswordLen, maxPasswordLen))
		return
	}

	var one int
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT 1 FROM users WHERE username = ? OR email = ?`, username, email).Scan(&one)
	if err == nil {
		httputil.WriteError(w, httputil.Errorf(409, "username or email already taken"))
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, err)
		return
	}

	avatarURL, err := h.uploadFormFile(r, "avatar", "avatars", true)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	coverURL, err := h.uploadFormFile(r, "coverImage", "covers", false)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, fmt.Errorf("hash password: %w", err))
		return
	}

	userID := uuid.New().String()
	var cover interface{}
	if coverURL != "" {
		cover = coverURL
	}
	_, err = h.DB.ExecContext(r.Context(),
		`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, username, email, fullName, string(hash), avatarURL, cover)
	if err != nil {
		if db.IsUniqueViolation(err) {
			httputil.WriteError(w, httputil.Errorf(409, "username or email already taken"))
			return
		}
		httputil.WriteError(w, fmt.Errorf("create user: %w", err))
		return
	}

	user, err := h.fetchUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 201, user, "user registered successfully")
}

// uploadFormFile stages and uploads one multipart file field. Required
// fields missing from the form produce a 400; optional ones return "".
func (h *Handler) uploadFormFile(r *http.Request, field, prefix string, required bool) (string, error) {
	file := r.MultipartForm.File[field]
	if len(file) == 0 {
		if required {
			return "", httputil.Errorf(400, "%s is required", field)
		}
		return "", nil
	}
	path, err := media.StageFile(file[0])
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", field, err)
	}
	res, err := h.Media.Upload(r.Context(), path, media.ObjectKey(prefix, file[0].Filename), false)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", field, err)
	}
	return res.URL, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User   model.User `json:"user"`
	Tokens auth.Pair  `json:"tokens"`
}

// HandleLogin authenticates by username or email and issues a token pair.
// The refresh token is persisted on the user row and mirrored in an
// httpOnly cookie.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	httputil.MaxBody(r, httputil.DefaultBodyLimit)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid request body"))
		return
	}
	identifier := strings.ToLower(strings.TrimSpace(req.Username))
	if identifier == "" {
		identifier = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if identifier == "" || req.Password == "" {
		httputil.WriteError(w, httputil.Errorf(400, "username or email and password are required"))
		return
	}

	var userID, username, email, hash string
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT id, username, email, password_hash FROM users WHERE username = ? OR email = ?`,
		identifier, identifier).Scan(&userID, &username, &email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, httputil.Errorf(401, "invalid credentials"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Password) > maxPasswordLen ||
		bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		httputil.WriteError(w, httputil.Errorf(401, "invalid credentials"))
		return
	}

	pair, err := h.issueSession(r.Context(), userID, username, email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.setRefreshCookie(w, pair.RefreshToken)

	user, err := h.fetchUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, sessionResponse{User: user, Tokens: pair}, "logged in successfully")
}

// issueSession mints a token pair and persists the refresh token.
func (h *Handler) issueSession(ctx context.Context, userID, username, email string) (auth.Pair, error) {
	pair, err := h.Tokens.IssuePair(userID, username, email)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if _, err := h.DB.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET refresh_token = ?, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
		pair.RefreshToken, userID); err != nil {
		return auth.Pair{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return pair, nil
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.Tokens.RefreshTTL.Seconds()),
	})
}

// HandleLogout clears the stored refresh token, invalidating the session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	if _, err := h.DB.ExecContext(r.Context(),
		fmt.Sprintf(`UPDATE users SET refresh_token = NULL, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
		userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
	httputil.WriteData(w, 200, nil, "logged out successfully")
}

// HandleRefreshToken reissues the token pair. The refresh token is read from
// the cookie, falling back to the request body, and must match the value
// stored on the user row; any mismatch is terminal for that token.
func (h *Handler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	tokenStr := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		tokenStr = c.Value
	}
	if tokenStr == "" {
		httputil.MaxBody(r, httputil.DefaultBodyLimit)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			tokenStr = body.RefreshToken
		}
	}
	if tokenStr == "" {
		httputil.WriteError(w, httputil.Errorf(401, "refresh token is required"))
		return
	}

	userID, err := h.Tokens.ParseRefresh(tokenStr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var username, email string
	var stored sql.NullString
	err = h.DB.QueryRowContext(r.Context(),
		`SELECT username, email, refresh_token FROM users WHERE id = ?`, userID,
	).Scan(&username, &email, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, httputil.Errorf(401, "invalid refresh token"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !stored.Valid || stored.String != tokenStr {
		httputil.WriteError(w, httputil.Errorf(401, "refresh token is expired or has been revoked"))
		return
	}

	pair, err := h.issueSession(r.Context(), userID, username, email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.setRefreshCookie(w, pair.RefreshToken)
	httputil.WriteData(w, 200, pair, "tokens refreshed successfully")
}

// HandleChangePassword verifies the old password and swaps in the new one.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := auth.MustUserID(r)
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, httputil.Errorf(400, "invalid request body"))
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		httputil.WriteError(w, httputil.Errorf(400, "old and new passwords are required"))
		return
	}
	if len(req.NewPassword) < minPasswordLen || len(req.NewPassword) > maxPasswordLen {
		httputil.WriteError(w, httputil.Errorf(400, "password must be between %d and %d characters", minPasswordLen, maxPasswordLen))
		return
	}

	var hash string
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.OldPassword)) != nil {
		httputil.WriteError(w, httputil.Errorf(401, "old password is incorrect"))
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, fmt.Errorf("hash password: %w", err))
		return
	}
	if _, err := h.DB.ExecContext(r.Context(),
		fmt.Sprintf(`UPDATE users SET password_hash = ?, updated_at = %s WHERE id = ?`, h.DB.NowUTC()),
		string(newHash), userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, nil, "password changed successfully")
}

// fetchUser loads the client-facing user shape, never the sensitive columns.
func (h *Handler) fetchUser(ctx context.Context, userID string) (model.User, error) {
	var u model.User
	var cover sql.NullString
	err := h.DB.QueryRowContext(ctx,
		`SELECT id, username, email, full_name, avatar_url, cover_image_url, created_at
		 FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &cover, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, httputil.Errorf(404, "user not found")
	}
	if err != nil {
		return u, fmt.Errorf("fetch user: %w", err)
	}
	if cover.Valid {
		u.CoverImage = &cover.String
	}
	return u, nil
}

// HandleGetCurrentUser returns the caller's own account.
func (h *Handler) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.fetchUser(r.Context(), auth.MustUserID(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, 200, user, "current user fetched")
}
