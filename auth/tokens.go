// Package auth issues and verifies the access/refresh token pair and
// provides the request middleware that resolves the current user.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vidtube/httputil"
)

// Tokens signs and parses JWT pairs. Access and refresh tokens use separate
// secrets so a leaked refresh secret cannot mint access tokens directly.
type Tokens struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IssuePair creates a fresh token pair for the given user. The access token
// carries identity claims for display; the refresh token only the subject.
func (t Tokens) IssuePair(userID, username, email string) (Pair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"email":    email,
		"iat":      now.Unix(),
		"exp":      now.Add(t.AccessTTL).Unix(),
	})
	accessStr, err := access.SignedString([]byte(t.AccessSecret))
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(t.RefreshTTL).Unix(),
	})
	refreshStr, err := refresh.SignedString([]byte(t.RefreshSecret))
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return Pair{AccessToken: accessStr, RefreshToken: refreshStr}, nil
}

// ParseAccess verifies an access token and returns the user ID.
func (t Tokens) ParseAccess(tokenStr string) (string, error) {
	return parseSubject(tokenStr, t.AccessSecret)
}

// ParseRefresh verifies a refresh token and returns the user ID. A valid
// signature is necessary but not sufficient: callers must still compare the
// token against the value stored on the user record.
func (t Tokens) ParseRefresh(tokenStr string) (string, error) {
	return parseSubject(tokenStr, t.RefreshSecret)
}

func parseSubject(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", httputil.Errorf(401, "invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", httputil.Errorf(401, "invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", httputil.Errorf(401, "invalid token subject")
	}
	return sub, nil
}
