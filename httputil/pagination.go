package httputil

import (
	"net/http"
	"strconv"
)

// PageParams reads page/limit query parameters, clamping both to at least 1
// and falling back to page 1 / the given default limit.
func PageParams(r *http.Request, defaultLimit int) (page, limit int) {
	page = 1
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 1 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v >= 1 {
		limit = v
	}
	return page, limit
}
