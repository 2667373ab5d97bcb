package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

func parsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if val := strings.TrimSpace(r.URL.Query().Get("limit")); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if val := strings.TrimSpace(r.URL.Query().Get("offset")); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func queryInt(r *http.Request, key string, fallback, min, max int) int {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < min || parsed > max {
		return fallback
	}
	return parsed
}
