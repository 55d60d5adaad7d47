// Package utils provides small helpers for query parsing and cache
// validators used by the HTTP layer.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty
// or not an integer.
//
//	n := utils.AtoiDefault("42", 0) // 42
//	n = utils.AtoiDefault("x", 5)   // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds n to [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// WeakETag builds a weak validator from parts, e.g.
// WeakETag("videos", 3, 1700000000) -> W/"videos:3:1700000000".
func WeakETag(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return `W/"` + strings.Join(s, ":") + `"`
}

// ETagMatches reports whether an If-None-Match header value matches etag.
// The header may list several validators or be "*".
func ETagMatches(ifNoneMatch, etag string) bool {
	for _, v := range strings.Split(ifNoneMatch, ",") {
		v = strings.TrimSpace(v)
		if v == "*" || v == etag {
			return true
		}
	}
	return false
}
