// Package utils holds small helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// malformed. Whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ClampInt parses s with AtoiDefault and bounds the result to [lo, hi].
// Query parameters like page and page_size go through it.
func ClampInt(s string, def, lo, hi int) int {
	return min(max(AtoiDefault(s, def), lo), hi)
}

// TotalPages is the number of pageSize pages needed for total items.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
