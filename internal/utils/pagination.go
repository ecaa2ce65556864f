// Package utils provides small helpers with no domain knowledge.
package utils

import "strconv"

// Page size bounds shared by every list endpoint.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault converts s to an int, returning def when s is empty or not a
// base-10 integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage parses raw page and page_size values. Page is at least 1; size
// defaults to DefaultPageSize and stays within [1, MaxPageSize].
func ClampPage(rawPage, rawSize string) (page, size int) {
	page = max(AtoiDefault(rawPage, 1), 1)
	size = min(max(AtoiDefault(rawSize, DefaultPageSize), 1), MaxPageSize)
	return page, size
}

// Offset returns the row offset of page for the given size.
func Offset(page, size int) int {
	if page < 1 || size < 1 {
		return 0
	}
	return (page - 1) * size
}

// TotalPages returns how many pages of size hold total rows.
func TotalPages(total int64, size int) int {
	if size < 1 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
