package tgui

import "fmt"

// DefaultPageSize keeps paginated messages comfortably under Telegram's
// 4096-character limit for typical table rows.
const DefaultPageSize = 10

// Paginate returns the window of items for the requested page.
//
// Pages are 1-based. totalPages is ceil(len(items)/size), minimum 1 even for
// an empty list; page is clamped to [1, totalPages]. Concatenating all pages
// in order reproduces items exactly.
func Paginate[T any](items []T, page, size int) (window []T, current int, totalPages int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	totalPages = (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}

	current = page
	if current < 1 {
		current = 1
	}
	if current > totalPages {
		current = totalPages
	}

	start := (current - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], current, totalPages
}

// PageLabel returns a compact pagination label, e.g. "Page 2/5".
func PageLabel(current, totalPages int) string {
	if totalPages < 1 {
		totalPages = 1
	}
	if current < 1 {
		current = 1
	}
	if current > totalPages {
		current = totalPages
	}
	return fmt.Sprintf("Page %d/%d", current, totalPages)
}

func HasPrev(current int) bool             { return current > 1 }
func HasNext(current, totalPages int) bool { return current < totalPages }
