package core

import (
	"strings"
	"time"
)

// Announcement is a single entry of the exchange announcement feed.
// Immutable once fetched; identity is the ID field.
type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Mentions reports whether the announcement title references the given
// asset as a standalone word. Matching is case-insensitive so "MNT" is
// found in "Bybit Launchpool: Stake to Earn MNT" but not in "PAYMENT".
func (a Announcement) Mentions(asset string) bool {
	if asset == "" {
		return false
	}

	asset = strings.ToUpper(asset)
	title := strings.ToUpper(a.Title)

	isWordChar := func(b byte) bool {
		return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
	}

	for i := 0; i+len(asset) <= len(title); i++ {
		if title[i:i+len(asset)] != asset {
			continue
		}
		if i > 0 && isWordChar(title[i-1]) {
			continue
		}
		if end := i + len(asset); end < len(title) && isWordChar(title[end]) {
			continue
		}
		return true
	}

	return false
}
