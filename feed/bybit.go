package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/raykavin/launchwatch/core"
)

const (
	defaultAnnouncementsURL = "https://api.bybit.com"
	announcementsPath       = "/v5/announcements/index"

	defaultLocale = "en-US"
	defaultTag    = "Launchpool"
	defaultLimit  = 20

	defaultSourceTimeout = 10 * time.Second
)

// BybitSourceConfig configures the Bybit announcement source
type BybitSourceConfig struct {
	// BaseURL overrides the announcement endpoint, used in tests
	BaseURL string

	Locale string
	Tag    string
	Limit  int

	Timeout time.Duration
}

// BybitSource fetches Launchpool announcements from the public Bybit
// announcement API. Implements core.AnnouncementSource.
type BybitSource struct {
	client *resty.Client
	locale string
	tag    string
	limit  int
}

// announcementEnvelope mirrors the announcement API response
type announcementEnvelope struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []announcementEntry `json:"list"`
	} `json:"result"`
}

type announcementEntry struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	DateTimestamp int64  `json:"dateTimestamp"`
}

// NewBybitSource creates an announcement source with sane defaults
func NewBybitSource(cfg BybitSourceConfig) *BybitSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnnouncementsURL
	}
	if cfg.Locale == "" {
		cfg.Locale = defaultLocale
	}
	if cfg.Tag == "" {
		cfg.Tag = defaultTag
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSourceTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &BybitSource{
		client: client,
		locale: cfg.Locale,
		tag:    cfg.Tag,
		limit:  cfg.Limit,
	}
}

// Announcements fetches the current announcement snapshot, newest first
func (s *BybitSource) Announcements(ctx context.Context) ([]core.Announcement, error) {
	var envelope announcementEnvelope

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"locale":   s.locale,
			"category": "spot",
			"limit":    strconv.Itoa(s.limit),
			"tag":      s.tag,
		}).
		SetResult(&envelope).
		Get(announcementsPath)
	if err != nil {
		return nil, fmt.Errorf("announcement request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("announcement request failed with status %d", resp.StatusCode())
	}

	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("announcement api error %d: %s", envelope.RetCode, envelope.RetMsg)
	}

	announcements := make([]core.Announcement, 0, len(envelope.Result.List))
	for _, entry := range envelope.Result.List {
		announcements = append(announcements, core.Announcement{
			ID:          announcementID(entry),
			Title:       entry.Title,
			Description: entry.Description,
			URL:         entry.URL,
			PublishedAt: time.UnixMilli(entry.DateTimestamp),
		})
	}

	return announcements, nil
}

// announcementID derives a stable identity for a feed entry. The API has
// no explicit ID field, the URL plus publication timestamp is unique.
func announcementID(entry announcementEntry) string {
	if entry.URL != "" {
		return fmt.Sprintf("%s|%d", entry.URL, entry.DateTimestamp)
	}
	return fmt.Sprintf("%s|%d", entry.Title, entry.DateTimestamp)
}
