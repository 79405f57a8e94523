package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/StudioSol/set"
	"github.com/jpillora/backoff"
	"github.com/samber/lo"

	"github.com/raykavin/launchwatch/core"
)

// WatcherOption configures the announcement watcher
type WatcherOption func(*Watcher)

// WithNotifier reports poll failures after the retry budget is spent
func WithNotifier(notifier core.Notifier) WatcherOption {
	return func(w *Watcher) {
		w.notifier = notifier
	}
}

// WithInterval overrides the poll interval
func WithInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = interval
	}
}

// WithRetry overrides the retry budget for a single poll
func WithRetry(maxRetries int, delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.maxRetries = maxRetries
		w.retryDelay = delay
	}
}

// Watcher polls an announcement source and dispatches entries that were
// never seen before to the subscribed consumers. Seen identities survive
// restarts through the seen store, so an announcement is emitted at most
// once over the lifetime of the store. With an empty store the first
// snapshot is only a baseline: the feed returns announcements that are
// weeks old, and dispatching those would fire alerts and trades for
// listings that happened long before startup.
type Watcher struct {
	source    core.AnnouncementSource
	seen      core.SeenStore
	memory    *set.LinkedHashSetString
	consumers []core.AnnouncementConsumer
	notifier  core.Notifier
	log       core.Logger

	interval   time.Duration
	retryDelay time.Duration
	maxRetries int
	baseline   bool
}

// NewWatcher creates a watcher warmed with the identities already persisted
// in the seen store. An empty store puts the watcher in baseline mode for
// its first successful poll.
func NewWatcher(
	ctx context.Context,
	source core.AnnouncementSource,
	seen core.SeenStore,
	log core.Logger,
	options ...WatcherOption,
) (*Watcher, error) {
	known, err := seen.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading seen announcements: %w", err)
	}

	watcher := &Watcher{
		source:     source,
		seen:       seen,
		memory:     set.NewLinkedHashSetString(known...),
		log:        log,
		interval:   time.Minute,
		retryDelay: 5 * time.Second,
		maxRetries: 3,
		baseline:   len(known) == 0,
	}

	for _, option := range options {
		option(watcher)
	}

	return watcher, nil
}

// Subscribe registers a consumer for new announcements. Consumers run
// sequentially in subscription order.
func (w *Watcher) Subscribe(consumer core.AnnouncementConsumer) {
	w.consumers = append(w.consumers, consumer)
}

// Start blocks polling the source until the context is canceled. The first
// poll runs immediately, subsequent polls follow the configured interval.
// A failed poll is reported and the loop keeps running.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Infof("watching announcements every %s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			w.log.WithError(err).Error("announcement poll failed")
			if w.notifier != nil {
				w.notifier.OnError(err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs a single polling round. New announcements are dispatched
// oldest first and only persisted as seen after every consumer ran, so a
// crash mid-round replays the batch instead of losing it.
func (w *Watcher) Poll(ctx context.Context) error {
	announcements, err := w.fetch(ctx)
	if err != nil {
		return err
	}

	if w.baseline {
		return w.recordBaseline(ctx, announcements)
	}

	fresh := lo.Filter(announcements, func(announcement core.Announcement, _ int) bool {
		return !w.memory.InArray(announcement.ID)
	})
	if len(fresh) == 0 {
		return nil
	}

	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].PublishedAt.Before(fresh[j].PublishedAt)
	})

	processed := make([]string, 0, len(fresh))
	for _, announcement := range fresh {
		w.log.WithFields(map[string]any{
			"id":    announcement.ID,
			"title": announcement.Title,
		}).Info("new announcement")

		w.memory.Add(announcement.ID)
		processed = append(processed, announcement.ID)

		for _, consumer := range w.consumers {
			consumer(ctx, announcement)
		}
	}

	if err := w.seen.MarkSeen(ctx, processed...); err != nil {
		return fmt.Errorf("persisting seen announcements: %w", err)
	}

	return nil
}

// recordBaseline marks the first snapshot of an empty store as seen
// without dispatching it. Only announcements published after this point
// reach the consumers.
func (w *Watcher) recordBaseline(ctx context.Context, announcements []core.Announcement) error {
	ids := lo.Map(announcements, func(announcement core.Announcement, _ int) string {
		return announcement.ID
	})

	for _, id := range ids {
		w.memory.Add(id)
	}

	if len(ids) > 0 {
		if err := w.seen.MarkSeen(ctx, ids...); err != nil {
			return fmt.Errorf("persisting baseline announcements: %w", err)
		}
	}

	w.baseline = false
	w.log.Infof("first run, %d existing announcements recorded without alerting", len(ids))
	return nil
}

// fetch calls the source up to the retry budget with a fixed delay
// between attempts
func (w *Watcher) fetch(ctx context.Context) ([]core.Announcement, error) {
	wait := &backoff.Backoff{
		Min:    w.retryDelay,
		Max:    w.retryDelay,
		Factor: 1,
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		announcements, err := w.source.Announcements(ctx)
		if err == nil {
			return announcements, nil
		}

		lastErr = err
		w.log.WithError(err).Warnf("announcement fetch failed, attempt %d/%d", attempt, w.maxRetries)

		if attempt == w.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait.Duration()):
		}
	}

	return nil, fmt.Errorf("announcement fetch failed after %d attempts: %w", w.maxRetries, lastErr)
}
