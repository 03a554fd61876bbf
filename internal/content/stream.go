package content

import (
	"context"

	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/event"
)

type (
	// streamStore is the subset of the content store the streamer needs.
	streamStore interface {
		ListAll(db database.Queryable) ([]ContentItem, error)
		ListByDirector(db database.Queryable, directorID string) ([]ContentItem, error)
		SeriesNamesByDirector(db database.Queryable, directorID string) ([]string, error)
	}

	// Streamer converts the stores point-in-time queries in to live
	// snapshot streams: each watch channel emits an initial snapshot,
	// followed by a fresh re-query result every time a content write is
	// dispatched on the event bus. This is how "the store emits an updated
	// snapshot and subscribed workflows re-derive their state" is realised
	// without a natively reactive database.
	Streamer struct {
		store    streamStore
		db       database.Manager
		eventBus event.EventCoordinator
	}
)

func NewStreamer(store streamStore, db database.Manager, eventBus event.EventCoordinator) *Streamer {
	return &Streamer{store: store, db: db, eventBus: eventBus}
}

// WatchAll emits the full catalogue (ordered year descending) on every
// content change. The subscription lives until the provided context is
// cancelled. A slow consumer delays subsequent emissions rather than
// dropping them.
func (streamer *Streamer) WatchAll(ctx context.Context) <-chan []ContentItem {
	return streamer.watch(ctx, func() ([]ContentItem, error) {
		return streamer.store.ListAll(streamer.db.GetSqlxDb())
	})
}

// WatchByDirector emits the given directors items on every content change.
func (streamer *Streamer) WatchByDirector(ctx context.Context, directorID string) <-chan []ContentItem {
	return streamer.watch(ctx, func() ([]ContentItem, error) {
		return streamer.store.ListByDirector(streamer.db.GetSqlxDb(), directorID)
	})
}

// WatchSeriesNames emits the directors distinct series names on every
// content change; used by the upload workflow picklist.
func (streamer *Streamer) WatchSeriesNames(ctx context.Context, directorID string) <-chan []string {
	out := make(chan []string)
	updates := make(event.HandlerChannel, 10)
	streamer.eventBus.RegisterHandlerChannel(updates, event.ContentUpdateEvent)

	go func() {
		defer close(out)
		defer streamer.eventBus.DeregisterHandlerChannel(updates)

		emit := func() {
			names, err := streamer.store.SeriesNamesByDirector(streamer.db.GetSqlxDb(), directorID)
			if err != nil {
				log.Warnf("Series name snapshot failed: %s\n", err.Error())
				return
			}

			select {
			case out <- names:
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case <-updates:
				emit()
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (streamer *Streamer) watch(ctx context.Context, query func() ([]ContentItem, error)) <-chan []ContentItem {
	out := make(chan []ContentItem)
	updates := make(event.HandlerChannel, 10)
	streamer.eventBus.RegisterHandlerChannel(updates, event.ContentUpdateEvent)

	go func() {
		defer close(out)
		defer streamer.eventBus.DeregisterHandlerChannel(updates)

		emit := func() {
			items, err := query()
			if err != nil {
				log.Warnf("Content snapshot failed: %s\n", err.Error())
				return
			}

			select {
			case out <- items:
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case <-updates:
				emit()
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
