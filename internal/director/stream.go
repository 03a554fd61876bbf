package director

import (
	"context"

	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/event"
)

type (
	streamStore interface {
		Get(db database.Queryable, uid string) (*Director, error)
		List(db database.Queryable) ([]Director, error)
	}

	// Streamer provides live profile snapshots, re-queried on every
	// director write dispatched on the event bus.
	Streamer struct {
		store    streamStore
		db       database.Manager
		eventBus event.EventCoordinator
	}
)

func NewStreamer(store streamStore, db database.Manager, eventBus event.EventCoordinator) *Streamer {
	return &Streamer{store: store, db: db, eventBus: eventBus}
}

// Watch emits the given accounts profile on subscription and then again on
// every director write. A nil element means no profile exists for the uid.
func (streamer *Streamer) Watch(ctx context.Context, uid string) <-chan *Director {
	out := make(chan *Director)
	updates := make(event.HandlerChannel, 10)
	streamer.eventBus.RegisterHandlerChannel(updates, event.DirectorUpdateEvent)

	go func() {
		defer close(out)
		defer streamer.eventBus.DeregisterHandlerChannel(updates)

		emit := func() {
			profile, err := streamer.store.Get(streamer.db.GetSqlxDb(), uid)
			if err != nil {
				log.Warnf("Profile snapshot for %s failed: %s\n", uid, err.Error())
				return
			}

			select {
			case out <- profile:
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case message := <-updates:
				// Only re-emit when the write touched this account.
				if changed, ok := message.Payload.(string); !ok || changed == uid {
					emit()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// WatchAll emits the full list of profiles on every director write.
func (streamer *Streamer) WatchAll(ctx context.Context) <-chan []Director {
	out := make(chan []Director)
	updates := make(event.HandlerChannel, 10)
	streamer.eventBus.RegisterHandlerChannel(updates, event.DirectorUpdateEvent)

	go func() {
		defer close(out)
		defer streamer.eventBus.DeregisterHandlerChannel(updates)

		emit := func() {
			profiles, err := streamer.store.List(streamer.db.GetSqlxDb())
			if err != nil {
				log.Warnf("Profile list snapshot failed: %s\n", err.Error())
				return
			}

			select {
			case out <- profiles:
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
