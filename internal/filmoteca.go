// Package internal wires the platform together: config, embedded database,
// stores, the event bus, and the REST gateway.
package internal

import (
	"context"
	"sync"
	"time"

	"github.com/davguerra/filmoteca/internal/api"
	"github.com/davguerra/filmoteca/internal/blob"
	"github.com/davguerra/filmoteca/internal/content"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/director"
	"github.com/davguerra/filmoteca/internal/event"
	"github.com/davguerra/filmoteca/internal/feed"
	"github.com/davguerra/filmoteca/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// Filmoteca represents the top-level object for the server, and is
	// responsible for initialising the embedded database, stores, event
	// handling and the REST gateway.
	Filmoteca struct {
		eventBus event.EventCoordinator
		config   FilmotecaConfig

		db               database.Manager
		contentStore     *content.Store
		directorStore    *director.Store
		contentStreamer  *content.Streamer
		directorStreamer *director.Streamer
		blobClient       *blob.Client

		restGateway *api.RestGateway
	}
)

func New(config FilmotecaConfig) *Filmoteca {
	log.Emit(logger.DEBUG, "Bootstrapping Filmoteca services using config: %#v\n", config)

	eventBus := event.New()
	db := database.New()
	contentStore := content.NewStore(eventBus)
	directorStore := director.NewStore(eventBus)
	blobClient := blob.NewClient(config.Blob)

	return &Filmoteca{
		eventBus:         eventBus,
		config:           config,
		db:               db,
		contentStore:     contentStore,
		directorStore:    directorStore,
		contentStreamer:  content.NewStreamer(contentStore, db, eventBus),
		directorStreamer: director.NewStreamer(directorStore, db, eventBus),
		blobClient:       blobClient,
		restGateway: api.NewRestGateway(
			&config.Rest, eventBus, contentStore,
			directorStore, blobClient, db),
	}
}

// Run starts the whole platform: the embedded database (when enabled), the
// database connection and migrations, then the REST gateway. It does not
// return until the provided context is cancelled or a service crashes.
func (filmoteca *Filmoteca) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	if filmoteca.config.Services.EnablePostgres {
		log.Emit(logger.NEW, "Spawning embedded postgres...\n")
		embedded, err := database.SpawnPostgres(ctx, filmoteca.config.Database, func(err error) {
			crashHandler("embedded-postgres", err)
		})
		if err != nil {
			return err
		}
		defer embedded.Close(time.Second * 10)
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := filmoteca.db.Connect(filmoteca.config.Database); err != nil {
		return err
	}

	filmoteca.restGateway.SetConnectionCallback(filmoteca.watchCurrentState(ctx))

	wg := &sync.WaitGroup{}
	filmoteca.spawnAsyncService(ctx, wg, filmoteca.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Filmoteca services spawned!\n")

	wg.Wait()
	return nil
}

// watchCurrentState holds live subscriptions to the catalogue and director
// streams for the lifetime of ctx, and returns a callback producing the
// latest snapshots. New websocket clients receive this payload in their
// welcome message.
func (filmoteca *Filmoteca) watchCurrentState(ctx context.Context) func() map[string]any {
	homeFeed := feed.NewHomeFeed(ctx, filmoteca.contentStreamer)

	mutex := &sync.Mutex{}
	var latestDirectors []director.Director

	directorUpdates := filmoteca.directorStreamer.WatchAll(ctx)
	go func() {
		for {
			select {
			case profiles, ok := <-directorUpdates:
				if !ok {
					return
				}

				mutex.Lock()
				latestDirectors = profiles
				mutex.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() map[string]any {
		mutex.Lock()
		directors := latestDirectors
		mutex.Unlock()

		return map[string]any{
			"feed":      homeFeed.View(),
			"directors": directors,
		}
	}
}

// spawnAsyncService will run the provided function/service as its own
// go-routine, ensuring that the service waitgroup is updated correctly.
func (filmoteca *Filmoteca) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func() {
		defer wg.Done()
		if err := service.Run(ctx); err != nil && ctx.Err() == nil {
			crashHandler(serviceLabel, err)
		}
	}()
}
