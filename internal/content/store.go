package content

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/event"
	"github.com/davguerra/filmoteca/pkg/logger"
	"github.com/google/uuid"
)

var (
	log = logger.Get("ContentStore")

	ErrInvalidID = errors.New("invalid id")
)

// PersistenceError wraps a failure from the underlying database so callers
// can distinguish store failures from validation failures. The wrapped
// message is surfaced verbatim to the workflows.
type PersistenceError struct {
	Operation string
	Err       error
}

func (err *PersistenceError) Error() string {
	return fmt.Sprintf("content %s failed: %s", err.Operation, err.Err.Error())
}

func (err *PersistenceError) Unwrap() error { return err.Err }

type Store struct {
	eventBus event.EventDispatcher
}

// NewStore constructs a content store. Every successful write dispatches a
// ContentUpdateEvent on the provided bus, which is what drives the live
// snapshot streams (and, transitively, the websocket gateway).
func NewStore(eventBus event.EventDispatcher) *Store {
	return &Store{eventBus: eventBus}
}

const insertItemQuery = `
	INSERT INTO peliculas(id, director_id, director_name, title, year, genre, synopsis,
		video_url, cover_url, is_series, series_name, chapter_number, created_at, updated_at)
	VALUES (:id, :director_id, :director_name, :title, :year, :genre, :synopsis,
		:video_url, :cover_url, :is_series, :series_name, :chapter_number,
		current_timestamp, current_timestamp)
`

const updateItemQuery = `
	UPDATE peliculas
	SET director_id=:director_id, director_name=:director_name, title=:title, year=:year,
		genre=:genre, synopsis=:synopsis, video_url=:video_url, cover_url=:cover_url,
		is_series=:is_series, series_name=:series_name, chapter_number=:chapter_number,
		updated_at=current_timestamp
	WHERE id=:id
`

// Create assigns a fresh ID to the provided item and persists the full
// record. The persisted item (now carrying its ID) is returned.
func (store *Store) Create(db database.Queryable, item ContentItem) (*ContentItem, error) {
	item.ID = uuid.New()
	if _, err := db.NamedExec(insertItemQuery, item); err != nil {
		return nil, &PersistenceError{Operation: "create", Err: err}
	}

	store.eventBus.Dispatch(event.ContentUpdateEvent, item.ID)
	return &item, nil
}

// Update overwrites the existing document wholesale. An item with no ID is
// rejected as it cannot identify the row to replace.
func (store *Store) Update(db database.Queryable, item ContentItem) (*ContentItem, error) {
	if !item.IsPersisted() {
		return nil, ErrInvalidID
	}

	if _, err := db.NamedExec(updateItemQuery, item); err != nil {
		return nil, &PersistenceError{Operation: "update", Err: err}
	}

	store.eventBus.Dispatch(event.ContentUpdateEvent, item.ID)
	return &item, nil
}

// Delete removes the item with the given ID. Deleting an absent row is
// treated as success.
func (store *Store) Delete(db database.Queryable, id uuid.UUID) error {
	if _, err := db.Exec(`DELETE FROM peliculas WHERE id=$1`, id); err != nil {
		return &PersistenceError{Operation: "delete", Err: err}
	}

	store.eventBus.Dispatch(event.ContentUpdateEvent, id)
	return nil
}

// Get returns the item with the given ID, or nil if no such item exists.
func (store *Store) Get(db database.Queryable, id uuid.UUID) (*ContentItem, error) {
	var item ContentItem
	if err := db.Get(&item, `SELECT * FROM peliculas WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, &PersistenceError{Operation: "get", Err: err}
	}

	return &item, nil
}

// ExistsVideoURL reports whether any item in the catalogue already uses the
// provided video URL.
//
// This check FAILS OPEN: a query failure returns false rather than blocking
// the callers flow, on the grounds that an unreachable store should not
// stop an upload attempt at this stage (the final write will fail anyway).
func (store *Store) ExistsVideoURL(db database.Queryable, url string) bool {
	var exists bool
	if err := db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM peliculas WHERE video_url=$1)`, url); err != nil {
		log.Warnf("Video URL existence check failed (treating as not found): %s\n", err.Error())
		return false
	}

	return exists
}

// ExistsChapter reports whether the given director already has a chapter
// with this number in the named series. Chapter uniqueness is scoped per
// director; two directors may own identically named series.
//
// Fails open in the same way as ExistsVideoURL.
func (store *Store) ExistsChapter(db database.Queryable, directorID string, seriesName string, chapterNumber int) bool {
	var exists bool
	err := db.Get(&exists, `
		SELECT EXISTS(
			SELECT 1 FROM peliculas
			WHERE director_id=$1 AND series_name=$2 AND chapter_number=$3 AND is_series
		)`, directorID, seriesName, chapterNumber)
	if err != nil {
		log.Warnf("Chapter existence check failed (treating as not found): %s\n", err.Error())
		return false
	}

	return exists
}

// ListByDirector returns every item uploaded by the given director.
func (store *Store) ListByDirector(db database.Queryable, directorID string) ([]ContentItem, error) {
	query, args, err := selectItemBuilder().Where("director_id=?", directorID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list query: %w", err)
	}

	var items []ContentItem
	if err := db.Select(&items, db.Rebind(query), args...); err != nil {
		return nil, &PersistenceError{Operation: "list", Err: err}
	}

	return items, nil
}

// ListAll returns the full catalogue ordered by year descending (newest
// first), matching the ordering the home feed presents.
func (store *Store) ListAll(db database.Queryable) ([]ContentItem, error) {
	query, args, err := selectItemBuilder().OrderBy("year DESC", "created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list query: %w", err)
	}

	var items []ContentItem
	if err := db.Select(&items, db.Rebind(query), args...); err != nil {
		return nil, &PersistenceError{Operation: "list", Err: err}
	}

	return items, nil
}

// SeriesNamesByDirector returns the distinct, sorted series names the given
// director has already published. The upload workflow offers these as a
// picklist so chapters land in the same series grouping.
func (store *Store) SeriesNamesByDirector(db database.Queryable, directorID string) ([]string, error) {
	var names []string
	err := db.Select(&names, `
		SELECT DISTINCT series_name FROM peliculas
		WHERE director_id=$1 AND is_series AND series_name <> ''
		ORDER BY series_name`, directorID)
	if err != nil {
		return nil, &PersistenceError{Operation: "series names", Err: err}
	}

	return names, nil
}

func selectItemBuilder() squirrel.SelectBuilder {
	return squirrel.Select("*").From("peliculas")
}
