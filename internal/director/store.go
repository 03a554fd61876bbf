package director

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/event"
	"github.com/davguerra/filmoteca/pkg/logger"
)

var log = logger.Get("DirectorStore")

// PersistenceError wraps a database failure from a profile operation.
type PersistenceError struct {
	Operation string
	Err       error
}

func (err *PersistenceError) Error() string {
	return fmt.Sprintf("director %s failed: %s", err.Operation, err.Err.Error())
}

func (err *PersistenceError) Unwrap() error { return err.Err }

type Store struct {
	eventBus event.EventDispatcher
}

func NewStore(eventBus event.EventDispatcher) *Store {
	return &Store{eventBus: eventBus}
}

const upsertDirectorQuery = `
	INSERT INTO directors(uid, name, email, profile_image_url, home_town, university, degree,
		biography, inspirations, motto, festivals, awards, youtube_channel, social_links,
		yape_qr_url, yape_number, plin_number, is_admin, is_blocked, created_at, updated_at)
	VALUES (:uid, :name, :email, :profile_image_url, :home_town, :university, :degree,
		:biography, :inspirations, :motto, :festivals, :awards, :youtube_channel, :social_links,
		:yape_qr_url, :yape_number, :plin_number, :is_admin, :is_blocked,
		current_timestamp, current_timestamp)
	ON CONFLICT (uid) DO UPDATE
	SET name=EXCLUDED.name, email=EXCLUDED.email, profile_image_url=EXCLUDED.profile_image_url,
		home_town=EXCLUDED.home_town, university=EXCLUDED.university, degree=EXCLUDED.degree,
		biography=EXCLUDED.biography, inspirations=EXCLUDED.inspirations, motto=EXCLUDED.motto,
		festivals=EXCLUDED.festivals, awards=EXCLUDED.awards,
		youtube_channel=EXCLUDED.youtube_channel, social_links=EXCLUDED.social_links,
		yape_qr_url=EXCLUDED.yape_qr_url, yape_number=EXCLUDED.yape_number,
		plin_number=EXCLUDED.plin_number, is_admin=EXCLUDED.is_admin,
		is_blocked=EXCLUDED.is_blocked, updated_at=current_timestamp
`

const ensureDirectorQuery = `
	INSERT INTO directors(uid, name, email, profile_image_url, home_town, university, degree,
		biography, inspirations, motto, festivals, awards, youtube_channel, social_links,
		yape_qr_url, yape_number, plin_number, is_admin, is_blocked, created_at, updated_at)
	VALUES (:uid, :name, :email, :profile_image_url, :home_town, :university, :degree,
		:biography, :inspirations, :motto, :festivals, :awards, :youtube_channel, :social_links,
		:yape_qr_url, :yape_number, :plin_number, :is_admin, :is_blocked,
		current_timestamp, current_timestamp)
	ON CONFLICT (uid) DO NOTHING
`

// Get returns the profile for the given uid, or nil if no profile exists.
// An absent profile is NOT an error; callers use nil to mean "guest".
func (store *Store) Get(db database.Queryable, uid string) (*Director, error) {
	var profile Director
	if err := db.Get(&profile, `SELECT * FROM directors WHERE uid=$1`, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, &PersistenceError{Operation: "get", Err: err}
	}

	return &profile, nil
}

// Save overwrites the profile document wholesale, creating it if absent.
func (store *Store) Save(db database.Queryable, profile Director) (*Director, error) {
	if _, err := db.NamedExec(upsertDirectorQuery, profile); err != nil {
		return nil, &PersistenceError{Operation: "save", Err: err}
	}

	store.eventBus.Dispatch(event.DirectorUpdateEvent, profile.UID)
	return &profile, nil
}

// Ensure creates a starter profile for the given account if, and only if,
// one does not already exist. First write wins: if another request races us
// and creates the profile first, this call is a silent no-op and the
// existing profile is left untouched.
func (store *Store) Ensure(db database.Queryable, profile Director) error {
	result, err := db.NamedExec(ensureDirectorQuery, profile)
	if err != nil {
		return &PersistenceError{Operation: "ensure", Err: err}
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		log.Debugf("Profile for %s already exists, starter profile discarded\n", profile.UID)
		return nil
	}

	store.eventBus.Dispatch(event.DirectorUpdateEvent, profile.UID)
	return nil
}

// List returns every director profile, ordered by name.
func (store *Store) List(db database.Queryable) ([]Director, error) {
	var profiles []Director
	if err := db.Select(&profiles, `SELECT * FROM directors ORDER BY name, uid`); err != nil {
		return nil, &PersistenceError{Operation: "list", Err: err}
	}

	return profiles, nil
}

// SetBlocked flips the moderation flag on the given account.
func (store *Store) SetBlocked(db database.Queryable, uid string, blocked bool) error {
	result, err := db.Exec(`UPDATE directors SET is_blocked=$1, updated_at=current_timestamp WHERE uid=$2`, blocked, uid)
	if err != nil {
		return &PersistenceError{Operation: "set blocked", Err: err}
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return &PersistenceError{Operation: "set blocked", Err: sql.ErrNoRows}
	}

	store.eventBus.Dispatch(event.DirectorUpdateEvent, uid)
	return nil
}
