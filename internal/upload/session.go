// Package upload implements the publication workflow: a stateful session
// which accumulates a draft, validates it against a fixed rule order,
// performs the duplicate checks, and persists the final record. One session
// corresponds to one director working on one upload (or edit) at a time.
package upload

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/davguerra/filmoteca/internal/content"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/director"
	"github.com/davguerra/filmoteca/internal/video"
	"github.com/davguerra/filmoteca/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var log = logger.Get("Upload")

const (
	MinYear        = 1900
	MaxYear        = 2030
	MaxSynopsisLen = 1000
)

type (
	// Draft is the in-progress form state. Chapter is held as raw text
	// because the input is free-form; it is parsed at submit time.
	Draft struct {
		Title        string
		VideoURL     string
		Genre        string
		Synopsis     string
		Year         int
		IsSeries     bool
		SeriesName   string
		ChapterInput string

		// Thumbnail is derived from VideoURL, never set directly.
		Thumbnail string
	}

	contentPersister interface {
		Create(db database.Queryable, item content.ContentItem) (*content.ContentItem, error)
		Update(db database.Queryable, item content.ContentItem) (*content.ContentItem, error)
		ExistsVideoURL(db database.Queryable, url string) bool
		ExistsChapter(db database.Queryable, directorID string, seriesName string, chapterNumber int) bool
	}

	profileWatcher interface {
		Watch(ctx context.Context, uid string) <-chan *director.Director
	}

	seriesNameWatcher interface {
		WatchSeriesNames(ctx context.Context, directorID string) <-chan []string
	}

	queryableProvider interface {
		GetSqlxDb() *sqlx.DB
	}

	// Session is the workflow state for a single director's upload screen.
	// It holds two live subscriptions for the duration of its context: the
	// director's own profile (capability changes apply immediately) and
	// the picklist of their existing series names.
	Session struct {
		store      contentPersister
		db         queryableProvider
		directorID string

		mutex       sync.Mutex
		draft       Draft
		editing     *content.ContentItem
		profile     *director.Director
		seriesNames []string
		submitting  bool
		lastError   string
		published   *content.ContentItem
	}
)

// NewSession opens a workflow session for the given director. The profile
// and series-name subscriptions run until ctx is cancelled; the session
// remains usable (with stale snapshots) after cancellation.
func NewSession(
	ctx context.Context,
	store contentPersister,
	db queryableProvider,
	profiles profileWatcher,
	seriesNames seriesNameWatcher,
	directorID string,
) *Session {
	session := &Session{store: store, db: db, directorID: directorID}

	profileUpdates := profiles.Watch(ctx, directorID)
	nameUpdates := seriesNames.WatchSeriesNames(ctx, directorID)
	go func() {
		for {
			select {
			case profile, ok := <-profileUpdates:
				if !ok {
					return
				}

				session.mutex.Lock()
				session.profile = profile
				session.mutex.Unlock()
			case names, ok := <-nameUpdates:
				if !ok {
					return
				}

				session.mutex.Lock()
				session.seriesNames = names
				session.mutex.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return session
}

// LoadForEdit seeds the draft from an existing item. The original is kept
// so submit can tell which duplicate checks are skippable (unchanged URL,
// unchanged series/chapter).
func (session *Session) LoadForEdit(item content.ContentItem) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.editing = &item
	session.draft = Draft{
		Title:      item.Title,
		VideoURL:   item.VideoURL,
		Genre:      item.Genre,
		Synopsis:   item.Synopsis,
		Year:       item.Year,
		IsSeries:   item.IsSeries,
		SeriesName: item.SeriesName,
		Thumbnail:  video.Thumbnail(item.VideoURL),
	}
	if item.IsSeries {
		session.draft.ChapterInput = strconv.Itoa(item.ChapterNumber)
	}
}

func (session *Session) SetTitle(title string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.draft.Title = title
}

// SetVideoURL updates the link and synchronously recomputes the derived
// thumbnail preview. No network call is involved; an unparseable link
// simply yields an empty preview.
func (session *Session) SetVideoURL(url string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.draft.VideoURL = url
	session.draft.Thumbnail = video.Thumbnail(url)
}

func (session *Session) SetGenre(genre string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.draft.Genre = genre
}

func (session *Session) SetSynopsis(synopsis string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.draft.Synopsis = synopsis
}

func (session *Session) SetYear(year int) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.draft.Year = year
}

func (session *Session) SetIsSeries(isSeries bool) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.draft.IsSeries = isSeries
}

func (session *Session) SetSeriesName(name string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.draft.SeriesName = name
}

// SetChapterInput accepts only all-digit input (or blank, to clear the
// field). Anything else is silently ignored and the previous value kept.
func (session *Session) SetChapterInput(input string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	if input != "" {
		if _, err := strconv.Atoi(input); err != nil {
			return
		}
	}

	session.draft.ChapterInput = input
}

// Draft returns a copy of the current form state.
func (session *Session) Draft() Draft {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.draft
}

// SeriesNames returns the latest picklist snapshot of the director's
// existing series names.
func (session *Session) SeriesNames() []string {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.seriesNames
}

// LastError returns the message of the most recent failed submit, or an
// empty string.
func (session *Session) LastError() string {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.lastError
}

// Published returns the item persisted by the most recent successful
// submit, and clears it. Callers use this as the navigate-away signal.
func (session *Session) Published() *content.ContentItem {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	published := session.published
	session.published = nil
	return published
}

// Submit runs the full pipeline: capability gate, validation in fixed
// order, duplicate checks, then persistence. The first violated rule
// determines the single reported error; nothing is aggregated. On success
// the draft is cleared so the director can publish another item; on any
// failure the draft is preserved for correction and retry.
func (session *Session) Submit(ctx context.Context) (*content.ContentItem, error) {
	session.mutex.Lock()
	if session.submitting {
		session.mutex.Unlock()
		return nil, &ValidationError{Message: "a submission is already in progress"}
	}
	session.submitting = true
	draft := session.draft
	editing := session.editing
	profile := session.profile
	session.mutex.Unlock()

	item, err := Submit(session.store, session.db.GetSqlxDb(), profile, draft, editing)

	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.submitting = false

	if err != nil {
		session.lastError = err.Error()
		return nil, err
	}

	log.Infof("Director %s published %q (%s)\n", session.directorID, item.Title, item.ID)
	session.lastError = ""
	session.published = item
	session.draft = Draft{}
	session.editing = nil
	return item, nil
}

// Submit runs the publication pipeline against the provided draft without
// any session state: capability gate, validation, duplicate checks, then
// create-or-update depending on whether an original item is provided. The
// REST gateway uses this directly; sessions delegate to it.
func Submit(store contentPersister, db database.Queryable, profile *director.Director, draft Draft, editing *content.ContentItem) (*content.ContentItem, error) {
	if !director.RoleOf(profile).CanUpload() {
		return nil, &ValidationError{Message: "account is not allowed to publish"}
	}

	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	// Duplicate checks. Editing an item without changing its URL must not
	// trip over the item's own record, so the check is skipped entirely in
	// that case; same reasoning for an unchanged series/chapter pair.
	urlUnchanged := editing != nil && editing.VideoURL == draft.VideoURL
	if !urlUnchanged && store.ExistsVideoURL(db, draft.VideoURL) {
		return nil, &ConflictError{Message: "this video link is already registered"}
	}

	if draft.IsSeries {
		chapterNumber, _ := strconv.Atoi(draft.ChapterInput)
		chapterUnchanged := editing != nil &&
			editing.SeriesName == draft.SeriesName && editing.ChapterNumber == chapterNumber
		if !chapterUnchanged && store.ExistsChapter(db, profile.UID, draft.SeriesName, chapterNumber) {
			return nil, &ConflictError{Message: fmt.Sprintf("chapter %d of '%s' already exists", chapterNumber, draft.SeriesName)}
		}
	}

	record := buildRecord(draft, editing, profile)
	if editing != nil {
		return store.Update(db, record)
	}

	return store.Create(db, record)
}

// validateDraft applies the rules in their fixed order: required fields,
// video link shape, series fields, year range, synopsis length.
func validateDraft(draft Draft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return requiredField("title")
	}
	if strings.TrimSpace(draft.VideoURL) == "" {
		return requiredField("video link")
	}
	if strings.TrimSpace(draft.Genre) == "" {
		return requiredField("genre")
	}

	if video.Thumbnail(draft.VideoURL) == "" {
		return &ValidationError{Field: "video link", Message: "invalid video link"}
	}

	if draft.IsSeries && (strings.TrimSpace(draft.SeriesName) == "" || draft.ChapterInput == "") {
		return &ValidationError{Field: "series", Message: "series name and chapter are required"}
	}

	if draft.Year < MinYear || draft.Year > MaxYear {
		return &ValidationError{Field: "year", Message: fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear)}
	}

	if len([]rune(draft.Synopsis)) > MaxSynopsisLen {
		return &ValidationError{Field: "synopsis", Message: fmt.Sprintf("synopsis must be %d characters or fewer", MaxSynopsisLen)}
	}

	return nil
}

// buildRecord assembles the final document: director identity denormalised
// in, cover derived from the link, series fields zeroed when the item is a
// standalone film regardless of what the form held.
func buildRecord(draft Draft, editing *content.ContentItem, profile *director.Director) content.ContentItem {
	record := content.ContentItem{
		DirectorID:   profile.UID,
		DirectorName: profile.Name,
		Title:        strings.TrimSpace(draft.Title),
		Year:         draft.Year,
		Genre:        draft.Genre,
		Synopsis:     draft.Synopsis,
		VideoURL:     draft.VideoURL,
		CoverURL:     video.Thumbnail(draft.VideoURL),
		IsSeries:     draft.IsSeries,
	}

	if draft.IsSeries {
		record.SeriesName = draft.SeriesName
		record.ChapterNumber, _ = strconv.Atoi(draft.ChapterInput)
	}

	if editing != nil {
		record.ID = editing.ID
		record.CreatedAt = editing.CreatedAt
	} else {
		record.ID = uuid.Nil
	}

	return record
}
