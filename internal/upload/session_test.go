package upload

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/davguerra/filmoteca/internal/content"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/director"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	created []content.ContentItem
	updated []content.ContentItem

	existingURLs     map[string]bool
	existingChapters map[string]bool

	createErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existingURLs:     make(map[string]bool),
		existingChapters: make(map[string]bool),
	}
}

func (store *fakeStore) Create(_ database.Queryable, item content.ContentItem) (*content.ContentItem, error) {
	if store.createErr != nil {
		return nil, store.createErr
	}

	item.ID = uuid.New()
	store.created = append(store.created, item)
	return &item, nil
}

func (store *fakeStore) Update(_ database.Queryable, item content.ContentItem) (*content.ContentItem, error) {
	if store.updateErr != nil {
		return nil, store.updateErr
	}

	store.updated = append(store.updated, item)
	return &item, nil
}

func (store *fakeStore) ExistsVideoURL(_ database.Queryable, url string) bool {
	return store.existingURLs[url]
}

func (store *fakeStore) ExistsChapter(_ database.Queryable, directorID string, seriesName string, chapterNumber int) bool {
	return store.existingChapters[chapterKey(directorID, seriesName, chapterNumber)]
}

func chapterKey(directorID string, seriesName string, chapterNumber int) string {
	return fmt.Sprintf("%s|%s|%d", directorID, seriesName, chapterNumber)
}

const (
	eventuallyTimeout = time.Second
	eventuallyTick    = time.Millisecond * 10
)

type fakeDb struct{}

func (fakeDb) GetSqlxDb() *sqlx.DB { return nil }

type fakeProfiles struct{ profile *director.Director }

func (fake fakeProfiles) Watch(ctx context.Context, _ string) <-chan *director.Director {
	out := make(chan *director.Director, 1)
	out <- fake.profile
	return out
}

type fakeSeriesNames struct{ names []string }

func (fake fakeSeriesNames) WatchSeriesNames(ctx context.Context, _ string) <-chan []string {
	out := make(chan []string, 1)
	out <- fake.names
	return out
}

func testProfile() *director.Director {
	return &director.Director{UID: "director-1", Name: "Dana Vega"}
}

func newTestSession(t *testing.T, store *fakeStore, profile *director.Director) *Session {
	t.Helper()

	session := NewSession(
		context.Background(), store, fakeDb{},
		fakeProfiles{profile}, fakeSeriesNames{[]string{"Nocturnes"}}, "director-1")

	// Let the subscription goroutine consume the seeded snapshots.
	require.Eventually(t, func() bool {
		session.mutex.Lock()
		defer session.mutex.Unlock()
		return session.profile != nil || profile == nil
	}, eventuallyTimeout, eventuallyTick)

	return session
}

func fillValidFilm(session *Session) {
	session.SetTitle("Last Light")
	session.SetVideoURL("https://youtu.be/abc123XYZ")
	session.SetGenre("Drama")
	session.SetYear(2024)
}

func Test_Submit_HappyPath_Standalone(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(t, store, testProfile())
	fillValidFilm(session)

	item, err := session.Submit(context.Background())

	require.NoError(t, err)
	require.Len(t, store.created, 1)
	assert.Equal(t, "director-1", item.DirectorID)
	assert.Equal(t, "Dana Vega", item.DirectorName)
	assert.Equal(t, "https://img.youtube.com/vi/abc123XYZ/maxresdefault.jpg", item.CoverURL)
	assert.False(t, item.IsSeries)

	// The draft clears on success so another item can be published.
	assert.Empty(t, session.Draft().Title)
	published := session.Published()
	require.NotNil(t, published)
	assert.Equal(t, item.ID, published.ID)
	assert.Nil(t, session.Published())
}

func Test_Submit_SeriesFieldsZeroedForStandalone(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(t, store, testProfile())
	fillValidFilm(session)

	// Series details entered, then the series toggle switched off. The
	// persisted record must not carry the stale fields.
	session.SetIsSeries(true)
	session.SetSeriesName("Nocturnes")
	session.SetChapterInput("3")
	session.SetIsSeries(false)

	item, err := session.Submit(context.Background())

	require.NoError(t, err)
	assert.Empty(t, item.SeriesName)
	assert.Zero(t, item.ChapterNumber)
}

func Test_Submit_ValidationOrder_FirstViolationWins(t *testing.T) {
	tests := []struct {
		summary       string
		mutate        func(*Session)
		expectedError string
	}{
		{"blank title", func(s *Session) { s.SetTitle("  ") }, "title is required"},
		{"blank video link", func(s *Session) { s.SetVideoURL("") }, "video link is required"},
		{"blank genre", func(s *Session) { s.SetGenre("") }, "genre is required"},
		{"unparseable video link", func(s *Session) { s.SetVideoURL("https://example.com/clip") }, "invalid video link"},
		{"series without name", func(s *Session) { s.SetIsSeries(true); s.SetChapterInput("1") }, "series name and chapter are required"},
		{"series without chapter", func(s *Session) { s.SetIsSeries(true); s.SetSeriesName("Nocturnes") }, "series name and chapter are required"},
		{"year too early", func(s *Session) { s.SetYear(1899) }, "year must be between 1900 and 2030"},
		{"year too late", func(s *Session) { s.SetYear(2031) }, "year must be between 1900 and 2030"},
		{"synopsis too long", func(s *Session) { s.SetSynopsis(strings.Repeat("a", 1001)) }, "synopsis must be 1000 characters or fewer"},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			store := newFakeStore()
			session := newTestSession(t, store, testProfile())
			fillValidFilm(session)
			test.mutate(session)

			_, err := session.Submit(context.Background())

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, test.expectedError, validation.Message)
			assert.Empty(t, store.created, "no write may occur on validation failure")
			assert.Equal(t, test.expectedError, session.LastError())
		})
	}
}

func Test_Submit_InvalidLinkRejectedBeforeDuplicateCheck(t *testing.T) {
	store := newFakeStore()
	store.existingURLs["https://example.com/clip"] = true
	session := newTestSession(t, store, testProfile())
	fillValidFilm(session)
	session.SetVideoURL("https://example.com/clip")

	_, err := session.Submit(context.Background())

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "invalid video link", validation.Message)
}

func Test_Submit_DuplicateURLRejected(t *testing.T) {
	store := newFakeStore()
	store.existingURLs["https://youtu.be/abc123XYZ"] = true
	session := newTestSession(t, store, testProfile())
	fillValidFilm(session)

	_, err := session.Submit(context.Background())

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "this video link is already registered", conflict.Message)
	assert.Empty(t, store.created)

	// Draft preserved for correction and retry.
	assert.Equal(t, "Last Light", session.Draft().Title)
}

func Test_Submit_EditWithUnchangedURLSkipsDuplicateCheck(t *testing.T) {
	store := newFakeStore()
	store.existingURLs["https://youtu.be/abc123XYZ"] = true
	session := newTestSession(t, store, testProfile())

	existing := content.ContentItem{
		ID: uuid.New(), DirectorID: "director-1", DirectorName: "Dana Vega",
		Title: "Last Light", VideoURL: "https://youtu.be/abc123XYZ", Genre: "Drama", Year: 2024,
	}
	session.LoadForEdit(existing)

	item, err := session.Submit(context.Background())

	require.NoError(t, err)
	require.Len(t, store.updated, 1)
	assert.Equal(t, existing.ID, item.ID)
}

func Test_Submit_DuplicateChapterScopedPerDirector(t *testing.T) {
	store := newFakeStore()
	store.existingChapters[chapterKey("someone-else", "Nocturnes", 1)] = true
	session := newTestSession(t, store, testProfile())
	fillValidFilm(session)
	session.SetIsSeries(true)
	session.SetSeriesName("Nocturnes")
	session.SetChapterInput("1")

	// Another director already owns chapter 1 of an identically named
	// series; that must not block this director.
	_, err := session.Submit(context.Background())
	require.NoError(t, err)

	store.existingChapters[chapterKey("director-1", "Nocturnes", 1)] = true
	fillValidFilm(session)
	session.SetIsSeries(true)
	session.SetSeriesName("Nocturnes")
	session.SetChapterInput("1")

	_, err = session.Submit(context.Background())

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "chapter 1 of 'Nocturnes' already exists", conflict.Message)
}

func Test_Submit_EditWithUnchangedChapterSkipsChapterCheck(t *testing.T) {
	store := newFakeStore()
	store.existingChapters[chapterKey("director-1", "Nocturnes", 2)] = true
	session := newTestSession(t, store, testProfile())

	existing := content.ContentItem{
		ID: uuid.New(), DirectorID: "director-1", DirectorName: "Dana Vega",
		Title: "Nocturnes II", VideoURL: "https://youtu.be/abc123XYZ", Genre: "Drama",
		Year: 2024, IsSeries: true, SeriesName: "Nocturnes", ChapterNumber: 2,
	}
	session.LoadForEdit(existing)

	_, err := session.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, store.updated, 1)
}

func Test_Submit_PersistenceFailurePreservesDraft(t *testing.T) {
	store := newFakeStore()
	store.createErr = &content.PersistenceError{Operation: "create", Err: assert.AnError}
	session := newTestSession(t, store, testProfile())
	fillValidFilm(session)

	_, err := session.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, "Last Light", session.Draft().Title)
	assert.Contains(t, session.LastError(), "create")
}

func Test_Submit_BlockedAndGuestAccountsRejected(t *testing.T) {
	blocked := testProfile()
	blocked.IsBlocked = true

	tests := []struct {
		summary string
		profile *director.Director
	}{
		{"blocked account", blocked},
		{"no profile", nil},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			store := newFakeStore()
			session := newTestSession(t, store, test.profile)
			fillValidFilm(session)

			_, err := session.Submit(context.Background())

			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Empty(t, store.created)
		})
	}
}

func Test_SetChapterInput_IgnoresNonDigits(t *testing.T) {
	session := newTestSession(t, newFakeStore(), testProfile())

	session.SetChapterInput("3")
	session.SetChapterInput("abc")
	assert.Equal(t, "3", session.Draft().ChapterInput)

	session.SetChapterInput("")
	assert.Empty(t, session.Draft().ChapterInput)
}

func Test_SetVideoURL_RecomputesThumbnail(t *testing.T) {
	session := newTestSession(t, newFakeStore(), testProfile())

	session.SetVideoURL("https://youtu.be/abc123XYZ")
	assert.Equal(t, "https://img.youtube.com/vi/abc123XYZ/maxresdefault.jpg", session.Draft().Thumbnail)

	session.SetVideoURL("not a link")
	assert.Empty(t, session.Draft().Thumbnail)
}

func Test_SeriesNamesPicklistPopulated(t *testing.T) {
	session := newTestSession(t, newFakeStore(), testProfile())

	require.Eventually(t, func() bool {
		return len(session.SeriesNames()) == 1
	}, eventuallyTimeout, eventuallyTick)
	assert.Equal(t, []string{"Nocturnes"}, session.SeriesNames())
}
