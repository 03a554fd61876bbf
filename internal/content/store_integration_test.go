package content_test

import (
	"context"
	"testing"
	"time"

	"github.com/davguerra/filmoteca/internal/content"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/event"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// spawnDatabase starts a throwaway postgres container and returns a
// connected (and migrated) database manager.
func spawnDatabase(t *testing.T) database.Manager {
	t.Helper()

	ctx := context.Background()
	postgresC, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
		postgres.WithDatabase("FILMOTECA_TEST_DB"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Second*30)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		timeout := time.Second * 5
		_ = postgresC.Stop(ctx, &timeout)
	})

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)
	port, err := postgresC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db := database.New()
	require.NoError(t, db.Connect(database.DatabaseConfig{
		User:     "postgres",
		Password: "postgres",
		Name:     "FILMOTECA_TEST_DB",
		Host:     host,
		Port:     port.Port(),
	}))

	return db
}

func sampleItem(directorID string, title string, url string) content.ContentItem {
	return content.ContentItem{
		DirectorID:   directorID,
		DirectorName: "Dana Vega",
		Title:        title,
		Year:         2024,
		Genre:        "Drama",
		Synopsis:     "A short film.",
		VideoURL:     url,
		CoverURL:     "https://img.youtube.com/vi/abc123/maxresdefault.jpg",
	}
}

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := spawnDatabase(t)
	store := content.NewStore(event.New())

	t.Run("create assigns ID and get returns equal record", func(t *testing.T) {
		created, err := store.Create(db.GetSqlxDb(), sampleItem("d1", "Last Light", "https://youtu.be/roundtrip1"))
		require.NoError(t, err)
		require.True(t, created.IsPersisted())

		fetched, err := store.Get(db.GetSqlxDb(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, fetched.ID)
		assert.Equal(t, "Last Light", fetched.Title)
		assert.Equal(t, "https://youtu.be/roundtrip1", fetched.VideoURL)
	})

	t.Run("update overwrites wholesale", func(t *testing.T) {
		created, err := store.Create(db.GetSqlxDb(), sampleItem("d1", "Before", "https://youtu.be/roundtrip2"))
		require.NoError(t, err)

		created.Title = "After"
		created.Genre = "Documentary"
		_, err = store.Update(db.GetSqlxDb(), *created)
		require.NoError(t, err)

		fetched, err := store.Get(db.GetSqlxDb(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "After", fetched.Title)
		assert.Equal(t, "Documentary", fetched.Genre)
	})

	t.Run("update rejects missing ID", func(t *testing.T) {
		_, err := store.Update(db.GetSqlxDb(), sampleItem("d1", "No ID", "https://youtu.be/roundtrip3"))
		assert.ErrorIs(t, err, content.ErrInvalidID)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		created, err := store.Create(db.GetSqlxDb(), sampleItem("d1", "Short Lived", "https://youtu.be/roundtrip4"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(db.GetSqlxDb(), created.ID))
		require.NoError(t, store.Delete(db.GetSqlxDb(), created.ID))
		require.NoError(t, store.Delete(db.GetSqlxDb(), uuid.New()))
	})

	t.Run("existence checks", func(t *testing.T) {
		item := sampleItem("d2", "Nocturnes", "https://youtu.be/roundtrip5")
		item.IsSeries = true
		item.SeriesName = "Nocturnes"
		item.ChapterNumber = 1
		_, err := store.Create(db.GetSqlxDb(), item)
		require.NoError(t, err)

		assert.True(t, store.ExistsVideoURL(db.GetSqlxDb(), "https://youtu.be/roundtrip5"))
		assert.False(t, store.ExistsVideoURL(db.GetSqlxDb(), "https://youtu.be/unknown"))

		assert.True(t, store.ExistsChapter(db.GetSqlxDb(), "d2", "Nocturnes", 1))
		assert.False(t, store.ExistsChapter(db.GetSqlxDb(), "d2", "Nocturnes", 2))
		assert.False(t, store.ExistsChapter(db.GetSqlxDb(), "other-director", "Nocturnes", 1),
			"chapter uniqueness is scoped per director")
	})

	t.Run("list all ordered by year descending", func(t *testing.T) {
		older := sampleItem("d3", "Older", "https://youtu.be/roundtrip6")
		older.Year = 2001
		newer := sampleItem("d3", "Newer", "https://youtu.be/roundtrip7")
		newer.Year = 2026

		_, err := store.Create(db.GetSqlxDb(), older)
		require.NoError(t, err)
		_, err = store.Create(db.GetSqlxDb(), newer)
		require.NoError(t, err)

		items, err := store.ListAll(db.GetSqlxDb())
		require.NoError(t, err)

		positions := make(map[string]int)
		for idx, item := range items {
			positions[item.Title] = idx
		}
		assert.Less(t, positions["Newer"], positions["Older"])
	})

	t.Run("series names by director", func(t *testing.T) {
		for idx, name := range []string{"Zephyr", "Aurora"} {
			item := sampleItem("d4", name, "https://youtu.be/series"+name)
			item.IsSeries = true
			item.SeriesName = name
			item.ChapterNumber = idx + 1
			_, err := store.Create(db.GetSqlxDb(), item)
			require.NoError(t, err)
		}

		names, err := store.SeriesNamesByDirector(db.GetSqlxDb(), "d4")
		require.NoError(t, err)
		assert.Equal(t, []string{"Aurora", "Zephyr"}, names)
	})
}

func TestStreamerEmitsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := spawnDatabase(t)
	eventBus := event.New()
	store := content.NewStore(eventBus)
	streamer := content.NewStreamer(store, db, eventBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := streamer.WatchAll(ctx)

	initial := <-updates
	assert.Empty(t, initial)

	_, err := store.Create(db.GetSqlxDb(), sampleItem("d1", "Streamed", "https://youtu.be/stream1"))
	require.NoError(t, err)

	require.EventuallyWithT(t, func(c *assert.CollectT) {
		select {
		case items := <-updates:
			assert.Len(c, items, 1)
		default:
			assert.Fail(c, "no snapshot emitted yet")
		}
	}, time.Second*5, time.Millisecond*50)
}

func TestStreamerScopesByDirector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := spawnDatabase(t)
	eventBus := event.New()
	store := content.NewStore(eventBus)
	streamer := content.NewStreamer(store, db, eventBus)

	_, err := store.Create(db.GetSqlxDb(), sampleItem("mine", "Mine", "https://youtu.be/scoped1"))
	require.NoError(t, err)
	_, err = store.Create(db.GetSqlxDb(), sampleItem("theirs", "Theirs", "https://youtu.be/scoped2"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := <-streamer.WatchByDirector(ctx, "mine")
	require.Len(t, items, 1)
	assert.Equal(t, "Mine", items[0].Title)
}
