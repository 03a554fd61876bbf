package feed

import (
	"context"
	"sync"

	"github.com/davguerra/filmoteca/internal/content"
)

type (
	catalogueWatcher interface {
		WatchAll(ctx context.Context) <-chan []content.ContentItem
	}

	// View is one fully-derived home feed snapshot.
	View struct {
		Featured *content.ContentItem  `json:"featured"`
		Items    []content.ContentItem `json:"items"`
		Genres   []string              `json:"genres"`
		Search   string                `json:"search"`
		Genre    string                `json:"genre"`
	}

	// HomeFeed holds the live catalogue subscription plus the local
	// filter state, and re-derives the grouped view whenever either
	// changes. Derivation is synchronous and pure; only the catalogue
	// snapshot arrives asynchronously.
	HomeFeed struct {
		mutex  sync.Mutex
		raw    []content.ContentItem
		search string
		genre  string
	}
)

// NewHomeFeed opens a home feed over the given catalogue stream. The
// subscription runs until ctx is cancelled.
func NewHomeFeed(ctx context.Context, catalogue catalogueWatcher) *HomeFeed {
	feed := &HomeFeed{genre: GenreAll}

	updates := catalogue.WatchAll(ctx)
	go func() {
		for {
			select {
			case items, ok := <-updates:
				if !ok {
					return
				}

				feed.mutex.Lock()
				feed.raw = items
				feed.mutex.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return feed
}

func (feed *HomeFeed) SetSearch(query string) {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()
	feed.search = query
}

func (feed *HomeFeed) SetGenre(genre string) {
	feed.mutex.Lock()
	defer feed.mutex.Unlock()
	feed.genre = genre
}

// View derives the current feed: filter by search and genre, then group,
// then pick the featured item. Filtering runs before grouping so a query
// matching any chapter of a series surfaces that series, not just the
// chapter which happens to represent it.
func (feed *HomeFeed) View() View {
	feed.mutex.Lock()
	raw := feed.raw
	search := feed.search
	genre := feed.genre
	feed.mutex.Unlock()

	filtered := Group(FilterGenre(FilterSearch(raw, search), genre))
	filterActive := search != "" || (genre != "" && genre != GenreAll)

	return View{
		Featured: Featured(raw, filtered, filterActive),
		Items:    filtered,
		Genres:   AvailableGenres(raw),
		Search:   search,
		Genre:    genre,
	}
}

// Recommend derives the recommendation rail for the given item against the
// latest catalogue snapshot.
func (feed *HomeFeed) Recommend(current content.ContentItem) Recommendations {
	feed.mutex.Lock()
	raw := feed.raw
	feed.mutex.Unlock()

	return Recommend(current, raw)
}
