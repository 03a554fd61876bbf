// Package content owns the persistence and live streaming of the watchable
// catalogue. A ContentItem is a single watchable unit: either a standalone
// short film, or one chapter (episode) of a series. Series are not modelled
// as their own records; a series exists implicitly as the set of items
// sharing a series name.
package content

import (
	"time"

	"github.com/google/uuid"
)

type ContentItem struct {
	// ID is assigned by the store on creation; an item which has not been
	// persisted yet carries uuid.Nil.
	ID uuid.UUID `db:"id" json:"id"`

	// DirectorID is the uid of the uploading director; DirectorName is
	// denormalised in to the item at submit time so list views never need
	// a second lookup.
	DirectorID   string `db:"director_id" json:"directorId"`
	DirectorName string `db:"director_name" json:"directorName"`

	Title    string `db:"title" json:"title"`
	Year     int    `db:"year" json:"year"`
	Genre    string `db:"genre" json:"genre"`
	Synopsis string `db:"synopsis" json:"synopsis"`

	// VideoURL is the external video platform link the content plays from.
	// It must be unique across the entire catalogue (application enforced).
	VideoURL string `db:"video_url" json:"videoUrl"`

	// CoverURL is derived from the VideoURL thumbnail; it is never
	// user-entered.
	CoverURL string `db:"cover_url" json:"coverUrl"`

	IsSeries      bool   `db:"is_series" json:"isSeries"`
	SeriesName    string `db:"series_name" json:"seriesName"`
	ChapterNumber int    `db:"chapter_number" json:"chapterNumber"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// GroupKey is the key list views collapse on: chapters of the same series
// share a key, standalone films are keyed by their own ID.
func (item *ContentItem) GroupKey() string {
	if item.IsSeries && item.SeriesName != "" {
		return item.SeriesName
	}

	return item.ID.String()
}

// IsPersisted reports whether this item has been assigned an ID by the store.
func (item *ContentItem) IsPersisted() bool {
	return item.ID != uuid.Nil
}
