// Package feed derives the presentation views over the catalogue: the
// grouped home feed, its search and genre filters, the featured slot, and
// the per-item recommendation rail. Everything in this file is a pure list
// transform; the reactive wiring lives in the home feed service.
package feed

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/davguerra/filmoteca/internal/content"
)

// GenreAll is the sentinel genre which disables genre filtering.
const GenreAll = "All"

const (
	maxSeriesRecommendations   = 30
	maxDirectorRecommendations = 10
	maxRandomRecommendations   = 5
)

// Recommendations is one rail of related items for a detail view, with a
// title describing the relationship.
type Recommendations struct {
	Title string
	Items []content.ContentItem
}

// Group collapses every chapter of a series into a single representative,
// the chapter with the lowest number, so each series appears once in list
// views. Standalone films pass through untouched. The result keeps the
// newest-first ordering of the feed (year descending). Grouping an
// already-grouped list is a no-op.
func Group(items []content.ContentItem) []content.ContentItem {
	representatives := make(map[string]content.ContentItem, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		key := item.GroupKey()
		existing, seen := representatives[key]
		if !seen {
			representatives[key] = item
			order = append(order, key)
			continue
		}

		if item.ChapterNumber < existing.ChapterNumber {
			representatives[key] = item
		}
	}

	grouped := make([]content.ContentItem, 0, len(order))
	for _, key := range order {
		grouped = append(grouped, representatives[key])
	}

	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Year > grouped[j].Year
	})

	return grouped
}

// FilterSearch keeps items whose title, director name or series name
// contains the query, case-insensitively. A blank query keeps everything.
func FilterSearch(items []content.ContentItem, query string) []content.ContentItem {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}

	matched := make([]content.ContentItem, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), query) ||
			strings.Contains(strings.ToLower(item.DirectorName), query) ||
			(item.IsSeries && strings.Contains(strings.ToLower(item.SeriesName), query)) {
			matched = append(matched, item)
		}
	}

	return matched
}

// FilterGenre keeps items whose genre matches exactly, case-insensitively.
// The GenreAll sentinel (or a blank selection) keeps everything.
func FilterGenre(items []content.ContentItem, genre string) []content.ContentItem {
	if genre == "" || strings.EqualFold(genre, GenreAll) {
		return items
	}

	matched := make([]content.ContentItem, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Genre, genre) {
			matched = append(matched, item)
		}
	}

	return matched
}

// AvailableGenres returns the sorted distinct genres present in the
// catalogue, with the GenreAll sentinel prepended.
func AvailableGenres(items []content.ContentItem) []string {
	seen := make(map[string]struct{}, len(items))
	genres := make([]string, 0, len(items))
	for _, item := range items {
		if item.Genre == "" {
			continue
		}
		if _, ok := seen[item.Genre]; ok {
			continue
		}

		seen[item.Genre] = struct{}{}
		genres = append(genres, item.Genre)
	}

	sort.Strings(genres)
	return append([]string{GenreAll}, genres...)
}

// Featured picks the item for the hero slot: the most recently added raw
// item when no filter is active, otherwise the first of the filtered
// grouped results. Returns nil when nothing qualifies.
func Featured(raw []content.ContentItem, filtered []content.ContentItem, filterActive bool) *content.ContentItem {
	if !filterActive {
		var newest *content.ContentItem
		for idx := range raw {
			if newest == nil || raw[idx].CreatedAt.After(newest.CreatedAt) {
				newest = &raw[idx]
			}
		}

		return newest
	}

	if len(filtered) == 0 {
		return nil
	}

	return &filtered[0]
}

// Recommend builds the related-items rail for a detail view. Branches are
// tried in order and the first non-empty one wins: other chapters of the
// same series (ascending by chapter), then other work by the same
// director, then a small random sample of the rest of the catalogue.
func Recommend(current content.ContentItem, catalogue []content.ContentItem) Recommendations {
	others := make([]content.ContentItem, 0, len(catalogue))
	for _, item := range catalogue {
		if item.ID != current.ID {
			others = append(others, item)
		}
	}

	if current.IsSeries && current.SeriesName != "" {
		siblings := make([]content.ContentItem, 0)
		for _, item := range others {
			if item.IsSeries && strings.EqualFold(item.SeriesName, current.SeriesName) {
				siblings = append(siblings, item)
			}
		}

		if len(siblings) > 0 {
			sort.SliceStable(siblings, func(i, j int) bool {
				return siblings[i].ChapterNumber < siblings[j].ChapterNumber
			})

			return Recommendations{
				Title: fmt.Sprintf("More episodes of %s", current.SeriesName),
				Items: limitTo(siblings, maxSeriesRecommendations),
			}
		}
	}

	sameDirector := make([]content.ContentItem, 0)
	for _, item := range others {
		if item.DirectorID == current.DirectorID {
			sameDirector = append(sameDirector, item)
		}
	}
	if len(sameDirector) > 0 {
		return Recommendations{
			Title: fmt.Sprintf("More from %s", current.DirectorName),
			Items: limitTo(dedupeSeries(sameDirector), maxDirectorRecommendations),
		}
	}

	shuffled := make([]content.ContentItem, len(others))
	copy(shuffled, others)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return Recommendations{
		Title: "You might like",
		Items: limitTo(dedupeSeries(shuffled), maxRandomRecommendations),
	}
}

// dedupeSeries keeps only the first-seen item of each series so a single
// series cannot flood a rail with its chapters. Standalone films are keyed
// by their own id and always pass through.
func dedupeSeries(items []content.ContentItem) []content.ContentItem {
	seen := make(map[string]struct{}, len(items))
	deduped := make([]content.ContentItem, 0, len(items))
	for _, item := range items {
		key := item.GroupKey()
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		deduped = append(deduped, item)
	}

	return deduped
}

func limitTo(items []content.ContentItem, limit int) []content.ContentItem {
	if len(items) > limit {
		return items[:limit]
	}

	return items
}
