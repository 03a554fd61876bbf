// Package contents exposes the catalogue over REST: the grouped home feed,
// item details with their recommendation rail, and owner/admin deletion.
package contents

import (
	"fmt"
	"net/http"

	"github.com/davguerra/filmoteca/internal/content"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/director"
	"github.com/davguerra/filmoteca/internal/feed"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		Get(db database.Queryable, id uuid.UUID) (*content.ContentItem, error)
		ListAll(db database.Queryable) ([]content.ContentItem, error)
		Delete(db database.Queryable, id uuid.UUID) error
	}

	DirectorStore interface {
		Get(db database.Queryable, uid string) (*director.Director, error)
	}

	Identity interface {
		DirectorID(echo.Context) string
	}

	Controller struct {
		store         Store
		directorStore DirectorStore
		db            queryableProvider
		identity      Identity
	}

	queryableProvider interface {
		GetSqlxDb() *sqlx.DB
	}
)

func New(store Store, directorStore DirectorStore, db queryableProvider, identity Identity) *Controller {
	return &Controller{store: store, directorStore: directorStore, db: db, identity: identity}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.GET("/feed/", controller.homeFeed)
	eg.GET("/:id/", controller.get)
	eg.GET("/:id/related/", controller.related)
	eg.DELETE("/:id/", controller.delete)
}

// list returns the raw, ungrouped catalogue ordered newest-first.
func (controller *Controller) list(ec echo.Context) error {
	items, err := controller.store.ListAll(controller.db.GetSqlxDb())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while listing content: %v", err))
	}

	return ec.JSON(http.StatusOK, items)
}

// homeFeed returns the grouped catalogue with the search/genre query
// params applied, plus the featured item and the available genre list.
func (controller *Controller) homeFeed(ec echo.Context) error {
	items, err := controller.store.ListAll(controller.db.GetSqlxDb())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while listing content: %v", err))
	}

	search := ec.QueryParam("search")
	genre := ec.QueryParam("genre")

	filtered := feed.Group(feed.FilterGenre(feed.FilterSearch(items, search), genre))
	filterActive := search != "" || (genre != "" && genre != feed.GenreAll)

	return ec.JSON(http.StatusOK, feed.View{
		Featured: feed.Featured(items, filtered, filterActive),
		Items:    filtered,
		Genres:   feed.AvailableGenres(items),
		Search:   search,
		Genre:    genre,
	})
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Content ID '%s' is not a valid UUID", ec.Param("id")))
	}

	item, err := controller.store.Get(controller.db.GetSqlxDb(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading content: %v", err))
	}
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Content with ID %s not found", id))
	}

	return ec.JSON(http.StatusOK, item)
}

// related returns the recommendation rail for the given item.
func (controller *Controller) related(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Content ID '%s' is not a valid UUID", ec.Param("id")))
	}

	item, err := controller.store.Get(controller.db.GetSqlxDb(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading content: %v", err))
	}
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Content with ID %s not found", id))
	}

	catalogue, err := controller.store.ListAll(controller.db.GetSqlxDb())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while listing content: %v", err))
	}

	recommendations := feed.Recommend(*item, catalogue)
	return ec.JSON(http.StatusOK, map[string]any{
		"title": recommendations.Title,
		"items": recommendations.Items,
	})
}

// delete removes an item. Only the owning director or an admin may do so.
func (controller *Controller) delete(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Content ID '%s' is not a valid UUID", ec.Param("id")))
	}

	item, err := controller.store.Get(controller.db.GetSqlxDb(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading content: %v", err))
	}
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Content with ID %s not found", id))
	}

	actorID := controller.identity.DirectorID(ec)
	actor, err := controller.directorStore.Get(controller.db.GetSqlxDb(), actorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading profile: %v", err))
	}

	if !director.CanDeleteContent(actor, item.DirectorID) {
		return echo.NewHTTPError(http.StatusForbidden, "Only the owning director or an admin may delete this content")
	}

	if err := controller.store.Delete(controller.db.GetSqlxDb(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while deleting content: %v", err))
	}

	return ec.NoContent(http.StatusNoContent)
}
