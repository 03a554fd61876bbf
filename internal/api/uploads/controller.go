// Package uploads exposes the publication workflow over REST: submitting a
// new item, re-submitting an edited one, and pushing profile image assets
// to blob storage.
package uploads

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/davguerra/filmoteca/internal/content"
	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/director"
	"github.com/davguerra/filmoteca/internal/upload"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		Create(db database.Queryable, item content.ContentItem) (*content.ContentItem, error)
		Update(db database.Queryable, item content.ContentItem) (*content.ContentItem, error)
		ExistsVideoURL(db database.Queryable, url string) bool
		ExistsChapter(db database.Queryable, directorID string, seriesName string, chapterNumber int) bool
		Get(db database.Queryable, id uuid.UUID) (*content.ContentItem, error)
	}

	DirectorStore interface {
		Get(db database.Queryable, uid string) (*director.Director, error)
	}

	BlobClient interface {
		Upload(ctx context.Context, fileName string, content []byte) (string, error)
	}

	Identity interface {
		DirectorID(echo.Context) string
	}

	Controller struct {
		store         Store
		directorStore DirectorStore
		blobClient    BlobClient
		db            queryableProvider
		identity      Identity
		validate      *validator.Validate
	}

	queryableProvider interface {
		GetSqlxDb() *sqlx.DB
	}

	draftRequest struct {
		Title         string `json:"title"`
		VideoURL      string `json:"videoUrl"`
		Genre         string `json:"genre"`
		Synopsis      string `json:"synopsis"`
		Year          int    `json:"year"`
		IsSeries      bool   `json:"isSeries"`
		SeriesName    string `json:"seriesName"`
		ChapterNumber *int   `json:"chapterNumber"`
	}

	assetRequest struct {
		FileName   string `json:"fileName" validate:"required"`
		FileBase64 string `json:"fileBase64" validate:"required"`
	}
)

func New(
	validate *validator.Validate,
	store Store,
	directorStore DirectorStore,
	blobClient BlobClient,
	db queryableProvider,
	identity Identity,
) *Controller {
	return &Controller{
		store:         store,
		directorStore: directorStore,
		blobClient:    blobClient,
		db:            db,
		identity:      identity,
		validate:      validate,
	}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.submitNew)
	eg.PUT("/:id/", controller.submitEdit)
	eg.POST("/assets/", controller.uploadAsset)
}

func (controller *Controller) submitNew(ec echo.Context) error {
	return controller.submit(ec, nil)
}

func (controller *Controller) submitEdit(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Content ID '%s' is not a valid UUID", ec.Param("id")))
	}

	existing, err := controller.store.Get(controller.db.GetSqlxDb(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading content: %v", err))
	}
	if existing == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Content with ID %s not found", id))
	}

	if existing.DirectorID != controller.identity.DirectorID(ec) {
		return echo.NewHTTPError(http.StatusForbidden, "Only the owning director may edit this content")
	}

	return controller.submit(ec, existing)
}

func (controller *Controller) submit(ec echo.Context, editing *content.ContentItem) error {
	uid := controller.identity.DirectorID(ec)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity provided")
	}

	profile, err := controller.directorStore.Get(controller.db.GetSqlxDb(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading profile: %v", err))
	}

	var request draftRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	draft := upload.Draft{
		Title:      request.Title,
		VideoURL:   request.VideoURL,
		Genre:      request.Genre,
		Synopsis:   request.Synopsis,
		Year:       request.Year,
		IsSeries:   request.IsSeries,
		SeriesName: request.SeriesName,
	}
	if request.ChapterNumber != nil {
		draft.ChapterInput = strconv.Itoa(*request.ChapterNumber)
	}

	item, err := upload.Submit(controller.store, controller.db.GetSqlxDb(), profile, draft, editing)
	if err != nil {
		var validation *upload.ValidationError
		if errors.As(err, &validation) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, validation.Message)
		}

		var conflict *upload.ConflictError
		if errors.As(err, &conflict) {
			return echo.NewHTTPError(http.StatusConflict, conflict.Message)
		}

		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while publishing: %v", err))
	}

	status := http.StatusCreated
	if editing != nil {
		status = http.StatusOK
	}

	return ec.JSON(status, item)
}

// uploadAsset pushes a base64-encoded file to blob storage and returns the
// permanent public URL. Used for profile images and payment QR codes.
func (controller *Controller) uploadAsset(ec echo.Context) error {
	uid := controller.identity.DirectorID(ec)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity provided")
	}

	profile, err := controller.directorStore.Get(controller.db.GetSqlxDb(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading profile: %v", err))
	}
	if !director.RoleOf(profile).CanUpload() {
		return echo.NewHTTPError(http.StatusForbidden, "Account is not allowed to upload assets")
	}

	var request assetRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	fileContent, err := base64.StdEncoding.DecodeString(request.FileBase64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fileBase64 is not valid base64")
	}

	url, err := controller.blobClient.Upload(ec.Request().Context(), request.FileName, fileContent)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("Asset upload failed: %v", err))
	}

	return ec.JSON(http.StatusOK, map[string]string{"url": url})
}
