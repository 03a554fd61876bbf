// Package directors exposes profile management over REST: sign-in profile
// bootstrap, full-document profile edits, the public director listing, and
// admin moderation of the blocked flag.
package directors

import (
	"fmt"
	"net/http"

	"github.com/davguerra/filmoteca/internal/database"
	"github.com/davguerra/filmoteca/internal/director"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		Get(db database.Queryable, uid string) (*director.Director, error)
		Save(db database.Queryable, profile director.Director) (*director.Director, error)
		Ensure(db database.Queryable, profile director.Director) error
		List(db database.Queryable) ([]director.Director, error)
		SetBlocked(db database.Queryable, uid string, blocked bool) error
	}

	Identity interface {
		DirectorID(echo.Context) string
	}

	Controller struct {
		store    Store
		db       queryableProvider
		identity Identity
		validate *validator.Validate
	}

	queryableProvider interface {
		GetSqlxDb() *sqlx.DB
	}

	signInRequest struct {
		Name  string `json:"name" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	}

	moderationRequest struct {
		Blocked bool `json:"blocked"`
	}
)

func New(validate *validator.Validate, store Store, db queryableProvider, identity Identity) *Controller {
	return &Controller{store: store, db: db, identity: identity, validate: validate}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.GET("/:uid/", controller.get)
	eg.POST("/sign-in/", controller.signIn)
	eg.PUT("/me/", controller.save)
	eg.PUT("/:uid/moderation/", controller.moderate)
}

func (controller *Controller) list(ec echo.Context) error {
	profiles, err := controller.store.List(controller.db.GetSqlxDb())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while listing directors: %v", err))
	}

	return ec.JSON(http.StatusOK, profiles)
}

func (controller *Controller) get(ec echo.Context) error {
	profile, err := controller.store.Get(controller.db.GetSqlxDb(), ec.Param("uid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading profile: %v", err))
	}
	if profile == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Director with uid %s not found", ec.Param("uid")))
	}

	return ec.JSON(http.StatusOK, profile)
}

// signIn bootstraps a starter profile for the authenticated account on its
// first sign-in. First write wins: an already-existing profile is never
// overwritten by this endpoint, no matter what the request carries.
func (controller *Controller) signIn(ec echo.Context) error {
	uid := controller.identity.DirectorID(ec)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity provided")
	}

	var request signInRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	starter := director.Director{
		UID:         uid,
		Name:        request.Name,
		Email:       request.Email,
		Festivals:   database.NewJsonColumn([]director.Festival{}),
		Awards:      database.NewJsonColumn([]director.Award{}),
		SocialLinks: database.NewJsonColumn(map[string]string{}),
	}
	if err := controller.store.Ensure(controller.db.GetSqlxDb(), starter); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while creating profile: %v", err))
	}

	profile, err := controller.store.Get(controller.db.GetSqlxDb(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading profile: %v", err))
	}

	return ec.JSON(http.StatusOK, profile)
}

// save overwrites the authenticated directors own profile wholesale. The
// uid and moderation flags are never taken from the request body.
func (controller *Controller) save(ec echo.Context) error {
	uid := controller.identity.DirectorID(ec)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No identity provided")
	}

	existing, err := controller.store.Get(controller.db.GetSqlxDb(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading profile: %v", err))
	}
	if existing == nil {
		return echo.NewHTTPError(http.StatusNotFound, "No profile exists for this account; sign in first")
	}
	if director.RoleOf(existing) == director.Blocked {
		return echo.NewHTTPError(http.StatusForbidden, "Account is blocked")
	}

	var profile director.Director
	if err := ec.Bind(&profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	profile.UID = uid
	profile.IsAdmin = existing.IsAdmin
	profile.IsBlocked = existing.IsBlocked
	profile.CreatedAt = existing.CreatedAt

	saved, err := controller.store.Save(controller.db.GetSqlxDb(), profile)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while saving profile: %v", err))
	}

	return ec.JSON(http.StatusOK, saved)
}

// moderate toggles the blocked flag on an account. Admin only.
func (controller *Controller) moderate(ec echo.Context) error {
	actorID := controller.identity.DirectorID(ec)
	actor, err := controller.store.Get(controller.db.GetSqlxDb(), actorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while loading profile: %v", err))
	}
	if director.RoleOf(actor) != director.Admin {
		return echo.NewHTTPError(http.StatusForbidden, "Only admins may moderate accounts")
	}

	var request moderationRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}

	if err := controller.store.SetBlocked(controller.db.GetSqlxDb(), ec.Param("uid"), request.Blocked); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Error occurred while updating account: %v", err))
	}

	return ec.NoContent(http.StatusNoContent)
}
