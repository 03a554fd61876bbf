package api

import (
	"context"
	"sync"

	"github.com/davguerra/filmoteca/internal/api/contents"
	"github.com/davguerra/filmoteca/internal/api/directors"
	"github.com/davguerra/filmoteca/internal/api/uploads"
	"github.com/davguerra/filmoteca/internal/event"
	"github.com/davguerra/filmoteca/internal/http/websocket"
	"github.com/davguerra/filmoteca/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// dataStore is the union of all the controller store requirements.
	dataStore interface {
		contents.Store
		uploads.Store
	}

	queryableProvider interface {
		GetSqlxDb() *sqlx.DB
	}

	// RestGateway is a thin wrapper around the Echo HTTP router. Its sole
	// responsibility is to create the routes the platform exposes, manage
	// ongoing websocket connections, and enforce the identity header where
	// applicable.
	RestGateway struct {
		*broadcaster
		config             *RestConfig
		ec                 *echo.Echo
		socket             *websocket.SocketHub
		contentController  controller
		directorController controller
		uploadController   controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers.
func NewRestGateway(
	config *RestConfig,
	eventBus event.EventCoordinator,
	store dataStore,
	directorStore directors.Store,
	blobClient uploads.BlobClient,
	db queryableProvider,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	identity := headerIdentity{}
	socket := websocket.NewHub()
	gateway := &RestGateway{
		broadcaster:        newBroadcaster(socket, eventBus),
		config:             config,
		ec:                 ec,
		socket:             socket,
		contentController:  contents.New(store, directorStore, db, identity),
		directorController: directors.New(validate, directorStore, db, identity),
		uploadController:   uploads.New(validate, store, directorStore, blobClient, db, identity),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/filmoteca/v1/activity/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	contentGroup := ec.Group("/api/filmoteca/v1/contents")
	gateway.contentController.SetRoutes(contentGroup)

	directorGroup := ec.Group("/api/filmoteca/v1/directors")
	gateway.directorController.SetRoutes(directorGroup)

	uploadGroup := ec.Group("/api/filmoteca/v1/uploads")
	gateway.uploadController.SetRoutes(uploadGroup)

	return gateway
}

// SetConnectionCallback provides the payload embedded in every new socket
// client's welcome message, so clients start with the current state.
func (gateway *RestGateway) SetConnectionCallback(callback func() map[string]any) {
	gateway.socket.WithConnectionCallback(callback)
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
