package api

import "github.com/labstack/echo/v4"

// DirectorIDHeader carries the authenticated account's uid. Authentication
// happens at the edge proxy; by the time a request reaches this service the
// header is trusted.
const DirectorIDHeader = "X-Director-Id"

type headerIdentity struct{}

func (headerIdentity) DirectorID(ec echo.Context) string {
	return ec.Request().Header.Get(DirectorIDHeader)
}
