package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: liveness checks and the API document.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/db":    true,
	"/openapi.json": true,
}

// AuthSkipper matches on the registered route pattern, so query strings and
// path parameters cannot smuggle a protected route through.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
