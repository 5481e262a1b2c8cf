// Package router assembles the gin engine of the ledger API.
package router

import (
	"github.com/gin-gonic/gin"
)

// DefaultAPIVersion is the path segment of the current API
const DefaultAPIVersion = "v1"

// Route is one endpoint. Permission is the claim a caller needs when authentication is on.
type Route struct {
	Method     string
	Path       string
	Permission string
	Handler    gin.HandlerFunc
}

// Resource groups the routes served under one path prefix
type Resource struct {
	Name   string
	Prefix string
	Routes []Route
}

// guard builds the middleware that enforces a permission
type guard func(permission string) gin.HandlerFunc

// allowAll is the guard used without authentication
func allowAll(string) gin.HandlerFunc {
	return func(c *gin.Context) { c.Next() }
}

// Mount registers resources under /api/{version}. middleware runs for every API route, before
// the route's permission check.
func Mount(engine *gin.Engine, version string, require guard, middleware []gin.HandlerFunc, resources ...Resource) *gin.RouterGroup {
	if version == "" {
		version = DefaultAPIVersion
	}
	if require == nil {
		require = allowAll
	}

	api := engine.Group("/api/"+version, middleware...)
	for _, res := range resources {
		group := api.Group(res.Prefix)
		for _, route := range res.Routes {
			group.Handle(route.Method, route.Path, require(route.Permission), route.Handler)
		}
	}
	return api
}
