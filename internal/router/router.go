package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/novinclub/benefits-server/internal/handler" // import the handlers that implement business logic
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated browse endpoints on the provided
// Echo instance.  The TourHandler returns sanitized tour data for guests.
// The optional cache middleware serves repeated reads from Redis; pass nil
// to disable caching.
func RegisterPublic(e *echo.Echo, t *handler.TourHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/tours")
	if cache != nil {
		g.Use(cache)
	}
	// Expose the list of all active tours
	g.GET("", t.ListTours)
	// Tour details by tour id, including capacity windows
	g.GET("/:id", t.GetTour)
}
