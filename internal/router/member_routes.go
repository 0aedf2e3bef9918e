package router

import (
	"github.com/labstack/echo/v4"

	"github.com/novinclub/benefits-server/internal/handler"
	"github.com/novinclub/benefits-server/internal/middleware"
)

// RegisterMember registers member-scoped endpoints under /v1.  All routes
// require a valid JWT with the member role.  Members can finalize their
// draft reservations and view their own reservations.  The optional rate
// limiter keeps a retrying client from hammering the finalization locks;
// pass nil to disable it.
func RegisterMember(e *echo.Echo, f *handler.FinalizeHandler, r *handler.MemberReservationHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("member"),
	)
	if limit != nil {
		g.Use(limit)
	}
	// Note: GET /v1/tours and GET /v1/tours/:id are registered on the
	// public router so that guests can browse tours before signing in.
	// Member-specific endpoints begin here.
	g.POST("/reservations/:id/finalize", f.Finalize)
	g.GET("/my-reservations", r.ListMyReservations)
}
