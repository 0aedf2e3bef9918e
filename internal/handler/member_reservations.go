// This file defines the authenticated member surface for reservations:
// listing the caller's own reservations with their lifecycle state, bill
// reference and hold expiry.

package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/novinclub/benefits-server/internal/middleware"
    "github.com/novinclub/benefits-server/internal/repository"
)

// MemberReservationHandler serves reservation reads scoped to the
// authenticated member.
type MemberReservationHandler struct {
    MemberRepo      *repository.MemberRepo      // maps the JWT subject to a membership record
    ReservationRepo *repository.ReservationRepo // provides reservation reads
}

// ListMyReservations handles GET /v1/my-reservations.  The caller is
// resolved from the JWT subject to a national identifier, then all
// reservations owned by that identifier are returned, newest first.
func (h *MemberReservationHandler) ListMyReservations(c echo.Context) error {
    ctx := c.Request().Context()
    actor := middleware.ActorExternalID(c)
    if actor == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
    }
    member, err := h.MemberRepo.MemberByExternalID(ctx, actor)
    if err != nil {
        if errors.Is(err, repository.ErrMemberNotFound) {
            return c.JSON(http.StatusForbidden, echo.Map{"error": "no membership record"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    items, err := h.ReservationRepo.ListByOwner(ctx, member.NationalID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
