// This file defines the finalization endpoint: the state-changing heart of
// the service.  A member POSTs to /v1/reservations/:id/finalize and the
// engine either transitions the draft to HELD with a bill attached or
// reports a typed failure that maps onto an HTTP status here.

package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/novinclub/benefits-server/internal/finalize"
    "github.com/novinclub/benefits-server/internal/middleware"
)

// FinalizeHandler exposes the finalization engine over HTTP.
type FinalizeHandler struct {
    Engine *finalize.Engine // runs the finalization saga
}

// Finalize handles POST /v1/reservations/:id/finalize.  The reservation id
// comes from the path and the acting member from the verified JWT subject.
// Success returns 200 with the hold summary; failures return the mapped
// status with a machine-readable error code and a human-readable message.
func (h *FinalizeHandler) Finalize(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    actor := middleware.ActorExternalID(c)
    if actor == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
    }

    result, err := h.Engine.Finalize(c.Request().Context(), id, actor)
    if err != nil {
        var ferr *finalize.Error
        if errors.As(err, &ferr) {
            return c.JSON(statusFor(ferr.Kind), echo.Map{
                "error":   ferr.Kind.String(),
                "message": ferr.Message,
            })
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
    return c.JSON(http.StatusOK, result)
}

// statusFor maps an engine failure kind onto the HTTP status the client
// sees.  Capacity and conflict failures are 409 because a retry against
// changed state may succeed; validation-shaped failures are 422; billing
// failures are 502 because the fault lies with an upstream dependency.
func statusFor(kind finalize.Kind) int {
    switch kind {
    case finalize.KindNotFound:
        return http.StatusNotFound
    case finalize.KindPrecondition, finalize.KindFraudMismatch, finalize.KindPricingUnresolved:
        return http.StatusUnprocessableEntity
    case finalize.KindCapacityExceeded, finalize.KindConflict:
        return http.StatusConflict
    case finalize.KindBillingFailed:
        return http.StatusBadGateway
    default:
        return http.StatusInternalServerError
    }
}
