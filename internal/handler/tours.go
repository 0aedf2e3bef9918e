// Package handler exposes HTTP handlers for both authenticated and public
// endpoints.  This file defines the public tour browse API.  These routes
// let unauthenticated users discover upcoming tours; eligibility flags and
// pricing internals stay hidden, and responses are shaped for caching by
// the Redis response cache middleware.

package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/novinclub/benefits-server/internal/repository"
)

// TourHandler aggregates the repository needed for unauthenticated browsing.
type TourHandler struct {
    TourRepo *repository.TourRepo // provides access to tour data
}

// PublicTour represents a tour in list responses.  It contains only safe
// fields; capability and feature requirements are not exposed.
type PublicTour struct {
    ID               uint64    `json:"id"`
    Title            string    `json:"title"`
    StartsAt         time.Time `json:"starts_at"`
    EndsAt           time.Time `json:"ends_at"`
    RegistrationOpen bool      `json:"registration_open"`
}

// PublicWindow represents a capacity window in detail responses.
type PublicWindow struct {
    ID       uint64    `json:"id"`
    OpensAt  time.Time `json:"opens_at"`
    ClosesAt time.Time `json:"closes_at"`
    Open     bool      `json:"open"`
}

// PublicTourDetail represents a detailed tour response with its capacity
// windows.  Ceilings and utilization are intentionally absent: remaining
// capacity is only decided inside a finalization transaction.
type PublicTourDetail struct {
    ID                      uint64         `json:"id"`
    Title                   string         `json:"title"`
    StartsAt                time.Time      `json:"starts_at"`
    EndsAt                  time.Time      `json:"ends_at"`
    RegistrationOpensAt     time.Time      `json:"registration_opens_at"`
    RegistrationClosesAt    time.Time      `json:"registration_closes_at"`
    MaxGuestsPerReservation int            `json:"max_guests_per_reservation"`
    Windows                 []PublicWindow `json:"windows"`
}

// ListTours returns all active tours ordered by start time.  Response JSON
// contains an "items" array of PublicTour.
func (h *TourHandler) ListTours(c echo.Context) error {
    ctx := c.Request().Context()
    tours, err := h.TourRepo.ListActive(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    now := time.Now().UTC()
    out := make([]PublicTour, 0, len(tours))
    for _, t := range tours {
        out = append(out, PublicTour{
            ID:               t.ID,
            Title:            t.Title,
            StartsAt:         t.StartsAt,
            EndsAt:           t.EndsAt,
            RegistrationOpen: !now.Before(t.RegistrationOpensAt) && !now.After(t.RegistrationClosesAt),
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetTour returns details of a single active tour, including its capacity
// windows with an open/closed flag computed at request time.
func (h *TourHandler) GetTour(c echo.Context) error {
    ctx := c.Request().Context()
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    t, err := h.TourRepo.GetByID(ctx, id)
    if err != nil {
        if err == repository.ErrTourNotFound {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "tour not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if !t.Active {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "tour not found"})
    }
    now := time.Now().UTC()
    resp := PublicTourDetail{
        ID:                      t.ID,
        Title:                   t.Title,
        StartsAt:                t.StartsAt,
        EndsAt:                  t.EndsAt,
        RegistrationOpensAt:     t.RegistrationOpensAt,
        RegistrationClosesAt:    t.RegistrationClosesAt,
        MaxGuestsPerReservation: t.MaxGuestsPerReservation,
        Windows:                 make([]PublicWindow, 0, len(t.Windows)),
    }
    for _, w := range t.Windows {
        if !w.Active {
            continue
        }
        resp.Windows = append(resp.Windows, PublicWindow{
            ID:       w.ID,
            OpensAt:  w.OpensAt,
            ClosesAt: w.ClosesAt,
            Open:     !now.Before(w.OpensAt) && !now.After(w.ClosesAt),
        })
    }
    return c.JSON(http.StatusOK, resp)
}
