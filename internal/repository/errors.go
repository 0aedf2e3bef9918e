// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the finalization engine to distinguish between failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrReservationNotFound indicates that no reservation row exists for the
// requested identifier.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrTourNotFound indicates that no tour row exists for the requested
// identifier.
var ErrTourNotFound = errors.New("tour not found")

// ErrMemberNotFound indicates that no membership record exists for the
// requested external user id.  Lookups by national identifier return
// (nil, nil) instead, because "no membership" is a valid answer there.
var ErrMemberNotFound = errors.New("member not found")
