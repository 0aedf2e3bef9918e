package model

import "time"

// Reservation lifecycle statuses.  A reservation is created as DRAFT by the
// creation workflow and becomes HELD once finalization succeeds.  PAYING and
// CONFIRMED are later payment-driven states; EXPIRED and CANCELLED are
// terminal.  Only DRAFT reservations may be finalized.
const (
    StatusDraft     = "DRAFT"
    StatusHeld      = "HELD"
    StatusPaying    = "PAYING"
    StatusConfirmed = "CONFIRMED"
    StatusExpired   = "EXPIRED"
    StatusCancelled = "CANCELLED"
)

// Participant types.  MEMBER participants must resolve to an active
// membership at finalization time; GUEST participants must not.
const (
    TypeMember = "MEMBER"
    TypeGuest  = "GUEST"
)

// Reservation records a member's booking for a tour.  It aggregates one or
// more participants plus the price snapshots produced during finalization
// and tracks the overall status, bill reference and hold expiry.
//
// Fields:
//  ID               – primary key identifier.
//  TourID           – tour being reserved.
//  CapacityWindowID – optional capacity window targeted by the reservation.
//  TrackingCode     – human readable, unique booking reference.
//  OwnerNationalID  – national identifier of the member who owns the booking.
//  Status           – lifecycle state (see status constants above).
//  TotalAmount      – total price across participants, in currency units.
//  BillID           – billing service identifier, set once a bill is issued.
//  BillNumber       – human readable bill number from the billing service.
//  ExpiresAt        – hold expiry; non-nil once the reservation is HELD.
//  Participants     – ordered participant list.
//  Snapshots        – immutable per-group price snapshots.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Reservation struct {
    ID               uint64          // reservations.id
    TourID           uint64          // reservations.tour_id
    CapacityWindowID *uint64         // reservations.capacity_window_id (nullable)
    TrackingCode     string          // reservations.tracking_code
    OwnerNationalID  string          // reservations.owner_national_id
    Status           string          // reservations.status
    TotalAmount      int64           // reservations.total_amount
    BillID           *uint64         // reservations.bill_id (nullable)
    BillNumber       *string         // reservations.bill_number (nullable)
    ExpiresAt        *time.Time      // reservations.expires_at (nullable)
    Participants     []Participant   // ordered by reservation_participants.id
    Snapshots        []PriceSnapshot // price_snapshots rows for this reservation
    CreatedAt        time.Time       // reservations.created_at
    UpdatedAt        time.Time       // reservations.updated_at
}

// Participant is a person travelling under a reservation.  The claimed
// type is whatever was recorded at draft time; the fraud revalidation step
// re-derives the true membership status from authoritative data before the
// reservation can be held.
//
// Fields:
//  ID             – primary key identifier.
//  ReservationID  – owning reservation.
//  FullName       – participant display name.
//  NationalID     – national identifier used for membership lookups.
//  Phone          – contact number.
//  ClaimedType    – MEMBER or GUEST as recorded at draft time.
//  RequiredAmount – amount owed by this participant, set during pricing.
//  CreatedAt      – creation timestamp.
type Participant struct {
    ID             uint64    // reservation_participants.id
    ReservationID  uint64    // reservation_participants.reservation_id
    FullName       string    // reservation_participants.full_name
    NationalID     string    // reservation_participants.national_id
    Phone          string    // reservation_participants.phone
    ClaimedType    string    // reservation_participants.claimed_type
    RequiredAmount int64     // reservation_participants.required_amount
    CreatedAt      time.Time // reservation_participants.created_at
}

// PriceSnapshot is an immutable record of the price applied to one
// participant-type group at finalization time.  Snapshots are the single
// source of truth for the reservation total and must reconcile exactly
// with the issued bill.
//
// Fields:
//  ID              – primary key identifier.
//  ReservationID   – owning reservation.
//  ParticipantType – MEMBER or GUEST group the snapshot covers.
//  BasePrice       – rule price before discount, in currency units.
//  FinalPrice      – per-participant price actually charged.
//  DiscountPercent – discount applied by the pricing rule, if any.
//  PricingRuleID   – pricing rule the resolver selected.
//  CapabilityCode  – membership capability used to resolve the rule, if any.
//  FeatureCode     – membership feature used to resolve the rule, if any.
//  CreatedAt       – snapshot creation timestamp.
type PriceSnapshot struct {
    ID              uint64    // price_snapshots.id
    ReservationID   uint64    // price_snapshots.reservation_id
    ParticipantType string    // price_snapshots.participant_type
    BasePrice       int64     // price_snapshots.base_price
    FinalPrice      int64     // price_snapshots.final_price
    DiscountPercent float64   // price_snapshots.discount_percent
    PricingRuleID   uint64    // price_snapshots.pricing_rule_id
    CapabilityCode  *string   // price_snapshots.capability_code (nullable)
    FeatureCode     *string   // price_snapshots.feature_code (nullable)
    CreatedAt       time.Time // price_snapshots.created_at
}
