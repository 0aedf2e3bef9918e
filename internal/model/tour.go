package model

import "time"

// Tour is read-mostly reference data owned by the tour-management bounded
// context.  The finalization engine only reads it.
//
// Fields:
//  ID                       – primary key identifier.
//  Title                    – tour display title.
//  Active                   – whether the tour accepts reservations at all.
//  StartsAt                 – departure time of the tour.
//  EndsAt                   – return time of the tour.
//  RegistrationOpensAt      – start of the registration window.
//  RegistrationClosesAt     – end of the registration window.
//  MaxParticipants          – tour-wide participant ceiling.
//  MaxGuestsPerReservation  – guest ceiling per single reservation.
//  MinAge / MaxAge          – optional age restrictions.
//  RequiredCapability       – capability code a member must hold to register.
//  RequiredFeature          – feature code a member must hold to register.
//  Windows                  – capacity windows (sub-allocations).
//  PricingRules             – per-participant-type pricing rules.
type Tour struct {
    ID                      uint64           // tours.id
    Title                   string           // tours.title
    Active                  bool             // tours.is_active
    StartsAt                time.Time        // tours.starts_at
    EndsAt                  time.Time        // tours.ends_at
    RegistrationOpensAt     time.Time        // tours.registration_opens_at
    RegistrationClosesAt    time.Time        // tours.registration_closes_at
    MaxParticipants         int              // tours.max_participants
    MaxGuestsPerReservation int              // tours.max_guests_per_reservation
    MinAge                  *int             // tours.min_age (nullable)
    MaxAge                  *int             // tours.max_age (nullable)
    RequiredCapability      *string          // tours.required_capability (nullable)
    RequiredFeature         *string          // tours.required_feature (nullable)
    Windows                 []CapacityWindow // tour_capacity_windows rows
    PricingRules            []PricingRule    // tour_pricing_rules rows
    CreatedAt               time.Time        // tours.created_at
    UpdatedAt               time.Time        // tours.updated_at
}

// CapacityWindow is an optional sub-allocation of a tour's capacity with
// its own registration period and ceiling.  A reservation may target one;
// when it does, the window's ceiling applies instead of the tour-wide one.
type CapacityWindow struct {
    ID              uint64    // tour_capacity_windows.id
    TourID          uint64    // tour_capacity_windows.tour_id
    MaxParticipants int       // tour_capacity_windows.max_participants
    Active          bool      // tour_capacity_windows.is_active
    OpensAt         time.Time // tour_capacity_windows.opens_at
    ClosesAt        time.Time // tour_capacity_windows.closes_at
}

// PricingRule is one layer of a tour's pricing policy.  Rules may be
// scoped to a membership capability or feature code, restricted to a
// validity window and bounded by participant counts.  Rules without a
// capability or feature scope act as the default for their participant
// type.
type PricingRule struct {
    ID              uint64     // tour_pricing_rules.id
    TourID          uint64     // tour_pricing_rules.tour_id
    ParticipantType string     // tour_pricing_rules.participant_type
    BasePrice       int64      // tour_pricing_rules.base_price
    FinalPrice      int64      // tour_pricing_rules.final_price
    DiscountPercent float64    // tour_pricing_rules.discount_percent
    CapabilityCode  *string    // tour_pricing_rules.capability_code (nullable)
    FeatureCode     *string    // tour_pricing_rules.feature_code (nullable)
    ValidFrom       *time.Time // tour_pricing_rules.valid_from (nullable)
    ValidTo         *time.Time // tour_pricing_rules.valid_to (nullable)
    MinCount        *int       // tour_pricing_rules.min_count (nullable)
    MaxCount        *int       // tour_pricing_rules.max_count (nullable)
    Active          bool       // tour_pricing_rules.is_active
}
