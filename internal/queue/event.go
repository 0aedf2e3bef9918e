// Package queue defines message payloads exchanged over the message broker.
package queue

// EventParticipant is the participant projection carried by integration
// events.  Amounts are final per-participant prices in currency units.
type EventParticipant struct {
    FullName       string `json:"full_name"`
    NationalID     string `json:"national_id"`
    ClaimedType    string `json:"claimed_type"`
    RequiredAmount int64  `json:"required_amount"`
}

// EventSnapshot is the price-snapshot projection carried by integration
// events.
type EventSnapshot struct {
    ParticipantType string  `json:"participant_type"`
    BasePrice       int64   `json:"base_price"`
    FinalPrice      int64   `json:"final_price"`
    DiscountPercent float64 `json:"discount_percent"`
    PricingRuleID   uint64  `json:"pricing_rule_id"`
}

// ReservationHeldEvent is published after a reservation commits the
// transition to HELD.  It contains enough information for downstream
// consumers (notifications, analytics, reconciliation) to act without
// querying the primary database.  Delivery is at-least-once and
// best-effort; consumers must tolerate duplicates and gaps.
type ReservationHeldEvent struct {
    EventID          string             `json:"event_id"`
    ReservationID    uint64             `json:"reservation_id"`
    TrackingCode     string             `json:"tracking_code"`
    TourID           uint64             `json:"tour_id"`
    TourTitle        string             `json:"tour_title"`
    TourStartsAt     string             `json:"tour_starts_at"`
    PreviousStatus   string             `json:"previous_status"`
    NewStatus        string             `json:"new_status"`
    BillID           uint64             `json:"bill_id"`
    BillNumber       string             `json:"bill_number"`
    TotalAmount      int64              `json:"total_amount"`
    ExpiresAt        string             `json:"expires_at"`
    Participants     []EventParticipant `json:"participants"`
    Snapshots        []EventSnapshot    `json:"price_snapshots"`
    HeldAt           string             `json:"held_at"`
}
