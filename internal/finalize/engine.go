// Package finalize implements the reservation finalization engine: the
// workflow that converts a DRAFT tour reservation into a financially
// committed, capacity-reserved HELD reservation.  Within one logical
// transaction it serializes concurrent attempts per reservation,
// re-verifies every participant's membership claim, enforces the window
// and tour capacity ceilings, computes immutable price snapshots per
// participant-type group, issues a bill that reconciles exactly with the
// snapshots, transitions the reservation to HELD and publishes an
// integration event.  Every failure before commit unwinds cleanly.
package finalize

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    "github.com/novinclub/benefits-server/internal/billing"
    "github.com/novinclub/benefits-server/internal/fraud"
    "github.com/novinclub/benefits-server/internal/lock"
    "github.com/novinclub/benefits-server/internal/model"
    "github.com/novinclub/benefits-server/internal/pricing"
    "github.com/novinclub/benefits-server/internal/queue"
    "github.com/novinclub/benefits-server/internal/repository"
)

// Store opens transaction scopes against the persistence collaborator.
type Store interface {
    Begin(ctx context.Context) (Tx, error)
}

// Tx is one transaction scope over the reservation and tour data.  All
// reads and writes of a single finalization happen through one Tx;
// Rollback after Commit is a no-op.
type Tx interface {
    // Reservation loads the reservation with participants and snapshots,
    // locking its row until the transaction ends.  Returns
    // repository.ErrReservationNotFound when no row exists.
    Reservation(ctx context.Context, id uint64) (*model.Reservation, error)
    // Tour loads the tour with capacity windows and pricing rules.
    // Returns repository.ErrTourNotFound when no row exists.
    Tour(ctx context.Context, id uint64) (*model.Tour, error)
    // LockTour serializes capacity decisions for the tour: the lock is
    // held until commit or rollback, across service instances.
    LockTour(ctx context.Context, tourID uint64) error
    // CountActiveParticipants returns current utilization for the tour
    // or, when windowID is non-nil, for that capacity window, excluding
    // the reservation being finalized.
    CountActiveParticipants(ctx context.Context, tourID uint64, windowID *uint64, excludeReservationID uint64) (int, error)
    // OtherActiveReservations lists live reservations for the tour owned
    // by the given national identifier, excluding the one being finalized.
    OtherActiveReservations(ctx context.Context, tourID uint64, nationalID string, excludeReservationID uint64) ([]repository.ActiveReservationSummary, error)
    // UpdateParticipantAmounts persists required amounts set by pricing.
    UpdateParticipantAmounts(ctx context.Context, participants []model.Participant) error
    // InsertSnapshots persists the immutable per-group price snapshots.
    InsertSnapshots(ctx context.Context, snaps []model.PriceSnapshot) error
    // MarkHeld transitions the reservation from DRAFT to HELD with its
    // bill reference, total and expiry.
    MarkHeld(ctx context.Context, res *model.Reservation, billID uint64, billNumber string, total int64, expiresAt time.Time) error
    Commit() error
    Rollback() error
}

// MembershipDirectory is the membership/eligibility collaborator.
type MembershipDirectory interface {
    // MemberByExternalID resolves the acting member from the identity
    // provider subject; returns repository.ErrMemberNotFound when the
    // caller has no membership record.
    MemberByExternalID(ctx context.Context, externalUserID string) (*model.Member, error)
    // MemberByNationalID returns the authoritative record for a national
    // identifier, or (nil, nil) when none exists.
    MemberByNationalID(ctx context.Context, nationalID string) (*model.Member, error)
    // AgencyAllowedForTour reports whether the member's issuing agency
    // may register for the tour.
    AgencyAllowedForTour(ctx context.Context, tourID uint64, agencyCode *string) (bool, error)
}

// BillingService is the billing collaborator.
type BillingService interface {
    Issue(ctx context.Context, req *billing.Request) (*billing.Bill, error)
}

// EventPublisher is the messaging collaborator.  Publish failures after
// commit are logged, never propagated.
type EventPublisher interface {
    PublishReservationHeld(ctx context.Context, event *queue.ReservationHeldEvent) error
}

// Config carries the engine's tunables.
type Config struct {
    // HoldDuration is how long a HELD reservation keeps its capacity and
    // price before expiring unpaid.
    HoldDuration time.Duration
    // MinLeadTime is the minimum gap between finalization and the tour's
    // departure.
    MinLeadTime time.Duration
    // Timeout bounds one finalize call end to end.  Zero disables the
    // deadline.
    Timeout time.Duration
}

// Result is returned to the caller after a successful finalization.
type Result struct {
    TrackingCode     string    `json:"tracking_code"`
    Status           string    `json:"status"`
    BillID           uint64    `json:"bill_id"`
    BillNumber       string    `json:"bill_number"`
    TotalAmount      int64     `json:"total_amount"`
    ExpiresAt        time.Time `json:"expires_at"`
    ParticipantCount int       `json:"participant_count"`
    TourTitle        string    `json:"tour_title"`
}

// Engine orchestrates reservation finalization.
type Engine struct {
    store     Store
    members   MembershipDirectory
    billing   BillingService
    publisher EventPublisher
    locks     *lock.Manager
    resolver  *pricing.Resolver
    verifier  *fraud.Revalidator
    cfg       Config
    log       *logrus.Logger
}

// NewEngine wires the engine with its collaborators.
func NewEngine(store Store, members MembershipDirectory, billingSvc BillingService, publisher EventPublisher, cfg Config, logger *logrus.Logger) *Engine {
    if logger == nil {
        logger = logrus.StandardLogger()
    }
    return &Engine{
        store:     store,
        members:   members,
        billing:   billingSvc,
        publisher: publisher,
        locks:     lock.NewManager(),
        resolver:  pricing.NewResolver(),
        verifier:  fraud.NewRevalidator(members),
        cfg:       cfg,
        log:       logger,
    }
}

// Finalize runs the full saga for one reservation on behalf of the acting
// external user.  Concurrent calls for the same reservation id are fully
// serialized; calls for different reservations run in parallel.  On any
// failure the transaction rolls back, the reservation stays DRAFT and a
// typed *Error describes the reason.
func (e *Engine) Finalize(ctx context.Context, reservationID uint64, actorExternalID string) (*Result, error) {
    if e.cfg.Timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
        defer cancel()
    }

    release, err := e.locks.Acquire(ctx, reservationID)
    if err != nil {
        return nil, failWith(KindUnexpected, "finalization cancelled while waiting for the reservation lock", err)
    }
    defer release()

    tx, err := e.store.Begin(ctx)
    if err != nil {
        return nil, failWith(KindUnexpected, "could not open a transaction", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := time.Now().UTC()

    res, tour, ferr := e.validate(ctx, tx, reservationID, actorExternalID, now)
    if ferr != nil {
        return nil, ferr
    }

    members, ferr := e.revalidate(ctx, res, now)
    if ferr != nil {
        return nil, ferr
    }

    if ferr := e.checkCapacity(ctx, tx, res, tour); ferr != nil {
        return nil, ferr
    }

    groups, snaps, total, ferr := e.price(res, tour, members, now)
    if ferr != nil {
        return nil, ferr
    }

    // All reversible writes happen before the bill is issued.  Bill
    // creation is the one step the rollback cannot compensate, so it must
    // be the last thing that can fail before the held transition: a
    // failure in any earlier write rolls back without an orphaned bill.
    expiresAt := now.Add(e.cfg.HoldDuration)
    if err := tx.UpdateParticipantAmounts(ctx, res.Participants); err != nil {
        return nil, failWith(KindUnexpected, "could not persist participant amounts", err)
    }
    if err := tx.InsertSnapshots(ctx, snaps); err != nil {
        return nil, failWith(KindUnexpected, "could not persist price snapshots", err)
    }

    bill, ferr := e.issueBill(ctx, res, tour, groups, snaps, total, now)
    if ferr != nil {
        return nil, ferr
    }

    if err := tx.MarkHeld(ctx, res, bill.ID, bill.Number, total, expiresAt); err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return nil, fail(KindPrecondition, "reservation is no longer finalizable")
        }
        return nil, failWith(KindUnexpected, "could not transition the reservation", err)
    }
    res.Snapshots = snaps

    if err := tx.Commit(); err != nil {
        return nil, failWith(KindUnexpected, "could not commit the transaction", err)
    }
    committed = true

    e.log.WithFields(logrus.Fields{
        "reservation_id": res.ID,
        "tracking_code":  res.TrackingCode,
        "tour_id":        tour.ID,
        "bill_number":    bill.Number,
        "total_amount":   total,
        "participants":   len(res.Participants),
        "expires_at":     expiresAt.Format(time.RFC3339),
    }).Info("reservation held")

    // Post-commit, non-transactional: publish failure must not undo the
    // committed state change.
    e.publish(ctx, res, tour, bill, now)

    return &Result{
        TrackingCode:     res.TrackingCode,
        Status:           res.Status,
        BillID:           bill.ID,
        BillNumber:       bill.Number,
        TotalAmount:      total,
        ExpiresAt:        expiresAt,
        ParticipantCount: len(res.Participants),
        TourTitle:        tour.Title,
    }, nil
}

// validate runs the pre-pricing gates: reservation and tour existence,
// lifecycle state, registration window, lead time, acting member identity,
// reservation ownership and tour eligibility, and the per-reservation
// guest ceiling.
func (e *Engine) validate(ctx context.Context, tx Tx, reservationID uint64, actorExternalID string, now time.Time) (*model.Reservation, *model.Tour, *Error) {
    res, err := tx.Reservation(ctx, reservationID)
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return nil, nil, fail(KindNotFound, "reservation not found")
        }
        return nil, nil, failWith(KindUnexpected, "could not load the reservation", err)
    }
    if res.Status != model.StatusDraft {
        return nil, nil, fail(KindPrecondition, "reservation is not finalizable")
    }

    tour, err := tx.Tour(ctx, res.TourID)
    if err != nil {
        if errors.Is(err, repository.ErrTourNotFound) {
            return nil, nil, fail(KindNotFound, "tour not found")
        }
        return nil, nil, failWith(KindUnexpected, "could not load the tour", err)
    }
    if !tour.Active {
        return nil, nil, fail(KindPrecondition, "tour is not active")
    }
    if now.Before(tour.RegistrationOpensAt) || now.After(tour.RegistrationClosesAt) {
        return nil, nil, fail(KindPrecondition, "tour registration window is closed")
    }
    if tour.StartsAt.Sub(now) < e.cfg.MinLeadTime {
        return nil, nil, fail(KindPrecondition, "tour starts too soon to finalize")
    }

    actor, err := e.members.MemberByExternalID(ctx, actorExternalID)
    if err != nil {
        if errors.Is(err, repository.ErrMemberNotFound) {
            return nil, nil, fail(KindPrecondition, "caller has no membership record")
        }
        return nil, nil, failWith(KindUnexpected, "could not resolve the acting member", err)
    }
    if !actor.ActiveAt(now) {
        return nil, nil, fail(KindPrecondition, "caller's membership is not active")
    }
    if actor.NationalID != res.OwnerNationalID {
        return nil, nil, fail(KindPrecondition, "reservation belongs to another member")
    }
    if tour.RequiredCapability != nil && !actor.HasCapability(*tour.RequiredCapability) {
        return nil, nil, fail(KindPrecondition, "membership lacks the capability required by this tour")
    }
    if tour.RequiredFeature != nil && !actor.HasFeature(*tour.RequiredFeature) {
        return nil, nil, fail(KindPrecondition, "membership lacks the feature required by this tour")
    }
    allowed, err := e.members.AgencyAllowedForTour(ctx, tour.ID, actor.AgencyCode)
    if err != nil {
        return nil, nil, failWith(KindUnexpected, "could not evaluate agency eligibility", err)
    }
    if !allowed {
        return nil, nil, fail(KindPrecondition, "membership agency is not allowed on this tour")
    }

    if len(res.Participants) == 0 {
        return nil, nil, fail(KindPrecondition, "reservation has no participants")
    }
    guests := 0
    for _, p := range res.Participants {
        if p.ClaimedType == model.TypeGuest {
            guests++
        }
    }
    if guests > tour.MaxGuestsPerReservation {
        return nil, nil, fail(KindPrecondition,
            fmt.Sprintf("at most %d guests are allowed per reservation", tour.MaxGuestsPerReservation))
    }
    return res, tour, nil
}

// revalidate runs the fraud check over every participant and returns the
// authoritative member record per participant index (nil for verified
// guests).  Any mismatch aborts the whole finalization.
func (e *Engine) revalidate(ctx context.Context, res *model.Reservation, now time.Time) ([]*model.Member, *Error) {
    members := make([]*model.Member, len(res.Participants))
    for i := range res.Participants {
        member, err := e.verifier.Verify(ctx, &res.Participants[i], now)
        if err != nil {
            var mismatch *fraud.MismatchError
            if errors.As(err, &mismatch) {
                e.log.WithFields(logrus.Fields{
                    "reservation_id": res.ID,
                    "national_id":    mismatch.NationalID,
                    "claimed_type":   mismatch.ClaimedType,
                }).Warn("participant failed membership revalidation")
                return nil, failWith(KindFraudMismatch, mismatch.Error(), err)
            }
            return nil, failWith(KindUnexpected, "could not revalidate a participant", err)
        }
        members[i] = member
    }
    return members, nil
}

// checkCapacity enforces both nested ceilings under the per-tour lock:
// the targeted capacity window's, when one is set, and always the
// tour-wide one.  The member's other live reservations are credited back
// before comparing against the ceilings, then rejected outright as
// conflicts.
func (e *Engine) checkCapacity(ctx context.Context, tx Tx, res *model.Reservation, tour *model.Tour) *Error {
    var window *model.CapacityWindow
    if res.CapacityWindowID != nil {
        for i := range tour.Windows {
            if tour.Windows[i].ID == *res.CapacityWindowID {
                window = &tour.Windows[i]
                break
            }
        }
        if window == nil {
            return fail(KindPrecondition, "reservation targets an unknown capacity window")
        }
        now := time.Now().UTC()
        if !window.Active || now.Before(window.OpensAt) || now.After(window.ClosesAt) {
            return fail(KindPrecondition, "capacity window is not open for registration")
        }
    }

    // Per-reservation locking cannot prevent two different reservations
    // on the same tour from passing this check together; the tour row
    // lock serializes the decision until commit.
    if err := tx.LockTour(ctx, tour.ID); err != nil {
        return failWith(KindUnexpected, "could not lock the tour for a capacity decision", err)
    }

    others, err := tx.OtherActiveReservations(ctx, tour.ID, res.OwnerNationalID, res.ID)
    if err != nil {
        return failWith(KindUnexpected, "could not load the member's other reservations", err)
    }

    incoming := len(res.Participants)

    if window != nil {
        used, err := tx.CountActiveParticipants(ctx, tour.ID, res.CapacityWindowID, res.ID)
        if err != nil {
            return failWith(KindUnexpected, "could not compute window utilization", err)
        }
        overlap := 0
        for _, o := range others {
            if o.CapacityWindowID != nil && *o.CapacityWindowID == window.ID {
                overlap += o.ParticipantCount
            }
        }
        if window.MaxParticipants-used+overlap < incoming {
            return fail(KindCapacityExceeded, "capacity window is full")
        }
    }

    used, err := tx.CountActiveParticipants(ctx, tour.ID, nil, res.ID)
    if err != nil {
        return failWith(KindUnexpected, "could not compute tour utilization", err)
    }
    overlap := 0
    for _, o := range others {
        overlap += o.ParticipantCount
    }
    if tour.MaxParticipants-used+overlap < incoming {
        return fail(KindCapacityExceeded, "tour is full")
    }

    if len(others) > 0 {
        return fail(KindConflict, "member already holds an active reservation for this tour")
    }
    return nil
}

// group is one participant-type group: indexes into res.Participants plus
// the resolved pricing.
type group struct {
    participantType string
    indexes         []int
    resolution      *pricing.Resolution
}

// price resolves pricing once per claimed-type group using the group's
// first participant as representative, sets every participant's required
// amount, and builds one immutable snapshot per group.  The total is
// recomputed strictly from the snapshots so it cannot drift from what the
// bill will carry.
func (e *Engine) price(res *model.Reservation, tour *model.Tour, members []*model.Member, now time.Time) ([]group, []model.PriceSnapshot, int64, *Error) {
    var order []string
    byType := make(map[string]*group)
    for i, p := range res.Participants {
        g, ok := byType[p.ClaimedType]
        if !ok {
            g = &group{participantType: p.ClaimedType}
            byType[p.ClaimedType] = g
            order = append(order, p.ClaimedType)
        }
        g.indexes = append(g.indexes, i)
    }

    groups := make([]group, 0, len(order))
    snaps := make([]model.PriceSnapshot, 0, len(order))
    for _, typ := range order {
        g := byType[typ]
        rep := g.indexes[0]
        resolution, err := e.resolver.Resolve(tour, members[rep], len(g.indexes), now)
        if err != nil {
            if errors.Is(err, pricing.ErrUnresolved) {
                return nil, nil, 0, fail(KindPricingUnresolved,
                    fmt.Sprintf("no applicable pricing rule for %s participants", typ))
            }
            return nil, nil, 0, failWith(KindUnexpected, "pricing resolution failed", err)
        }
        if resolution.ResolvedType != typ {
            // Ambiguous business intent: the group keeps the price
            // resolved for the representative even when the derived type
            // differs; warn and continue rather than reject.
            e.log.WithFields(logrus.Fields{
                "reservation_id": res.ID,
                "claimed_type":   typ,
                "resolved_type":  resolution.ResolvedType,
            }).Warn("participant type mismatch during group pricing")
        }
        for _, idx := range g.indexes {
            res.Participants[idx].RequiredAmount = resolution.FinalPrice
        }
        g.resolution = resolution
        groups = append(groups, *g)
        snaps = append(snaps, model.PriceSnapshot{
            ReservationID:   res.ID,
            ParticipantType: typ,
            BasePrice:       resolution.BasePrice,
            FinalPrice:      resolution.FinalPrice,
            DiscountPercent: resolution.DiscountPercent,
            PricingRuleID:   resolution.Rule.ID,
            CapabilityCode:  resolution.CapabilityCode,
            FeatureCode:     resolution.FeatureCode,
            CreatedAt:       now,
        })
    }

    var total int64
    for i, g := range groups {
        total += snaps[i].FinalPrice * int64(len(g.indexes))
    }
    return groups, snaps, total, nil
}

// issueBill requests bill creation from the billing collaborator, one
// line item per participant-type group, and verifies the returned total
// against the snapshot total.
func (e *Engine) issueBill(ctx context.Context, res *model.Reservation, tour *model.Tour, groups []group, snaps []model.PriceSnapshot, total int64, now time.Time) (*billing.Bill, *Error) {
    items := make([]billing.LineItem, 0, len(groups))
    for i, g := range groups {
        items = append(items, billing.LineItem{
            Title:           fmt.Sprintf("%s participants", g.participantType),
            Description:     tour.Title,
            UnitPrice:       snaps[i].FinalPrice,
            Quantity:        len(g.indexes),
            DiscountPercent: snaps[i].DiscountPercent,
        })
    }
    req := &billing.Request{
        Title: fmt.Sprintf("Tour reservation %s", res.TrackingCode),
        Items: items,
        DueAt: now.Add(e.cfg.HoldDuration),
        Metadata: map[string]string{
            "reservation_id":  fmt.Sprintf("%d", res.ID),
            "tracking_code":   res.TrackingCode,
            "idempotency_key": uuid.NewString(),
        },
    }
    bill, err := e.billing.Issue(ctx, req)
    if err != nil {
        return nil, failWith(KindBillingFailed, "billing service could not issue the bill", err)
    }
    if bill.TotalAmount != 0 && bill.TotalAmount != total {
        return nil, fail(KindBillingFailed,
            fmt.Sprintf("bill total %d does not reconcile with snapshot total %d", bill.TotalAmount, total))
    }
    return bill, nil
}

// publish emits the integration event after a successful commit.  Errors
// are logged and swallowed; downstream consumers must tolerate missing
// events.
func (e *Engine) publish(ctx context.Context, res *model.Reservation, tour *model.Tour, bill *billing.Bill, now time.Time) {
    ev := &queue.ReservationHeldEvent{
        EventID:        uuid.NewString(),
        ReservationID:  res.ID,
        TrackingCode:   res.TrackingCode,
        TourID:         tour.ID,
        TourTitle:      tour.Title,
        TourStartsAt:   tour.StartsAt.UTC().Format(time.RFC3339),
        PreviousStatus: model.StatusDraft,
        NewStatus:      res.Status,
        BillID:         bill.ID,
        BillNumber:     bill.Number,
        TotalAmount:    res.TotalAmount,
        ExpiresAt:      res.ExpiresAt.UTC().Format(time.RFC3339),
        HeldAt:         now.Format(time.RFC3339),
    }
    for _, p := range res.Participants {
        ev.Participants = append(ev.Participants, queue.EventParticipant{
            FullName:       p.FullName,
            NationalID:     p.NationalID,
            ClaimedType:    p.ClaimedType,
            RequiredAmount: p.RequiredAmount,
        })
    }
    for _, s := range res.Snapshots {
        ev.Snapshots = append(ev.Snapshots, queue.EventSnapshot{
            ParticipantType: s.ParticipantType,
            BasePrice:       s.BasePrice,
            FinalPrice:      s.FinalPrice,
            DiscountPercent: s.DiscountPercent,
            PricingRuleID:   s.PricingRuleID,
        })
    }
    if err := e.publisher.PublishReservationHeld(ctx, ev); err != nil {
        e.log.WithFields(logrus.Fields{
            "reservation_id": res.ID,
            "tracking_code":  res.TrackingCode,
        }).WithError(err).Warn("failed to publish reservation.held event")
    }
}
