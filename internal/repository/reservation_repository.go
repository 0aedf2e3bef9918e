package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/novinclub/benefits-server/internal/model"
)

// ReservationRepo provides persistence for reservations, their
// participants and price snapshots.  All timestamp fields are stored in
// UTC.  Methods with a Tx suffix participate in a caller-owned
// transaction; the caller must commit or roll back.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// liveStatuses is the status set that consumes capacity.  Reservations in
// these states count against tour and window ceilings as long as their
// hold has not expired.
const liveStatuses = `'CONFIRMED','HELD','PAYING'`

const reservationColumns = `id, tour_id, capacity_window_id, tracking_code, owner_national_id,
        status, total_amount, bill_id, bill_number, expires_at, created_at, updated_at`

func scanReservation(row *sql.Row) (*model.Reservation, error) {
    var res model.Reservation
    var windowID, billID sql.NullInt64
    var billNumber sql.NullString
    var expiresAt sql.NullTime
    err := row.Scan(
        &res.ID, &res.TourID, &windowID, &res.TrackingCode, &res.OwnerNationalID,
        &res.Status, &res.TotalAmount, &billID, &billNumber, &expiresAt,
        &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if windowID.Valid {
        v := uint64(windowID.Int64)
        res.CapacityWindowID = &v
    }
    if billID.Valid {
        v := uint64(billID.Int64)
        res.BillID = &v
    }
    if billNumber.Valid {
        v := billNumber.String
        res.BillNumber = &v
    }
    if expiresAt.Valid {
        v := expiresAt.Time
        res.ExpiresAt = &v
    }
    return &res, nil
}

// GetByIDTx loads a reservation with its participants and snapshots
// inside the caller's transaction.  When forUpdate is true the
// reservation row stays locked until commit, which guards the status
// transition against concurrent finalizations reaching the database from
// other instances.  Returns ErrReservationNotFound when no row exists.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (*model.Reservation, error) {
    query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    if forUpdate {
        query += ` FOR UPDATE`
    }
    res, err := scanReservation(tx.QueryRowContext(ctx, query, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrReservationNotFound
        }
        return nil, err
    }
    if res.Participants, err = r.participantsTx(ctx, tx, id); err != nil {
        return nil, err
    }
    if res.Snapshots, err = r.snapshotsTx(ctx, tx, id); err != nil {
        return nil, err
    }
    return res, nil
}

func (r *ReservationRepo) participantsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.Participant, error) {
    const q = `SELECT id, reservation_id, full_name, national_id, phone, claimed_type, required_amount, created_at
               FROM reservation_participants WHERE reservation_id = ? ORDER BY id`
    rows, err := tx.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var participants []model.Participant
    for rows.Next() {
        var p model.Participant
        if err := rows.Scan(&p.ID, &p.ReservationID, &p.FullName, &p.NationalID, &p.Phone, &p.ClaimedType, &p.RequiredAmount, &p.CreatedAt); err != nil {
            return nil, err
        }
        participants = append(participants, p)
    }
    return participants, rows.Err()
}

func (r *ReservationRepo) snapshotsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.PriceSnapshot, error) {
    const q = `SELECT id, reservation_id, participant_type, base_price, final_price, discount_percent,
                      pricing_rule_id, capability_code, feature_code, created_at
               FROM price_snapshots WHERE reservation_id = ? ORDER BY id`
    rows, err := tx.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var snaps []model.PriceSnapshot
    for rows.Next() {
        var s model.PriceSnapshot
        var capCode, featCode sql.NullString
        if err := rows.Scan(&s.ID, &s.ReservationID, &s.ParticipantType, &s.BasePrice, &s.FinalPrice, &s.DiscountPercent,
            &s.PricingRuleID, &capCode, &featCode, &s.CreatedAt); err != nil {
            return nil, err
        }
        if capCode.Valid {
            v := capCode.String
            s.CapabilityCode = &v
        }
        if featCode.Valid {
            v := featCode.String
            s.FeatureCode = &v
        }
        snaps = append(snaps, s)
    }
    return snaps, rows.Err()
}

// CountActiveParticipantsTx returns the current utilization of a tour or,
// when windowID is non-nil, of one capacity window.  Only participants of
// reservations in live states whose hold has not yet expired are counted;
// expired-but-not-yet-reaped holds must not consume capacity.  The
// reservation being finalized is excluded so it never competes with its
// own draft rows.
func (r *ReservationRepo) CountActiveParticipantsTx(ctx context.Context, tx *sql.Tx, tourID uint64, windowID *uint64, excludeReservationID uint64) (int, error) {
    query := `SELECT COUNT(p.id)
              FROM reservation_participants p
              JOIN reservations res ON res.id = p.reservation_id
              WHERE res.tour_id = ?
                AND res.id <> ?
                AND res.status IN (` + liveStatuses + `)
                AND (res.expires_at IS NULL OR res.expires_at > UTC_TIMESTAMP())`
    args := []interface{}{tourID, excludeReservationID}
    if windowID != nil {
        query += ` AND res.capacity_window_id = ?`
        args = append(args, *windowID)
    }
    var count int
    if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
        return 0, err
    }
    return count, nil
}

// ActiveReservationSummary is a compact view of another live reservation
// held by the same member on the same tour.  It backs both the
// conflicting-reservation gate and the capacity overlap subtraction.
type ActiveReservationSummary struct {
    ID               uint64
    CapacityWindowID *uint64
    Status           string
    ParticipantCount int
}

// OtherActiveReservationsTx lists live, non-expired reservations owned by
// the given national identifier on the tour, excluding the reservation
// currently being finalized.
func (r *ReservationRepo) OtherActiveReservationsTx(ctx context.Context, tx *sql.Tx, tourID uint64, nationalID string, excludeReservationID uint64) ([]ActiveReservationSummary, error) {
    query := `SELECT res.id, res.capacity_window_id, res.status, COUNT(p.id)
              FROM reservations res
              LEFT JOIN reservation_participants p ON p.reservation_id = res.id
              WHERE res.tour_id = ?
                AND res.owner_national_id = ?
                AND res.id <> ?
                AND res.status IN (` + liveStatuses + `)
                AND (res.expires_at IS NULL OR res.expires_at > UTC_TIMESTAMP())
              GROUP BY res.id, res.capacity_window_id, res.status`
    rows, err := tx.QueryContext(ctx, query, tourID, nationalID, excludeReservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []ActiveReservationSummary
    for rows.Next() {
        var s ActiveReservationSummary
        var windowID sql.NullInt64
        if err := rows.Scan(&s.ID, &windowID, &s.Status, &s.ParticipantCount); err != nil {
            return nil, err
        }
        if windowID.Valid {
            v := uint64(windowID.Int64)
            s.CapacityWindowID = &v
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// UpdateParticipantAmountsTx persists the required amounts computed by
// the pricing step.  One UPDATE per participant keeps the statement
// simple; participant counts per reservation are small.
func (r *ReservationRepo) UpdateParticipantAmountsTx(ctx context.Context, tx *sql.Tx, participants []model.Participant) error {
    const q = `UPDATE reservation_participants SET required_amount = ? WHERE id = ?`
    for _, p := range participants {
        if _, err := tx.ExecContext(ctx, q, p.RequiredAmount, p.ID); err != nil {
            return err
        }
    }
    return nil
}

// InsertSnapshotsTx inserts the per-group price snapshots in a single
// statement and populates the generated IDs.  Passing an empty slice has
// no effect and returns nil.
func (r *ReservationRepo) InsertSnapshotsTx(ctx context.Context, tx *sql.Tx, snaps []model.PriceSnapshot) error {
    if len(snaps) == 0 {
        return nil
    }
    query := `INSERT INTO price_snapshots
              (reservation_id, participant_type, base_price, final_price, discount_percent, pricing_rule_id, capability_code, feature_code, created_at)
              VALUES `
    args := make([]interface{}, 0, len(snaps)*9)
    for i, s := range snaps {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
        args = append(args,
            s.ReservationID, s.ParticipantType, s.BasePrice, s.FinalPrice, s.DiscountPercent,
            s.PricingRuleID, s.CapabilityCode, s.FeatureCode, s.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
        )
    }
    result, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return err
    }
    // MySQL returns the first generated id of a multi-row insert.
    first, err := result.LastInsertId()
    if err != nil {
        return err
    }
    for i := range snaps {
        snaps[i].ID = uint64(first) + uint64(i)
    }
    return nil
}

// MarkHeldTx transitions the reservation to HELD with its bill reference,
// total and expiry.  The WHERE clause re-checks the DRAFT status so a
// concurrent transition observed between load and update cannot be
// overwritten; zero affected rows reports ErrReservationNotFound to the
// caller, which treats it as a failed precondition.
func (r *ReservationRepo) MarkHeldTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, billID uint64, billNumber string, total int64, expiresAt time.Time) error {
    const q = `UPDATE reservations
               SET status = ?, total_amount = ?, bill_id = ?, bill_number = ?, expires_at = ?
               WHERE id = ? AND status = ?`
    result, err := tx.ExecContext(ctx, q,
        model.StatusHeld, total, billID, billNumber,
        expiresAt.UTC().Format("2006-01-02 15:04:05"),
        res.ID, model.StatusDraft,
    )
    if err != nil {
        return err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return ErrReservationNotFound
    }
    res.Status = model.StatusHeld
    res.TotalAmount = total
    res.BillID = &billID
    res.BillNumber = &billNumber
    exp := expiresAt.UTC()
    res.ExpiresAt = &exp
    return nil
}

// OwnedReservation is the read model returned to members listing their
// own reservations.
type OwnedReservation struct {
    ID               uint64     `json:"id"`
    TourID           uint64     `json:"tour_id"`
    TourTitle        string     `json:"tour_title"`
    TrackingCode     string     `json:"tracking_code"`
    Status           string     `json:"status"`
    TotalAmount      int64      `json:"total_amount"`
    BillNumber       *string    `json:"bill_number,omitempty"`
    ExpiresAt        *time.Time `json:"expires_at,omitempty"`
    ParticipantCount int        `json:"participant_count"`
    CreatedAt        time.Time  `json:"created_at"`
}

// ListByOwner returns reservations owned by the given national identifier,
// newest first, with tour titles and participant counts.
func (r *ReservationRepo) ListByOwner(ctx context.Context, nationalID string) ([]OwnedReservation, error) {
    const q = `SELECT res.id, res.tour_id, t.title, res.tracking_code, res.status, res.total_amount,
                      res.bill_number, res.expires_at, COUNT(p.id), res.created_at
               FROM reservations res
               JOIN tours t ON t.id = res.tour_id
               LEFT JOIN reservation_participants p ON p.reservation_id = res.id
               WHERE res.owner_national_id = ?
               GROUP BY res.id, res.tour_id, t.title, res.tracking_code, res.status, res.total_amount,
                        res.bill_number, res.expires_at, res.created_at
               ORDER BY res.created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, nationalID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    list := make([]OwnedReservation, 0)
    for rows.Next() {
        var o OwnedReservation
        var billNumber sql.NullString
        var expiresAt sql.NullTime
        if err := rows.Scan(&o.ID, &o.TourID, &o.TourTitle, &o.TrackingCode, &o.Status, &o.TotalAmount,
            &billNumber, &expiresAt, &o.ParticipantCount, &o.CreatedAt); err != nil {
            return nil, err
        }
        if billNumber.Valid {
            v := billNumber.String
            o.BillNumber = &v
        }
        if expiresAt.Valid {
            v := expiresAt.Time
            o.ExpiresAt = &v
        }
        list = append(list, o)
    }
    return list, rows.Err()
}
