// This file defines repository methods for tours. Tours are reference
// data owned by the tour-management context; this service only reads
// them. Capacity windows and pricing rules are loaded together with the
// tour because the finalization engine always needs all three.
package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/novinclub/benefits-server/internal/model"
)

// TourRepo manages read access to tours, their capacity windows and
// pricing rules.
type TourRepo struct {
    db *sql.DB
}

// NewTourRepo constructs a TourRepo with the given DB handle.
func NewTourRepo(db *sql.DB) *TourRepo {
    return &TourRepo{db: db}
}

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *TourRepo) DB() *sql.DB {
    return r.db
}

const tourColumns = `id, title, is_active, starts_at, ends_at,
        registration_opens_at, registration_closes_at,
        max_participants, max_guests_per_reservation,
        min_age, max_age, required_capability, required_feature,
        created_at, updated_at`

// scanTour scans one tours row from the given row scanner.
func scanTour(row *sql.Row) (*model.Tour, error) {
    var t model.Tour
    var minAge, maxAge sql.NullInt64
    var reqCap, reqFeat sql.NullString
    err := row.Scan(
        &t.ID, &t.Title, &t.Active, &t.StartsAt, &t.EndsAt,
        &t.RegistrationOpensAt, &t.RegistrationClosesAt,
        &t.MaxParticipants, &t.MaxGuestsPerReservation,
        &minAge, &maxAge, &reqCap, &reqFeat,
        &t.CreatedAt, &t.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if minAge.Valid {
        v := int(minAge.Int64)
        t.MinAge = &v
    }
    if maxAge.Valid {
        v := int(maxAge.Int64)
        t.MaxAge = &v
    }
    if reqCap.Valid {
        v := reqCap.String
        t.RequiredCapability = &v
    }
    if reqFeat.Valid {
        v := reqFeat.String
        t.RequiredFeature = &v
    }
    return &t, nil
}

// GetByID retrieves a tour with its capacity windows and pricing rules.
// It returns ErrTourNotFound if there is no matching row.
func (r *TourRepo) GetByID(ctx context.Context, id uint64) (*model.Tour, error) {
    return r.get(ctx, r.db, id, false)
}

// GetByIDTx is like GetByID but participates in the caller's transaction.
// When forUpdate is true the tour row is locked for the duration of the
// transaction; the finalization engine relies on this to serialize
// capacity decisions for the same tour across concurrent finalizations
// and across service instances.
func (r *TourRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (*model.Tour, error) {
    return r.get(ctx, tx, id, forUpdate)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
    QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
    QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
    ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *TourRepo) get(ctx context.Context, q querier, id uint64, forUpdate bool) (*model.Tour, error) {
    query := `SELECT ` + tourColumns + ` FROM tours WHERE id = ?`
    if forUpdate {
        query += ` FOR UPDATE`
    }
    t, err := scanTour(q.QueryRowContext(ctx, query, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTourNotFound
        }
        return nil, err
    }
    if t.Windows, err = r.windows(ctx, q, id); err != nil {
        return nil, err
    }
    if t.PricingRules, err = r.pricingRules(ctx, q, id); err != nil {
        return nil, err
    }
    return t, nil
}

func (r *TourRepo) windows(ctx context.Context, q querier, tourID uint64) ([]model.CapacityWindow, error) {
    const query = `SELECT id, tour_id, max_participants, is_active, opens_at, closes_at
                   FROM tour_capacity_windows WHERE tour_id = ? ORDER BY id`
    rows, err := q.QueryContext(ctx, query, tourID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var windows []model.CapacityWindow
    for rows.Next() {
        var w model.CapacityWindow
        if err := rows.Scan(&w.ID, &w.TourID, &w.MaxParticipants, &w.Active, &w.OpensAt, &w.ClosesAt); err != nil {
            return nil, err
        }
        windows = append(windows, w)
    }
    return windows, rows.Err()
}

func (r *TourRepo) pricingRules(ctx context.Context, q querier, tourID uint64) ([]model.PricingRule, error) {
    const query = `SELECT id, tour_id, participant_type, base_price, final_price, discount_percent,
                          capability_code, feature_code, valid_from, valid_to, min_count, max_count, is_active
                   FROM tour_pricing_rules WHERE tour_id = ? ORDER BY id`
    rows, err := q.QueryContext(ctx, query, tourID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var rules []model.PricingRule
    for rows.Next() {
        var rule model.PricingRule
        var capCode, featCode sql.NullString
        var validFrom, validTo sql.NullTime
        var minCount, maxCount sql.NullInt64
        if err := rows.Scan(
            &rule.ID, &rule.TourID, &rule.ParticipantType,
            &rule.BasePrice, &rule.FinalPrice, &rule.DiscountPercent,
            &capCode, &featCode, &validFrom, &validTo, &minCount, &maxCount, &rule.Active,
        ); err != nil {
            return nil, err
        }
        if capCode.Valid {
            v := capCode.String
            rule.CapabilityCode = &v
        }
        if featCode.Valid {
            v := featCode.String
            rule.FeatureCode = &v
        }
        if validFrom.Valid {
            v := validFrom.Time
            rule.ValidFrom = &v
        }
        if validTo.Valid {
            v := validTo.Time
            rule.ValidTo = &v
        }
        if minCount.Valid {
            v := int(minCount.Int64)
            rule.MinCount = &v
        }
        if maxCount.Valid {
            v := int(maxCount.Int64)
            rule.MaxCount = &v
        }
        rules = append(rules, rule)
    }
    return rules, rows.Err()
}

// ListActive returns all active tours ordered by start time.  Used by the
// public browse endpoints; windows and pricing rules are not loaded.
func (r *TourRepo) ListActive(ctx context.Context) ([]model.Tour, error) {
    const query = `SELECT ` + tourColumns + ` FROM tours WHERE is_active = 1 ORDER BY starts_at`
    rows, err := r.db.QueryContext(ctx, query)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var tours []model.Tour
    for rows.Next() {
        var t model.Tour
        var minAge, maxAge sql.NullInt64
        var reqCap, reqFeat sql.NullString
        if err := rows.Scan(
            &t.ID, &t.Title, &t.Active, &t.StartsAt, &t.EndsAt,
            &t.RegistrationOpensAt, &t.RegistrationClosesAt,
            &t.MaxParticipants, &t.MaxGuestsPerReservation,
            &minAge, &maxAge, &reqCap, &reqFeat,
            &t.CreatedAt, &t.UpdatedAt,
        ); err != nil {
            return nil, err
        }
        if minAge.Valid {
            v := int(minAge.Int64)
            t.MinAge = &v
        }
        if maxAge.Valid {
            v := int(maxAge.Int64)
            t.MaxAge = &v
        }
        if reqCap.Valid {
            v := reqCap.String
            t.RequiredCapability = &v
        }
        if reqFeat.Valid {
            v := reqFeat.String
            t.RequiredFeature = &v
        }
        tours = append(tours, t)
    }
    return tours, rows.Err()
}
