// This file defines repository methods for authoritative membership data.
// The members table is the source of truth for fraud revalidation: the
// engine never trusts the participant type recorded at draft time.
package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/novinclub/benefits-server/internal/model"
)

// MemberRepo manages read access to members and their capability and
// feature grants.
type MemberRepo struct {
    db *sql.DB
}

// NewMemberRepo constructs a MemberRepo with the given DB handle.
func NewMemberRepo(db *sql.DB) *MemberRepo {
    return &MemberRepo{db: db}
}

const memberColumns = `id, external_user_id, national_id, full_name, agency_code,
        is_active, membership_end, created_at`

func scanMember(row *sql.Row) (*model.Member, error) {
    var m model.Member
    var agency sql.NullString
    err := row.Scan(
        &m.ID, &m.ExternalUserID, &m.NationalID, &m.FullName, &agency,
        &m.Active, &m.MembershipEnd, &m.CreatedAt,
    )
    if err != nil {
        return nil, err
    }
    if agency.Valid {
        v := agency.String
        m.AgencyCode = &v
    }
    return &m, nil
}

// MemberByNationalID returns the membership record for the given national
// identifier, or (nil, nil) when none exists.  Capability and feature
// codes are loaded alongside the base record.
func (r *MemberRepo) MemberByNationalID(ctx context.Context, nationalID string) (*model.Member, error) {
    const q = `SELECT ` + memberColumns + ` FROM members WHERE national_id = ?`
    m, err := scanMember(r.db.QueryRowContext(ctx, q, nationalID))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, nil
        }
        return nil, err
    }
    if err := r.loadGrants(ctx, m); err != nil {
        return nil, err
    }
    return m, nil
}

// MemberByExternalID resolves the acting member for the current call from
// the identity-provider subject.  It returns ErrMemberNotFound when no
// membership record is linked to the external user id.
func (r *MemberRepo) MemberByExternalID(ctx context.Context, externalUserID string) (*model.Member, error) {
    const q = `SELECT ` + memberColumns + ` FROM members WHERE external_user_id = ?`
    m, err := scanMember(r.db.QueryRowContext(ctx, q, externalUserID))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrMemberNotFound
        }
        return nil, err
    }
    if err := r.loadGrants(ctx, m); err != nil {
        return nil, err
    }
    return m, nil
}

// loadGrants populates the member's capability and feature code lists.
func (r *MemberRepo) loadGrants(ctx context.Context, m *model.Member) error {
    const capQ = `SELECT code FROM member_capabilities WHERE member_id = ? ORDER BY code`
    rows, err := r.db.QueryContext(ctx, capQ, m.ID)
    if err != nil {
        return err
    }
    for rows.Next() {
        var code string
        if err := rows.Scan(&code); err != nil {
            rows.Close()
            return err
        }
        m.Capabilities = append(m.Capabilities, code)
    }
    if err := rows.Close(); err != nil {
        return err
    }

    const featQ = `SELECT code FROM member_features WHERE member_id = ? ORDER BY code`
    rows, err = r.db.QueryContext(ctx, featQ, m.ID)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var code string
        if err := rows.Scan(&code); err != nil {
            return err
        }
        m.Features = append(m.Features, code)
    }
    return rows.Err()
}

// AgencyAllowedForTour reports whether the member's issuing agency may
// register for the tour.  Tours with no rows in tour_allowed_agencies are
// open to every agency.
func (r *MemberRepo) AgencyAllowedForTour(ctx context.Context, tourID uint64, agencyCode *string) (bool, error) {
    const countQ = `SELECT COUNT(*) FROM tour_allowed_agencies WHERE tour_id = ?`
    var total int
    if err := r.db.QueryRowContext(ctx, countQ, tourID).Scan(&total); err != nil {
        return false, err
    }
    if total == 0 {
        return true, nil
    }
    if agencyCode == nil {
        return false, nil
    }
    const matchQ = `SELECT COUNT(*) FROM tour_allowed_agencies WHERE tour_id = ? AND agency_code = ?`
    var matched int
    if err := r.db.QueryRowContext(ctx, matchQ, tourID, *agencyCode).Scan(&matched); err != nil {
        return false, err
    }
    return matched > 0, nil
}
