// Package fraud re-derives each participant's true membership status from
// authoritative data at finalization time, independent of whatever was
// claimed when the reservation was drafted.  A claimed MEMBER must resolve
// to an active membership; a claimed GUEST must resolve to none.  The
// guest direction closes the loophole where a real member poses as a guest
// to dodge member-only restrictions or guest pricing differences.
package fraud

import (
    "context"
    "fmt"
    "time"

    "github.com/novinclub/benefits-server/internal/model"
)

// Directory answers authoritative membership lookups by national
// identifier.  Implementations return (nil, nil) when no membership record
// exists for the identifier.
type Directory interface {
    MemberByNationalID(ctx context.Context, nationalID string) (*model.Member, error)
}

// MismatchError reports that a participant's claimed type contradicts
// authoritative membership data.  Any mismatch aborts the whole
// finalization; partial acceptance of participants is not permitted.
type MismatchError struct {
    NationalID  string
    ClaimedType string
    Reason      string
}

func (e *MismatchError) Error() string {
    return fmt.Sprintf("participant %s claimed %s: %s", e.NationalID, e.ClaimedType, e.Reason)
}

// Revalidator verifies participants against the membership directory.
type Revalidator struct {
    dir Directory
}

// NewRevalidator returns a Revalidator backed by the given directory.
func NewRevalidator(dir Directory) *Revalidator {
    return &Revalidator{dir: dir}
}

// Verify checks one participant at the given instant.  On success it
// returns the participant's authoritative member record (nil for a
// verified guest).  On a claim mismatch it returns a *MismatchError; any
// other error is an infrastructure failure.
func (r *Revalidator) Verify(ctx context.Context, p *model.Participant, at time.Time) (*model.Member, error) {
    member, err := r.dir.MemberByNationalID(ctx, p.NationalID)
    if err != nil {
        return nil, err
    }
    active := member != nil && member.ActiveAt(at)

    switch p.ClaimedType {
    case model.TypeMember:
        if !active {
            return nil, &MismatchError{
                NationalID:  p.NationalID,
                ClaimedType: p.ClaimedType,
                Reason:      "no active membership found",
            }
        }
        return member, nil
    case model.TypeGuest:
        if active {
            return nil, &MismatchError{
                NationalID:  p.NationalID,
                ClaimedType: p.ClaimedType,
                Reason:      "an active membership exists",
            }
        }
        return nil, nil
    default:
        return nil, &MismatchError{
            NationalID:  p.NationalID,
            ClaimedType: p.ClaimedType,
            Reason:      "unknown participant type",
        }
    }
}
