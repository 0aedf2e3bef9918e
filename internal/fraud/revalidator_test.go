package fraud

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/novinclub/benefits-server/internal/model"
)

// fakeDirectory serves membership records from a map keyed by national id.
type fakeDirectory struct {
    members map[string]*model.Member
    err     error
}

func (d *fakeDirectory) MemberByNationalID(_ context.Context, nid string) (*model.Member, error) {
    if d.err != nil {
        return nil, d.err
    }
    return d.members[nid], nil
}

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func TestVerify(t *testing.T) {
    active := &model.Member{NationalID: "111", Active: true, MembershipEnd: now.Add(time.Hour)}
    lapsed := &model.Member{NationalID: "222", Active: true, MembershipEnd: now.Add(-time.Hour)}
    dir := &fakeDirectory{members: map[string]*model.Member{"111": active, "222": lapsed}}
    rv := NewRevalidator(dir)

    cases := []struct {
        name       string
        nationalID string
        claimed    string
        mismatch   bool
    }{
        {"member claim with active membership", "111", model.TypeMember, false},
        {"member claim with lapsed membership", "222", model.TypeMember, true},
        {"member claim with no record", "999", model.TypeMember, true},
        {"guest claim with no record", "999", model.TypeGuest, false},
        {"guest claim with lapsed membership", "222", model.TypeGuest, false},
        {"guest claim with active membership", "111", model.TypeGuest, true},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            p := &model.Participant{NationalID: tc.nationalID, ClaimedType: tc.claimed}
            member, err := rv.Verify(context.Background(), p, now)
            if tc.mismatch {
                var mm *MismatchError
                require.ErrorAs(t, err, &mm)
                assert.Equal(t, tc.nationalID, mm.NationalID)
                return
            }
            require.NoError(t, err)
            if tc.claimed == model.TypeMember {
                require.NotNil(t, member)
                assert.Equal(t, tc.nationalID, member.NationalID)
            } else {
                assert.Nil(t, member)
            }
        })
    }
}

func TestVerifyDirectoryFailure(t *testing.T) {
    dir := &fakeDirectory{err: errors.New("connection refused")}
    rv := NewRevalidator(dir)

    p := &model.Participant{NationalID: "111", ClaimedType: model.TypeMember}
    _, err := rv.Verify(context.Background(), p, now)
    require.Error(t, err)
    var mm *MismatchError
    assert.False(t, errors.As(err, &mm), "infrastructure errors must not be reported as mismatches")
}

func TestVerifyUnknownClaimedType(t *testing.T) {
    rv := NewRevalidator(&fakeDirectory{})
    p := &model.Participant{NationalID: "111", ClaimedType: "VIP"}
    _, err := rv.Verify(context.Background(), p, now)
    var mm *MismatchError
    require.ErrorAs(t, err, &mm)
}
