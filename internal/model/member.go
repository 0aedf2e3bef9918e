package model

import "time"

// Member is the authoritative membership record for a person, keyed by
// national identifier.  Membership expiry is evaluated against the current
// time: a member is active when the active flag is set and the membership
// has not lapsed.
//
// Fields:
//  ID             – primary key identifier.
//  ExternalUserID – identity-provider subject for the member's account.
//  NationalID     – unique national identifier.
//  FullName       – member display name.
//  AgencyCode     – issuing agency of the membership, if any.
//  Active         – administrative active flag.
//  MembershipEnd  – membership validity end date.
//  Capabilities   – capability codes granted to the member.
//  Features       – feature codes granted to the member.
type Member struct {
    ID             uint64    // members.id
    ExternalUserID string    // members.external_user_id
    NationalID     string    // members.national_id
    FullName       string    // members.full_name
    AgencyCode     *string   // members.agency_code (nullable)
    Active         bool      // members.is_active
    MembershipEnd  time.Time // members.membership_end
    Capabilities   []string  // member_capabilities.code rows
    Features       []string  // member_features.code rows
    CreatedAt      time.Time // members.created_at
}

// ActiveAt reports whether the membership is in force at the given instant.
func (m *Member) ActiveAt(t time.Time) bool {
    return m.Active && t.Before(m.MembershipEnd)
}

// HasCapability reports whether the member holds the given capability code.
func (m *Member) HasCapability(code string) bool {
    for _, c := range m.Capabilities {
        if c == code {
            return true
        }
    }
    return false
}

// HasFeature reports whether the member holds the given feature code.
func (m *Member) HasFeature(code string) bool {
    for _, f := range m.Features {
        if f == code {
            return true
        }
    }
    return false
}
