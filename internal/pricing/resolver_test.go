package pricing

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/novinclub/benefits-server/internal/model"
)

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func activeMember(caps, feats []string) *model.Member {
    return &model.Member{
        NationalID:    "0012345678",
        Active:        true,
        MembershipEnd: now.Add(365 * 24 * time.Hour),
        Capabilities:  caps,
        Features:      feats,
    }
}

func tourWithRules(rules ...model.PricingRule) *model.Tour {
    return &model.Tour{ID: 1, Title: "Kish Island", PricingRules: rules}
}

func memberDefault(price int64) model.PricingRule {
    return model.PricingRule{ID: 1, ParticipantType: model.TypeMember, BasePrice: price, FinalPrice: price, Active: true}
}

func guestDefault(price int64) model.PricingRule {
    return model.PricingRule{ID: 2, ParticipantType: model.TypeGuest, BasePrice: price, FinalPrice: price, Active: true}
}

func TestResolveScopedCapabilityRuleWins(t *testing.T) {
    scoped := model.PricingRule{
        ID: 3, ParticipantType: model.TypeMember,
        BasePrice: 500_000, FinalPrice: 400_000, DiscountPercent: 20,
        CapabilityCode: strptr("GOLD"), Active: true,
    }
    tour := tourWithRules(memberDefault(500_000), scoped)

    res, err := NewResolver().Resolve(tour, activeMember([]string{"GOLD"}, nil), 2, now)
    require.NoError(t, err)
    assert.Equal(t, uint64(3), res.Rule.ID)
    assert.Equal(t, int64(400_000), res.FinalPrice)
    assert.Equal(t, model.TypeMember, res.ResolvedType)
    assert.False(t, res.DefaultFallback)
    require.NotNil(t, res.CapabilityCode)
    assert.Equal(t, "GOLD", *res.CapabilityCode)
}

func TestResolveCapabilityPreferredOverFeature(t *testing.T) {
    byFeature := model.PricingRule{
        ID: 4, ParticipantType: model.TypeMember,
        BasePrice: 500_000, FinalPrice: 300_000,
        FeatureCode: strptr("EARLY_BIRD"), Active: true,
    }
    byCapability := model.PricingRule{
        ID: 5, ParticipantType: model.TypeMember,
        BasePrice: 500_000, FinalPrice: 450_000,
        CapabilityCode: strptr("GOLD"), Active: true,
    }
    tour := tourWithRules(byFeature, byCapability, memberDefault(500_000))

    res, err := NewResolver().Resolve(tour, activeMember([]string{"GOLD"}, []string{"EARLY_BIRD"}), 1, now)
    require.NoError(t, err)
    assert.Equal(t, uint64(5), res.Rule.ID, "capability-scoped rule is more specific than feature-scoped")
}

func TestResolveScopedRuleOutsideValidityIgnored(t *testing.T) {
    expired := now.Add(-time.Hour)
    scoped := model.PricingRule{
        ID: 6, ParticipantType: model.TypeMember,
        BasePrice: 500_000, FinalPrice: 100_000,
        CapabilityCode: strptr("GOLD"), ValidTo: &expired, Active: true,
    }
    tour := tourWithRules(scoped, memberDefault(500_000))

    res, err := NewResolver().Resolve(tour, activeMember([]string{"GOLD"}, nil), 1, now)
    require.NoError(t, err)
    assert.Equal(t, uint64(1), res.Rule.ID)
    assert.True(t, res.DefaultFallback)
}

func TestResolveCountBounds(t *testing.T) {
    scoped := model.PricingRule{
        ID: 7, ParticipantType: model.TypeMember,
        BasePrice: 500_000, FinalPrice: 350_000,
        CapabilityCode: strptr("GOLD"),
        MinCount:       intptr(3), MaxCount: intptr(10), Active: true,
    }
    tour := tourWithRules(scoped, memberDefault(500_000))
    member := activeMember([]string{"GOLD"}, nil)

    res, err := NewResolver().Resolve(tour, member, 2, now)
    require.NoError(t, err)
    assert.True(t, res.DefaultFallback, "group below min_count must fall back")

    res, err = NewResolver().Resolve(tour, member, 3, now)
    require.NoError(t, err)
    assert.Equal(t, uint64(7), res.Rule.ID)
}

func TestResolveInactiveMemberGetsGuestRule(t *testing.T) {
    tour := tourWithRules(memberDefault(500_000), guestDefault(800_000))
    lapsed := &model.Member{Active: true, MembershipEnd: now.Add(-24 * time.Hour)}

    res, err := NewResolver().Resolve(tour, lapsed, 1, now)
    require.NoError(t, err)
    assert.Equal(t, model.TypeGuest, res.ResolvedType)
    assert.Equal(t, int64(800_000), res.FinalPrice)
}

func TestResolveNilMemberGetsGuestRule(t *testing.T) {
    tour := tourWithRules(memberDefault(500_000), guestDefault(800_000))

    res, err := NewResolver().Resolve(tour, nil, 1, now)
    require.NoError(t, err)
    assert.Equal(t, model.TypeGuest, res.ResolvedType)
}

func TestResolveUnresolved(t *testing.T) {
    tour := tourWithRules(memberDefault(500_000)) // no guest rule at all

    _, err := NewResolver().Resolve(tour, nil, 1, now)
    assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolveInactiveRuleIgnored(t *testing.T) {
    dead := memberDefault(500_000)
    dead.Active = false
    tour := tourWithRules(dead)

    _, err := NewResolver().Resolve(tour, activeMember(nil, nil), 1, now)
    assert.ErrorIs(t, err, ErrUnresolved)
}
