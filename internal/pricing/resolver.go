// Package pricing resolves the price applicable to a participant-type
// group of a reservation.  Resolution is a pure policy over the tour's
// pricing rules and the representative participant's authoritative
// membership attributes; it performs no I/O.
package pricing

import (
    "errors"
    "time"

    "github.com/novinclub/benefits-server/internal/model"
)

// ErrUnresolved indicates that no applicable pricing rule exists for the
// participant group.  It is fatal for the finalization: a reservation is
// priced completely or not at all.
var ErrUnresolved = errors.New("no applicable pricing rule")

// Resolution is the outcome of resolving one participant-type group.
// FinalPrice is the per-participant amount actually charged.
type Resolution struct {
    Rule            model.PricingRule // rule the price was taken from
    ResolvedType    string            // MEMBER or GUEST derived from authoritative data
    BasePrice       int64             // rule price before discount
    FinalPrice      int64             // per-participant price charged
    DiscountPercent float64           // discount carried by the rule
    CapabilityCode  *string           // capability that matched a scoped rule, if any
    FeatureCode     *string           // feature that matched a scoped rule, if any
    DefaultFallback bool              // true when no scoped rule matched and a default was used
}

// Resolver selects pricing rules for participant groups.  It is stateless;
// a single instance is shared by all finalizations.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve picks the price for a group of participantCount same-type
// participants on the given tour.  member carries the representative
// participant's authoritative membership record and may be nil when the
// person has none.  Policy, in priority order:
//
//  1. active member + a scoped rule matching one of the member's
//     capabilities or features, valid now and for this count: the most
//     specific such rule wins (capability match over feature match, then
//     lowest final price);
//  2. active member: the tour's default MEMBER rule;
//  3. otherwise: the tour's GUEST rule.
func (r *Resolver) Resolve(tour *model.Tour, member *model.Member, participantCount int, now time.Time) (*Resolution, error) {
    isMember := member != nil && member.ActiveAt(now)

    if isMember {
        if res := r.bestScoped(tour, member, participantCount, now); res != nil {
            res.ResolvedType = model.TypeMember
            return res, nil
        }
        if rule := r.defaultRule(tour, model.TypeMember, participantCount, now); rule != nil {
            return &Resolution{
                Rule:            *rule,
                ResolvedType:    model.TypeMember,
                BasePrice:       rule.BasePrice,
                FinalPrice:      rule.FinalPrice,
                DiscountPercent: rule.DiscountPercent,
                DefaultFallback: true,
            }, nil
        }
        return nil, ErrUnresolved
    }

    if rule := r.defaultRule(tour, model.TypeGuest, participantCount, now); rule != nil {
        return &Resolution{
            Rule:            *rule,
            ResolvedType:    model.TypeGuest,
            BasePrice:       rule.BasePrice,
            FinalPrice:      rule.FinalPrice,
            DiscountPercent: rule.DiscountPercent,
            DefaultFallback: true,
        }, nil
    }
    return nil, ErrUnresolved
}

// bestScoped returns the most specific scoped MEMBER rule matching the
// member's capability or feature codes, or nil when none applies.
func (r *Resolver) bestScoped(tour *model.Tour, member *model.Member, count int, now time.Time) *Resolution {
    var best *Resolution
    better := func(cand *Resolution) bool {
        if best == nil {
            return true
        }
        // Capability-scoped rules are considered more specific than
        // feature-scoped ones; among equals the lowest price wins.
        bestCap := best.CapabilityCode != nil
        candCap := cand.CapabilityCode != nil
        if candCap != bestCap {
            return candCap
        }
        return cand.FinalPrice < best.FinalPrice
    }
    for i := range tour.PricingRules {
        rule := tour.PricingRules[i]
        if rule.ParticipantType != model.TypeMember || !applicable(&rule, count, now) {
            continue
        }
        var cand *Resolution
        switch {
        case rule.CapabilityCode != nil && member.HasCapability(*rule.CapabilityCode):
            cand = &Resolution{Rule: rule, CapabilityCode: rule.CapabilityCode}
        case rule.FeatureCode != nil && member.HasFeature(*rule.FeatureCode):
            cand = &Resolution{Rule: rule, FeatureCode: rule.FeatureCode}
        default:
            continue
        }
        cand.BasePrice = rule.BasePrice
        cand.FinalPrice = rule.FinalPrice
        cand.DiscountPercent = rule.DiscountPercent
        if better(cand) {
            best = cand
        }
    }
    return best
}

// defaultRule returns the unscoped rule for the given participant type,
// or nil when none applies.
func (r *Resolver) defaultRule(tour *model.Tour, participantType string, count int, now time.Time) *model.PricingRule {
    for i := range tour.PricingRules {
        rule := tour.PricingRules[i]
        if rule.ParticipantType != participantType {
            continue
        }
        if rule.CapabilityCode != nil || rule.FeatureCode != nil {
            continue
        }
        if applicable(&rule, count, now) {
            return &rule
        }
    }
    return nil
}

// applicable checks the rule's active flag, validity window and
// participant-count bounds.
func applicable(rule *model.PricingRule, count int, now time.Time) bool {
    if !rule.Active {
        return false
    }
    if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
        return false
    }
    if rule.ValidTo != nil && now.After(*rule.ValidTo) {
        return false
    }
    if rule.MinCount != nil && count < *rule.MinCount {
        return false
    }
    if rule.MaxCount != nil && count > *rule.MaxCount {
        return false
    }
    return true
}
