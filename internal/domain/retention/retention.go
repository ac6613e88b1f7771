// Package retention maps subscription tiers to score retention windows.
package retention

import (
	"strings"
	"time"
)

// Default retention configuration constants.
const (
	defaultTierName      = "free"
	defaultRetentionDays = 30
	hoursPerDay          = 24
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithTiersFromConfig sets the tier table from a configuration map.
// Non-positive day counts are ignored.
func WithTiersFromConfig(tiers map[string]int) Option {
	return func(p *Policy) {
		p.tiers = make(map[string]int, len(tiers))
		for tier, days := range tiers {
			if days > 0 {
				p.tiers[strings.ToLower(tier)] = days
			}
		}
	}
}

// WithDefaultTier sets the tier assumed for games with no assignment.
func WithDefaultTier(tier string) Option {
	return func(p *Policy) {
		if strings.TrimSpace(tier) != "" {
			p.defaultTier = strings.ToLower(tier)
		}
	}
}

// WithGameTiers sets the external gameID -> tier assignment.
func WithGameTiers(assignments map[string]string) Option {
	return func(p *Policy) {
		p.games = make(map[string]string, len(assignments))
		for game, tier := range assignments {
			p.games[game] = strings.ToLower(tier)
		}
	}
}

// Policy resolves the retention window for a game. The tier table and the
// game assignments are configuration inputs; the engine never owns them.
type Policy struct {
	tiers       map[string]int
	games       map[string]string
	defaultTier string
}

// New constructs a Policy with defaults, then applies options.
func New(opts ...Option) *Policy {
	p := &Policy{
		tiers:       map[string]int{defaultTierName: defaultRetentionDays},
		games:       map[string]string{},
		defaultTier: defaultTierName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tier returns the subscription tier assigned to a game, falling back to
// the default tier for unknown games.
func (p *Policy) Tier(gameID string) string {
	if tier, ok := p.games[gameID]; ok {
		return tier
	}
	return p.defaultTier
}

// Days returns the retention window in days for a tier. Unknown tiers get
// the default tier's window so a misconfigured tier never widens retention.
func (p *Policy) Days(tier string) int {
	if days, ok := p.tiers[strings.ToLower(tier)]; ok {
		return days
	}
	if days, ok := p.tiers[p.defaultTier]; ok {
		return days
	}
	return defaultRetentionDays
}

// Cutoff returns the oldest timestamp a game's data may carry at `now`.
// Anything older is outside the game's entitlement.
func (p *Policy) Cutoff(gameID string, now time.Time) time.Time {
	days := p.Days(p.Tier(gameID))
	return now.Add(-time.Duration(days) * hoursPerDay * time.Hour)
}

// Clamp raises start so it never reaches past the game's retention floor.
// A nil start means "from the floor".
func (p *Policy) Clamp(gameID string, start *time.Time, now time.Time) time.Time {
	floor := p.Cutoff(gameID, now)
	if start == nil || start.Before(floor) {
		return floor
	}
	return *start
}
