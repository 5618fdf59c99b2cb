// Package tier holds the static, ordered table of competitive tiers and the
// rules each one applies at weekly rollover.
package tier

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is a competitive bracket. The zero value is not a valid tier.
type Tier int

const (
	Bronze Tier = iota + 1
	Silver
	Gold
	Platinum
	Diamond
)

var names = map[Tier]string{
	Bronze:   "bronze",
	Silver:   "silver",
	Gold:     "gold",
	Platinum: "platinum",
	Diamond:  "diamond",
}

var ErrInvalidConfig = errors.New("invalid tier configuration")

var ErrUnknownTier = errors.New("unknown tier")

func (t Tier) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func (t Tier) Valid() bool {
	_, ok := names[t]
	return ok
}

// Parse maps a stored or client-supplied tier name back to a Tier.
func Parse(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, n := range names {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Definition is the rule set of one tier.
type Definition struct {
	Tier             Tier
	MinLifetimeScore int64
	MaxGroupSize     int
	PromotionRate    float64
	RelegationRate   float64
	WinnerBonus      int64
	PromotionBonus   int64
}

// Registry is an immutable lookup over a validated, ordered tier table.
type Registry struct {
	defs  []Definition
	index map[Tier]int
}

// DefaultDefinitions is the production tier table, lowest tier first.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Tier: Bronze, MinLifetimeScore: 0, MaxGroupSize: 30, PromotionRate: 0.20, RelegationRate: 0, WinnerBonus: 50, PromotionBonus: 100},
		{Tier: Silver, MinLifetimeScore: 1000, MaxGroupSize: 30, PromotionRate: 0.15, RelegationRate: 0.15, WinnerBonus: 75, PromotionBonus: 150},
		{Tier: Gold, MinLifetimeScore: 5000, MaxGroupSize: 30, PromotionRate: 0.10, RelegationRate: 0.20, WinnerBonus: 100, PromotionBonus: 200},
		{Tier: Platinum, MinLifetimeScore: 15000, MaxGroupSize: 30, PromotionRate: 0.10, RelegationRate: 0.20, WinnerBonus: 150, PromotionBonus: 300},
		{Tier: Diamond, MinLifetimeScore: 40000, MaxGroupSize: 30, PromotionRate: 0, RelegationRate: 0.20, WinnerBonus: 250, PromotionBonus: 0},
	}
}

// Default returns the registry over DefaultDefinitions. It fails only if the
// built-in table itself is inconsistent.
func Default() (*Registry, error) {
	return NewRegistry(DefaultDefinitions())
}

// NewRegistry validates defs and builds a registry. Any violation is a
// configuration error and must stop the engine from starting.
func NewRegistry(defs []Definition) (*Registry, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}

	r := &Registry{
		defs:  make([]Definition, len(defs)),
		index: make(map[Tier]int, len(defs)),
	}
	copy(r.defs, defs)
	for i, d := range r.defs {
		r.index[d.Tier] = i
	}
	return r, nil
}

// Validate checks ordering, rate bounds and the top/bottom invariants.
func Validate(defs []Definition) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: no tiers defined", ErrInvalidConfig)
	}

	for i, d := range defs {
		if !d.Tier.Valid() {
			return fmt.Errorf("%w: entry %d has unknown tier %d", ErrInvalidConfig, i, int(d.Tier))
		}
		if i > 0 {
			prev := defs[i-1]
			if d.Tier <= prev.Tier {
				return fmt.Errorf("%w: %s listed after %s", ErrInvalidConfig, d.Tier, prev.Tier)
			}
			if d.MinLifetimeScore <= prev.MinLifetimeScore {
				return fmt.Errorf("%w: %s minimum lifetime score %d must exceed %s minimum %d",
					ErrInvalidConfig, d.Tier, d.MinLifetimeScore, prev.Tier, prev.MinLifetimeScore)
			}
		}
		if d.MaxGroupSize <= 0 {
			return fmt.Errorf("%w: %s max group size must be positive", ErrInvalidConfig, d.Tier)
		}
		if d.PromotionRate < 0 || d.PromotionRate >= 1 {
			return fmt.Errorf("%w: %s promotion rate %v outside [0,1)", ErrInvalidConfig, d.Tier, d.PromotionRate)
		}
		if d.RelegationRate < 0 || d.RelegationRate >= 1 {
			return fmt.Errorf("%w: %s relegation rate %v outside [0,1)", ErrInvalidConfig, d.Tier, d.RelegationRate)
		}
		if d.PromotionRate+d.RelegationRate > 1 {
			return fmt.Errorf("%w: %s promotion rate + relegation rate exceeds 1", ErrInvalidConfig, d.Tier)
		}
		if d.WinnerBonus < 0 || d.PromotionBonus < 0 {
			return fmt.Errorf("%w: %s bonuses must not be negative", ErrInvalidConfig, d.Tier)
		}
	}

	lowest, highest := defs[0], defs[len(defs)-1]
	if lowest.MinLifetimeScore != 0 {
		return fmt.Errorf("%w: lowest tier %s must start at lifetime score 0", ErrInvalidConfig, lowest.Tier)
	}
	if lowest.RelegationRate != 0 {
		return fmt.Errorf("%w: lowest tier %s cannot relegate", ErrInvalidConfig, lowest.Tier)
	}
	if highest.PromotionRate != 0 {
		return fmt.Errorf("%w: highest tier %s cannot promote", ErrInvalidConfig, highest.Tier)
	}
	return nil
}

// Config returns the definition for t. Looking up a tier that is not in the
// registry is a programming error.
func (r *Registry) Config(t Tier) Definition {
	i, ok := r.index[t]
	if !ok {
		panic(fmt.Sprintf("tier: %s is not registered", t))
	}
	return r.defs[i]
}

func (r *Registry) Has(t Tier) bool {
	_, ok := r.index[t]
	return ok
}

func (r *Registry) Next(t Tier) (Tier, bool) {
	i, ok := r.index[t]
	if !ok || i+1 >= len(r.defs) {
		return 0, false
	}
	return r.defs[i+1].Tier, true
}

func (r *Registry) Previous(t Tier) (Tier, bool) {
	i, ok := r.index[t]
	if !ok || i == 0 {
		return 0, false
	}
	return r.defs[i-1].Tier, true
}

// ForLifetimeScore selects the highest tier whose minimum the score meets.
func (r *Registry) ForLifetimeScore(score int64) Tier {
	selected := r.defs[0].Tier
	for _, d := range r.defs {
		if score >= d.MinLifetimeScore {
			selected = d.Tier
		}
	}
	return selected
}

func (r *Registry) Lowest() Tier {
	return r.defs[0].Tier
}

func (r *Registry) Highest() Tier {
	return r.defs[len(r.defs)-1].Tier
}

// Tiers lists the registered tiers, lowest first.
func (r *Registry) Tiers() []Tier {
	out := make([]Tier, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.Tier
	}
	return out
}
