package reminder

import "fmt"

// Tier is a reminder escalation level. The zero value means no reminder is due.
type Tier string

const (
	TierNone     Tier = ""
	TierGentle   Tier = "gentle"
	TierStandard Tier = "standard"
	TierUrgent   Tier = "urgent"
	TierFinal    Tier = "final"
)

// Tiers lists the escalation tiers in ascending urgency.
var Tiers = []Tier{TierGentle, TierStandard, TierUrgent, TierFinal}

// Rank is the urgency rank 1-4, 0 for TierNone.
func (t Tier) Rank() int {
	for i, k := range Tiers {
		if t == k {
			return i + 1
		}
	}
	return 0
}

// Next returns the following tier, TierNone after final.
func (t Tier) Next() Tier {
	r := t.Rank()
	if r >= len(Tiers) {
		return TierNone
	}
	return Tiers[r]
}

func (t Tier) String() string {
	if t == TierNone {
		return "none"
	}
	return string(t)
}

func ParseTier(s string) (Tier, error) {
	for _, k := range Tiers {
		if string(k) == s {
			return k, nil
		}
	}
	return TierNone, fmt.Errorf("unknown reminder tier %q", s)
}
