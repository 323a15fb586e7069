package models

import "fmt"

type Mechanic string

const (
	MechanicSpin Mechanic = "spin"
	MechanicMine Mechanic = "mine"
	MechanicBox  Mechanic = "box"
)

func (m Mechanic) Valid() bool {
	switch m {
	case MechanicSpin, MechanicMine, MechanicBox:
		return true
	}
	return false
}

type Tier string

const (
	TierCommon    Tier = "common"
	TierRare      Tier = "rare"
	TierEpic      Tier = "epic"
	TierLegendary Tier = "legendary"
)

// RewardOutcome is one selectable entry of a mechanic's reward table.
// Weight is its share of the cumulative weight axis; zero-weight outcomes
// are never selectable.
type RewardOutcome struct {
	ID       string   `json:"id"`
	Mechanic Mechanic `json:"mechanic"`
	Tier     Tier     `json:"tier"`
	Weight   int64    `json:"weight"`
	Payout   int64    `json:"payout"`
	Critical bool     `json:"critical,omitempty"`
}

// RewardTable holds the outcome tables for every mechanic plus each
// mechanic's entry cost. Immutable once loaded; the engine validates it at
// startup and treats a degenerate table as fatal.
type RewardTable struct {
	Outcomes map[Mechanic][]RewardOutcome `json:"outcomes"`
	Costs    map[Mechanic]int64           `json:"costs"`

	// KeyCost is the price of one mystery box key.
	KeyCost int64 `json:"key_cost"`
}

// TotalWeight sums the positive weights for a mechanic.
func (t *RewardTable) TotalWeight(m Mechanic) int64 {
	var total int64
	for _, o := range t.Outcomes[m] {
		if o.Weight > 0 {
			total += o.Weight
		}
	}
	return total
}

func (t *RewardTable) Cost(m Mechanic) int64 {
	return t.Costs[m]
}

// Validate checks every mechanic has a selectable table.
func (t *RewardTable) Validate() error {
	for _, m := range []Mechanic{MechanicSpin, MechanicMine, MechanicBox} {
		outcomes := t.Outcomes[m]
		if len(outcomes) == 0 {
			return &ConfigError{Mechanic: m, Detail: "empty reward table"}
		}
		if t.TotalWeight(m) <= 0 {
			return &ConfigError{Mechanic: m, Detail: "all weights are zero"}
		}
		for _, o := range outcomes {
			if o.Weight < 0 {
				return &ConfigError{Mechanic: m, Detail: fmt.Sprintf("outcome %s has negative weight", o.ID)}
			}
			if o.Payout < 0 {
				return &ConfigError{Mechanic: m, Detail: fmt.Sprintf("outcome %s has negative payout", o.ID)}
			}
		}
	}
	return nil
}

// DefaultRewardTable mirrors the production earn configuration.
// Mining expresses the 7-10 uniform yield with a 1% x10 critical as a flat
// weighted table so all three mechanics go through the same selector.
func DefaultRewardTable() *RewardTable {
	return &RewardTable{
		KeyCost: 5000,
		Costs: map[Mechanic]int64{
			MechanicSpin: 500,
			MechanicMine: 0,
			MechanicBox:  0, // box cost is the key purchase, not the open
		},
		Outcomes: map[Mechanic][]RewardOutcome{
			MechanicSpin: {
				{ID: "spin_legendary", Mechanic: MechanicSpin, Tier: TierLegendary, Weight: 5, Payout: 30000},
				{ID: "spin_epic", Mechanic: MechanicSpin, Tier: TierEpic, Weight: 15, Payout: 10000},
				{ID: "spin_rare", Mechanic: MechanicSpin, Tier: TierRare, Weight: 30, Payout: 2000},
				{ID: "spin_common", Mechanic: MechanicSpin, Tier: TierCommon, Weight: 50, Payout: 100},
			},
			MechanicMine: {
				{ID: "mine_7", Mechanic: MechanicMine, Tier: TierCommon, Weight: 2475, Payout: 7},
				{ID: "mine_8", Mechanic: MechanicMine, Tier: TierCommon, Weight: 2475, Payout: 8},
				{ID: "mine_9", Mechanic: MechanicMine, Tier: TierCommon, Weight: 2475, Payout: 9},
				{ID: "mine_10", Mechanic: MechanicMine, Tier: TierCommon, Weight: 2475, Payout: 10},
				{ID: "mine_crit_70", Mechanic: MechanicMine, Tier: TierRare, Weight: 25, Payout: 70, Critical: true},
				{ID: "mine_crit_80", Mechanic: MechanicMine, Tier: TierRare, Weight: 25, Payout: 80, Critical: true},
				{ID: "mine_crit_90", Mechanic: MechanicMine, Tier: TierRare, Weight: 25, Payout: 90, Critical: true},
				{ID: "mine_crit_100", Mechanic: MechanicMine, Tier: TierRare, Weight: 25, Payout: 100, Critical: true},
			},
			MechanicBox: {
				{ID: "box_legendary", Mechanic: MechanicBox, Tier: TierLegendary, Weight: 1, Payout: 100000},
				{ID: "box_epic", Mechanic: MechanicBox, Tier: TierEpic, Weight: 9, Payout: 20000},
				{ID: "box_rare", Mechanic: MechanicBox, Tier: TierRare, Weight: 30, Payout: 6000},
				{ID: "box_common", Mechanic: MechanicBox, Tier: TierCommon, Weight: 60, Payout: 1000},
			},
		},
	}
}
