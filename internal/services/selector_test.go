package services_test

import (
	"errors"
	"testing"

	"github.com/spiritrealm/earn-engine/internal/models"
	"github.com/spiritrealm/earn-engine/internal/services"
)

// weighted 80/15/5 spin table, common first on the cumulative axis
func testSpinTable() *models.RewardTable {
	return &models.RewardTable{
		KeyCost: 5000,
		Costs: map[models.Mechanic]int64{
			models.MechanicSpin: 0,
			models.MechanicMine: 0,
			models.MechanicBox:  0,
		},
		Outcomes: map[models.Mechanic][]models.RewardOutcome{
			models.MechanicSpin: {
				{ID: "common", Mechanic: models.MechanicSpin, Tier: models.TierCommon, Weight: 80, Payout: 10},
				{ID: "rare", Mechanic: models.MechanicSpin, Tier: models.TierRare, Weight: 15, Payout: 100},
				{ID: "legendary", Mechanic: models.MechanicSpin, Tier: models.TierLegendary, Weight: 5, Payout: 1000},
			},
			models.MechanicMine: {
				{ID: "mine_1", Mechanic: models.MechanicMine, Tier: models.TierCommon, Weight: 1, Payout: 1},
			},
			models.MechanicBox: {
				{ID: "box_1", Mechanic: models.MechanicBox, Tier: models.TierCommon, Weight: 1, Payout: 1},
			},
		},
	}
}

func TestSelectOutcome_IntervalBoundaries(t *testing.T) {
	table := testSpinTable()

	cases := []struct {
		draw int64
		want string
	}{
		{0, "common"},
		{79, "common"},
		{80, "rare"},
		{94, "rare"},
		{95, "legendary"}, // legendary boundary
		{99, "legendary"},
	}
	for _, tc := range cases {
		got, err := services.SelectOutcome(table, models.MechanicSpin, tc.draw)
		if err != nil {
			t.Fatalf("draw %d: unexpected error: %v", tc.draw, err)
		}
		if got.ID != tc.want {
			t.Errorf("draw %d: got %s, want %s", tc.draw, got.ID, tc.want)
		}
	}
}

func TestSelectOutcome_DrawOutOfRange(t *testing.T) {
	table := testSpinTable()

	if _, err := services.SelectOutcome(table, models.MechanicSpin, 100); err == nil {
		t.Error("draw at total weight should fail")
	}
	if _, err := services.SelectOutcome(table, models.MechanicSpin, -1); err == nil {
		t.Error("negative draw should fail")
	}
}

func TestSelectOutcome_ZeroWeightNeverSelected(t *testing.T) {
	table := testSpinTable()
	table.Outcomes[models.MechanicSpin] = []models.RewardOutcome{
		{ID: "dead", Weight: 0, Payout: 999999},
		{ID: "live_a", Weight: 10, Payout: 1},
		{ID: "dead_2", Weight: 0, Payout: 999999},
		{ID: "live_b", Weight: 10, Payout: 2},
	}

	for draw := int64(0); draw < 20; draw++ {
		got, err := services.SelectOutcome(table, models.MechanicSpin, draw)
		if err != nil {
			t.Fatalf("draw %d: %v", draw, err)
		}
		if got.ID == "dead" || got.ID == "dead_2" {
			t.Fatalf("draw %d selected zero-weight outcome %s", draw, got.ID)
		}
		want := "live_a"
		if draw >= 10 {
			want = "live_b"
		}
		if got.ID != want {
			t.Errorf("draw %d: got %s, want %s", draw, got.ID, want)
		}
	}
}

func TestSelectOutcome_DegenerateTable(t *testing.T) {
	table := testSpinTable()
	table.Outcomes[models.MechanicSpin] = nil

	_, err := services.SelectOutcome(table, models.MechanicSpin, 0)
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("empty table: expected ConfigError, got %v", err)
	}

	table.Outcomes[models.MechanicSpin] = []models.RewardOutcome{
		{ID: "a", Weight: 0}, {ID: "b", Weight: 0},
	}
	_, err = services.SelectOutcome(table, models.MechanicSpin, 0)
	if !errors.As(err, &cfgErr) {
		t.Fatalf("all-zero weights: expected ConfigError, got %v", err)
	}
}

func TestSelectOutcome_DistributionConvergence(t *testing.T) {
	table := testSpinTable()
	total := table.TotalWeight(models.MechanicSpin)

	const rounds = 200_000
	counts := map[string]int{}
	for i := 0; i < rounds; i++ {
		draw, err := services.CryptoDraw(total)
		if err != nil {
			t.Fatalf("CryptoDraw failed: %v", err)
		}
		o, err := services.SelectOutcome(table, models.MechanicSpin, draw)
		if err != nil {
			t.Fatalf("SelectOutcome failed: %v", err)
		}
		counts[o.ID]++
	}

	expected := map[string]float64{"common": 0.80, "rare": 0.15, "legendary": 0.05}
	for id, want := range expected {
		got := float64(counts[id]) / rounds
		if got < want-0.01 || got > want+0.01 {
			t.Errorf("outcome %s: observed %.4f, expected %.2f +/- 0.01", id, got, want)
		}
	}
}

func TestFairDraw_DeterministicAndInRange(t *testing.T) {
	const total = int64(100)

	d1, h1 := services.FairDraw("server-seed", "client-seed", 7, models.MechanicSpin, total)
	d2, h2 := services.FairDraw("server-seed", "client-seed", 7, models.MechanicSpin, total)
	if d1 != d2 || h1 != h2 {
		t.Fatalf("FairDraw not deterministic: (%d,%s) vs (%d,%s)", d1, h1, d2, h2)
	}
	if d1 < 0 || d1 >= total {
		t.Errorf("draw %d out of range [0, %d)", d1, total)
	}

	// nonce and mechanic must both change the draw stream
	d3, _ := services.FairDraw("server-seed", "client-seed", 8, models.MechanicSpin, total)
	d4, _ := services.FairDraw("server-seed", "client-seed", 7, models.MechanicBox, total)
	if d1 == d3 && d1 == d4 {
		t.Error("draw stream does not vary with nonce or mechanic")
	}

	for nonce := int64(0); nonce < 1000; nonce++ {
		d, _ := services.FairDraw("s", "c", nonce, models.MechanicMine, total)
		if d < 0 || d >= total {
			t.Fatalf("nonce %d: draw %d out of range", nonce, d)
		}
	}
}
