package core

import (
	"math"
	"math/rand"
	"testing"
)

func members(ids ...string) []Member {
	ms := make([]Member, len(ids))
	for i, id := range ids {
		ms[i] = Member{ID: id, Kind: Registered}
	}
	return ms
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestComputeBalances_EqualSplit(t *testing.T) {
	balances := ComputeBalances(
		members("alice", "bob", "carol"),
		[]Transaction{{ID: "t1", Description: "dinner", Amount: 90, PayerID: "alice"}},
	)

	want := map[string]float64{"alice": 60, "bob": -30, "carol": -30}
	if len(balances) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(balances), len(want), balances)
	}
	for id, w := range want {
		if !almostEqual(balances[id], w, 1e-9) {
			t.Errorf("balance[%s] = %v, want %v", id, balances[id], w)
		}
	}
}

func TestComputeBalances_ExplicitSplit(t *testing.T) {
	balances := ComputeBalances(
		members("alice", "bob"),
		[]Transaction{{
			ID:          "t1",
			Description: "groceries",
			Amount:      100,
			PayerID:     "alice",
			Splits: []Split{
				{MemberID: "alice", Amount: 40},
				{MemberID: "bob", Amount: 60},
			},
		}},
	)

	if !almostEqual(balances["alice"], 60, 1e-9) {
		t.Errorf("alice = %v, want 60", balances["alice"])
	}
	if !almostEqual(balances["bob"], -60, 1e-9) {
		t.Errorf("bob = %v, want -60", balances["bob"])
	}
}

func TestComputeBalances_IncomeSign(t *testing.T) {
	// alice received 50 on the group's behalf: her credit is -50 and her
	// equal-share debit is -25, netting -25; bob nets +25.
	balances := ComputeBalances(
		members("alice", "bob"),
		[]Transaction{{ID: "t1", Description: "refund", Amount: -50, PayerID: "alice"}},
	)

	if !almostEqual(balances["alice"], -25, 1e-9) {
		t.Errorf("alice = %v, want -25", balances["alice"])
	}
	if !almostEqual(balances["bob"], 25, 1e-9) {
		t.Errorf("bob = %v, want 25", balances["bob"])
	}
}

func TestComputeBalances_MissingPayerGetsEntry(t *testing.T) {
	// A payer outside the roster still surfaces in the output. With one
	// roster member the divisor is 1, so the ghost's credit of 20 cancels
	// against its own equal share and alice carries the other.
	balances := ComputeBalances(
		members("alice"),
		[]Transaction{{ID: "t1", Description: "taxi", Amount: 20, PayerID: "ghost"}},
	)

	ghost, ok := balances["ghost"]
	if !ok {
		t.Fatalf("expected an entry for the off-roster payer, got %v", balances)
	}
	if !almostEqual(ghost, 0, 1e-9) {
		t.Errorf("ghost = %v, want 0", ghost)
	}
	if !almostEqual(balances["alice"], -20, 1e-9) {
		t.Errorf("alice = %v, want -20", balances["alice"])
	}
}

func TestComputeBalances_MissingSplitMemberGetsEntry(t *testing.T) {
	balances := ComputeBalances(
		members("alice"),
		[]Transaction{{
			ID:          "t1",
			Description: "hotel",
			Amount:      80,
			PayerID:     "alice",
			Splits: []Split{
				{MemberID: "alice", Amount: 40},
				{MemberID: "departed", Amount: 40},
			},
		}},
	)

	if !almostEqual(balances["departed"], -40, 1e-9) {
		t.Errorf("departed = %v, want -40", balances["departed"])
	}
	if !almostEqual(balances["alice"], 40, 1e-9) {
		t.Errorf("alice = %v, want 40", balances["alice"])
	}
}

func TestComputeBalances_EmptyRoster(t *testing.T) {
	// The divisor is clamped to 1 for an empty roster, so the solo payer's
	// credit and own share cancel out instead of dividing by zero.
	balances := ComputeBalances(
		nil,
		[]Transaction{{ID: "t1", Description: "solo", Amount: 10, PayerID: "alice"}},
	)

	if _, ok := balances["alice"]; !ok {
		t.Fatalf("expected an entry for the payer, got %v", balances)
	}
	if !almostEqual(balances["alice"], 0, 1e-9) {
		t.Errorf("alice = %v, want 0", balances["alice"])
	}
}

func TestComputeBalances_EmptyTransactions(t *testing.T) {
	balances := ComputeBalances(members("alice", "bob"), nil)

	if len(balances) != 2 {
		t.Fatalf("got %d entries, want 2", len(balances))
	}
	for id, b := range balances {
		if b != 0 {
			t.Errorf("balance[%s] = %v, want exactly 0", id, b)
		}
	}
}

func TestComputeBalances_OrderIndependence(t *testing.T) {
	roster := members("alice", "bob", "carol", "dora")
	txns := []Transaction{
		{ID: "t1", Description: "rent", Amount: 1200, PayerID: "alice"},
		{ID: "t2", Description: "food", Amount: 87.35, PayerID: "bob", Splits: []Split{
			{MemberID: "alice", Amount: 20}, {MemberID: "bob", Amount: 27.35},
			{MemberID: "carol", Amount: 20}, {MemberID: "dora", Amount: 20},
		}},
		{ID: "t3", Description: "deposit refund", Amount: -300, PayerID: "carol"},
		{ID: "t4", Description: "tickets", Amount: 61.5, PayerID: "dora"},
		{ID: "t5", Description: "fuel", Amount: 42.13, PayerID: "alice"},
	}

	want := ComputeBalances(roster, txns)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]Transaction, len(txns))
		copy(shuffled, txns)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := ComputeBalances(roster, shuffled)
		if len(got) != len(want) {
			t.Fatalf("permutation %d: got %d entries, want %d", i, len(got), len(want))
		}
		for id, w := range want {
			if !almostEqual(got[id], w, 1e-9) {
				t.Errorf("permutation %d: balance[%s] = %v, want %v", i, id, got[id], w)
			}
		}
	}
}

func TestComputeBalances_ZeroSum(t *testing.T) {
	// With no off-roster references every debit mirrors a credit, so the
	// balances sum to zero within epsilon.
	roster := members("alice", "bob", "carol")
	txns := []Transaction{
		{ID: "t1", Description: "dinner", Amount: 90.01, PayerID: "alice"},
		{ID: "t2", Description: "drinks", Amount: 33.33, PayerID: "bob"},
		{ID: "t3", Description: "refund", Amount: -12.5, PayerID: "carol"},
		{ID: "t4", Description: "museum", Amount: 27, PayerID: "carol", Splits: []Split{
			{MemberID: "alice", Amount: 9}, {MemberID: "bob", Amount: 9}, {MemberID: "carol", Amount: 9},
		}},
	}

	var sum float64
	for _, b := range ComputeBalances(roster, txns) {
		sum += b
	}
	if !almostEqual(sum, 0, 1e-9) {
		t.Errorf("balances sum to %v, want ~0", sum)
	}
}

func TestComputeBalances_Idempotent(t *testing.T) {
	roster := members("alice", "bob")
	txns := []Transaction{
		{ID: "t1", Description: "dinner", Amount: 50, PayerID: "alice", Splits: []Split{
			{MemberID: "alice", Amount: 25}, {MemberID: "bob", Amount: 25},
		}},
	}

	first := ComputeBalances(roster, txns)
	second := ComputeBalances(roster, txns)

	for id, b := range first {
		if second[id] != b {
			t.Errorf("balance[%s] changed between calls: %v vs %v", id, b, second[id])
		}
	}

	// Inputs must not be mutated.
	if roster[0].ID != "alice" || roster[1].ID != "bob" {
		t.Error("roster mutated")
	}
	if txns[0].Amount != 50 || txns[0].Splits[1].Amount != 25 {
		t.Error("transactions mutated")
	}
}

func TestComputeBalances_InconsistentSplitsAppliedAsGiven(t *testing.T) {
	// Splits that do not sum to the amount are applied verbatim, never
	// reconciled.
	txn := Transaction{
		ID:          "t1",
		Description: "skewed",
		Amount:      100,
		PayerID:     "alice",
		Splits: []Split{
			{MemberID: "alice", Amount: 30},
			{MemberID: "bob", Amount: 30},
		},
	}
	balances := ComputeBalances(members("alice", "bob"), []Transaction{txn})

	if !almostEqual(balances["alice"], 70, 1e-9) {
		t.Errorf("alice = %v, want 70", balances["alice"])
	}
	if !almostEqual(balances["bob"], -30, 1e-9) {
		t.Errorf("bob = %v, want -30", balances["bob"])
	}

	if diff, ok := SplitSumMismatch(txn); !ok || !almostEqual(diff, -40, 1e-9) {
		t.Errorf("SplitSumMismatch = (%v, %v), want (-40, true)", diff, ok)
	}
}

func TestSplitSumMismatch(t *testing.T) {
	tests := []struct {
		name     string
		txn      Transaction
		wantDiff float64
		wantOK   bool
	}{
		{
			name: "no splits",
			txn:  Transaction{Amount: 10},
		},
		{
			name: "consistent",
			txn: Transaction{Amount: 10, Splits: []Split{
				{MemberID: "a", Amount: 5}, {MemberID: "b", Amount: 5},
			}},
		},
		{
			name: "within half a cent",
			txn: Transaction{Amount: 10, Splits: []Split{
				{MemberID: "a", Amount: 3.33}, {MemberID: "b", Amount: 3.33}, {MemberID: "c", Amount: 3.34},
			}},
		},
		{
			name: "over by a dollar",
			txn: Transaction{Amount: 10, Splits: []Split{
				{MemberID: "a", Amount: 6}, {MemberID: "b", Amount: 5},
			}},
			wantDiff: 1,
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff, ok := SplitSumMismatch(tt.txn)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && !almostEqual(diff, tt.wantDiff, 1e-9) {
				t.Errorf("diff = %v, want %v", diff, tt.wantDiff)
			}
		})
	}
}

func TestSettled(t *testing.T) {
	tests := []struct {
		balance float64
		want    bool
	}{
		{0, true},
		{0.009, true},
		{-0.009, true},
		{0.01, false},
		{-0.02, false},
		{5, false},
	}
	for _, tt := range tests {
		if got := Settled(tt.balance); got != tt.want {
			t.Errorf("Settled(%v) = %v, want %v", tt.balance, got, tt.want)
		}
	}
}
