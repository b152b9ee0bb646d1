package core

import "math"

// SettledEpsilon is the tolerance under which a balance counts as settled.
// Float accumulation across many transactions rarely lands on exactly zero.
const SettledEpsilon = 0.01

// splitSumTolerance is half a cent: split sums further from the parent
// amount than this are reported as inconsistent.
const splitSumTolerance = 0.005

// ComputeBalances derives each member's net position from a full snapshot
// of the group's roster and transactions.
//
// For every transaction the payer is credited the full signed amount, then
// the consumers are debited: the explicit splits when present, otherwise an
// equal share of amount/len(members) subtracted from every roster member
// (the payer included, netting to amount minus one share). Identifiers
// referenced by a transaction but absent from the roster - departed members,
// removed guests - get an entry created on the fly so their net figure is
// never silently dropped.
//
// The computation is pure and order-independent: inputs are never mutated,
// and every call returns a fresh map. Inconsistent split sums are applied
// exactly as given; see SplitSumMismatch for detection.
func ComputeBalances(members []Member, txns []Transaction) map[string]float64 {
	balances := make(map[string]float64, len(members))
	for _, m := range members {
		balances[m.ID] = 0
	}

	for _, t := range txns {
		balances[t.PayerID] += t.Amount

		if len(t.Splits) > 0 {
			for _, s := range t.Splits {
				balances[s.MemberID] -= s.Amount
			}
			continue
		}

		// No recorded splits: fall back to an equal split across the
		// roster. The max(count,1) guard keeps an empty roster from
		// dividing by zero; the credit from above still surfaces.
		divisor := len(members)
		if divisor == 0 {
			divisor = 1
		}
		share := t.Amount / float64(divisor)
		onRoster := false
		for _, m := range members {
			balances[m.ID] -= share
			if m.ID == t.PayerID {
				onRoster = true
			}
		}
		// A payer outside the roster still owes its own equal share.
		if !onRoster {
			balances[t.PayerID] -= share
		}
	}

	return balances
}

// Settled reports whether a balance is within SettledEpsilon of zero.
func Settled(balance float64) bool {
	return math.Abs(balance) < SettledEpsilon
}

// SplitSumMismatch returns the difference between the recorded split sum
// and the transaction amount when the transaction carries explicit splits
// and they disagree beyond half a cent. The engine never repairs the
// numbers; callers use this to flag upstream inconsistencies.
func SplitSumMismatch(t Transaction) (float64, bool) {
	if len(t.Splits) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range t.Splits {
		sum += s.Amount
	}
	diff := sum - t.Amount
	if math.Abs(diff) <= splitSumTolerance {
		return 0, false
	}
	return diff, true
}
