package core

import "sort"

// Transfer is a suggested payment from one member to another that would
// move both toward a settled balance. Suggestions only - recording actual
// payments is up to the group.
type Transfer struct {
	From   string
	To     string
	Amount float64
}

// SuggestTransfers matches debtors against creditors greedily and returns
// the transfers that would settle the group. Members within SettledEpsilon
// of zero are skipped. Inputs are sorted by member id so the result is
// deterministic for a given balance map.
func SuggestTransfers(balances map[string]float64) []Transfer {
	var debtors, creditors []string
	for id, b := range balances {
		switch {
		case b <= -SettledEpsilon:
			debtors = append(debtors, id)
		case b >= SettledEpsilon:
			creditors = append(creditors, id)
		}
	}
	sort.Strings(debtors)
	sort.Strings(creditors)

	owed := make(map[string]float64, len(debtors))
	due := make(map[string]float64, len(creditors))
	for _, id := range debtors {
		owed[id] = -balances[id]
	}
	for _, id := range creditors {
		due[id] = balances[id]
	}

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := debtors[i], creditors[j]

		amount := owed[debtor]
		if due[creditor] < amount {
			amount = due[creditor]
		}

		if amount > SettledEpsilon {
			transfers = append(transfers, Transfer{From: debtor, To: creditor, Amount: amount})
		}

		owed[debtor] -= amount
		due[creditor] -= amount

		if owed[debtor] < SettledEpsilon {
			i++
		}
		if due[creditor] < SettledEpsilon {
			j++
		}
	}

	return transfers
}
