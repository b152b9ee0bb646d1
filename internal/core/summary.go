package core

import "sort"

// MemberBalance pairs a roster entry with its computed net position.
// Positive means the group owes the member, negative means the member
// owes the group.
type MemberBalance struct {
	MemberID    string
	DisplayName string
	Amount      float64
	Settled     bool
}

// RankBalances turns a balance map into a display list ordered by amount,
// largest creditor first, ties broken by member id. Entries without a
// roster name (created on the fly by the balance engine) fall back to the
// raw id.
func RankBalances(balances map[string]float64, names map[string]string) []MemberBalance {
	ranked := make([]MemberBalance, 0, len(balances))
	for id, amount := range balances {
		name, ok := names[id]
		if !ok || name == "" {
			name = id
		}
		ranked = append(ranked, MemberBalance{
			MemberID:    id,
			DisplayName: name,
			Amount:      amount,
			Settled:     Settled(amount),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		return ranked[i].MemberID < ranked[j].MemberID
	})
	return ranked
}

// GroupSummary is a compact per-group overview for dashboard listings.
type GroupSummary struct {
	Group       Group
	MemberCount int
	EntryCount  int
	TotalSpent  float64 // sum of positive amounts
	TotalIncome float64 // sum of negative amounts, as a positive figure
}

// Summarize condenses a group's snapshot into dashboard figures.
func Summarize(group Group, members []Member, txns []Transaction) GroupSummary {
	summary := GroupSummary{
		Group:       group,
		MemberCount: len(members),
		EntryCount:  len(txns),
	}
	for _, t := range txns {
		if t.Amount >= 0 {
			summary.TotalSpent += t.Amount
		} else {
			summary.TotalIncome += -t.Amount
		}
	}
	return summary
}
