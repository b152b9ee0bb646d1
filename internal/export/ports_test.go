package export

import "testing"

func TestLedgerEntryKind(t *testing.T) {
	if got := (LedgerEntry{Amount: 12.5}).Kind(); got != "expense" {
		t.Errorf("positive amount kind = %q, want expense", got)
	}
	if got := (LedgerEntry{Amount: -12.5}).Kind(); got != "income" {
		t.Errorf("negative amount kind = %q, want income", got)
	}
}
