package models

import "testing"

func TestIsValidTxTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{TxStatusPending, TxStatusConfirmed, true},
		{TxStatusPending, TxStatusFailed, true},

		// Terminal
		{TxStatusConfirmed, TxStatusFailed, false},
		{TxStatusFailed, TxStatusConfirmed, false},
		{TxStatusConfirmed, TxStatusPending, false},
		{TxStatusFailed, TxStatusPending, false},
		{TxStatusPending, TxStatusPending, false},

		{"nonexistent", TxStatusConfirmed, false},
		{TxStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTxTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTxTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllTxStatusesHaveTransitionEntry(t *testing.T) {
	for _, status := range []string{TxStatusPending, TxStatusConfirmed, TxStatusFailed} {
		if _, ok := ValidTxTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidTxTransitions map", status)
		}
	}
}

func TestTxReceiptFinal(t *testing.T) {
	r := TxReceipt{Status: TxStatusPending}
	if r.Final() {
		t.Error("pending receipt reported final")
	}
	r.Status = TxStatusFailed
	if !r.Final() {
		t.Error("failed receipt not final")
	}
}
