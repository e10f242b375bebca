package model

import "testing"

func TestEstimateCostRoundsToSixPlaces(t *testing.T) {
	if got := EstimateCost(1); got != 0.000002 {
		t.Fatalf("EstimateCost(1)=%v", got)
	}
	if got := EstimateCost(1234567); got != 2.469134 {
		t.Fatalf("EstimateCost(1234567)=%v", got)
	}
}

func TestUsageAddIsAdditive(t *testing.T) {
	a := NewUsage(10, 5)
	b := NewUsage(3, 7)
	sum := a.Add(b)
	if sum.InputTokens != 13 || sum.OutputTokens != 12 || sum.TotalTokens != 25 {
		t.Fatalf("sum=%+v", sum)
	}
	if sum.EstimatedCostUSD != 0.00005 {
		t.Fatalf("cost=%v want 0.00005", sum.EstimatedCostUSD)
	}
}

func TestUsageAddRoundsFloatDrift(t *testing.T) {
	var total TokenUsage
	for i := 0; i < 10; i++ {
		total = total.Add(NewUsage(1, 0))
	}
	if total.EstimatedCostUSD != 0.00002 {
		t.Fatalf("cost=%v want 0.00002", total.EstimatedCostUSD)
	}
}

func TestEstimateTokensCountsRunes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"ééé", 1},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Fatalf("EstimateTokens(%q)=%d want %d", tt.in, got, tt.want)
		}
	}
}

func TestEstimateUsageSumsAllMessages(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: "12345678"},
		{Role: RoleUser, Content: "1"},
	}
	u := EstimateUsage(messages, "abcdefgh")
	if u.InputTokens != 3 || u.OutputTokens != 2 || u.TotalTokens != 5 {
		t.Fatalf("usage=%+v", u)
	}
}
