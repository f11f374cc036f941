package model

import (
	"testing"
	"time"
)

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in   string
		want RiskLevel
	}{
		{"LOW", RiskLow},
		{"HIGH", RiskHigh},
		{"CRITICAL", RiskCritical},
		{"UNKNOWN", RiskUnknown},
		{"low", RiskUnknown},
		{"", RiskUnknown},
		{"SEVERE", RiskUnknown},
	}
	for _, tt := range tests {
		if got := ParseRiskLevel(tt.in); got != tt.want {
			t.Errorf("ParseRiskLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRiskRankOrdersEveryLevel(t *testing.T) {
	order := []RiskLevel{RiskLow, RiskMedium, RiskUnknown, RiskHigh, RiskCritical}
	for i := 1; i < len(order); i++ {
		if RiskRank[order[i-1]] >= RiskRank[order[i]] {
			t.Errorf("%s should rank below %s", order[i-1], order[i])
		}
	}
}

func TestEventComplete(t *testing.T) {
	now := time.Now()
	full := Event{Protocol: "V4.5/ANCHORS", Context: &EventContext{OriginalText: "x", Timestamp: now}}
	if !full.Complete() {
		t.Error("expected complete event")
	}

	tests := []struct {
		name string
		ev   Event
	}{
		{"no protocol", Event{Context: &EventContext{OriginalText: "x", Timestamp: now}}},
		{"no context", Event{Protocol: "V4.5/GENERIC"}},
		{"no text", Event{Protocol: "V4.5/GENERIC", Context: &EventContext{Timestamp: now}}},
		{"no timestamp", Event{Protocol: "V4.5/GENERIC", Context: &EventContext{OriginalText: "x"}}},
	}
	for _, tt := range tests {
		if tt.ev.Complete() {
			t.Errorf("%s: expected incomplete", tt.name)
		}
	}
	if (&Event{}).OriginalText() != "" {
		t.Error("expected empty text without context")
	}
}

func TestEventContextHasCluster(t *testing.T) {
	c := &EventContext{PolicyClusters: []string{"PEC-1", "PEC-3"}}
	if !c.HasCluster("PEC-3") || c.HasCluster("PEC-6") {
		t.Errorf("unexpected cluster membership for %v", c.PolicyClusters)
	}
}
