package models

import "testing"

func TestValidIssueStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"open", true},
		{"closed", true},
		{"", false},
		{"draft", false},
	}
	for _, tc := range tests {
		if got := ValidIssueStatus(tc.status); got != tc.want {
			t.Errorf("ValidIssueStatus(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestValidIssuePriority(t *testing.T) {
	tests := []struct {
		priority string
		want     bool
	}{
		{"low", true},
		{"medium", true},
		{"high", true},
		{"critical", true},
		{"", false},
		{"urgent", false},
	}
	for _, tc := range tests {
		if got := ValidIssuePriority(tc.priority); got != tc.want {
			t.Errorf("ValidIssuePriority(%q) = %v, want %v", tc.priority, got, tc.want)
		}
	}
}
