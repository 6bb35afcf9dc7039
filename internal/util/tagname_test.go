package util

import "testing"

func TestNormalizeTagName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Reading", "Reading"},
		{"  Slow   Burn  ", "Slow Burn"},
		{"golang\t tips", "golang tips"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeTagName(tt.input); got != tt.expected {
			t.Errorf("NormalizeTagName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFoldTagName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Reading", "reading"},
		{"READING", "reading"},
		{" Slow Burn ", "slow burn"},
		{"Café", "café"},
	}

	for _, tt := range tests {
		if got := FoldTagName(tt.input); got != tt.expected {
			t.Errorf("FoldTagName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFoldTagName_EqualAcrossCases(t *testing.T) {
	if FoldTagName("Foo") != FoldTagName("foo") {
		t.Error("expected Foo and foo to fold to the same name")
	}
	if FoldTagName("Foo") == FoldTagName("bar") {
		t.Error("expected Foo and bar to fold differently")
	}
}
