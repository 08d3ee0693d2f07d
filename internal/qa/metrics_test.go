package qa

import (
	"reflect"
	"testing"
)

func TestExtractMetrics(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"percentage", "cut costs 30%", []string{"30%"}},
		{"spelled percent", "cut costs 30 percent", []string{"30%"}},
		{"currency magnitude", "saved $1.2 million annually", []string{"$1.2m"}},
		{"multiplier", "improved throughput 3x", []string{"3x"}},
		{"grouped number", "processed 1,200 requests", []string{"1200"}},
		{"doubled word", "doubled revenue year over year", []string{"2x"}},
		{"no metrics", "improved reliability", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMetrics(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractMetrics(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeMetric(t *testing.T) {
	tests := []struct{ in, want string }{
		{"40%", "40%"},
		{"40 Percent", "40%"},
		{"$1,200", "$1200"},
		{"$1.2 Million", "$1.2m"},
		{"3X", "3x"},
	}
	for _, tt := range tests {
		if got := NormalizeMetric(tt.in); got != tt.want {
			t.Errorf("NormalizeMetric(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSupports(t *testing.T) {
	source := "Led migration to new platform, cut costs 30%"

	if !Supports(source, "30%") {
		t.Error("exact normalized token should be supported")
	}
	if !Supports(source, "30") {
		t.Error("bare numeric core of a cited metric should be supported")
	}
	if Supports(source, "40%") {
		t.Error("foreign metric must not be supported")
	}
	if Supports("improved reliability", "2x") {
		t.Error("multiplier with no source support must not be supported")
	}

	// Sharing a digit string across unit classes is not grounding.
	if Supports("Mentored 3 engineers", "3x") {
		t.Error("bare count must not support a multiplier claim")
	}
	if Supports("Managed a budget of $40", "40%") {
		t.Error("currency amount must not support a percentage claim")
	}
	if Supports("cut costs 30%", "$30") {
		t.Error("percentage must not support a currency claim")
	}
	if !Supports("saved $1.2 million annually", "1.2m") {
		t.Error("bare magnitude citing its currency source form should be supported")
	}
}
