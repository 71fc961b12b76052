package main

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/analysis"
	"honnef.co/go/tools/analysis/lint"
)

func names(as []*analysis.Analyzer) string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.Name)
	}
	return strings.Join(out, ",")
}

func TestFilterAnalyzers(t *testing.T) {
	sa := &analysis.Analyzer{Name: "SA1000"}
	nilerr := &analysis.Analyzer{Name: "nilerr"}
	osexit := &analysis.Analyzer{Name: "osexitmain"}

	tests := []struct {
		name     string
		input    []*analysis.Analyzer
		disabled []string
		want     string
	}{
		{"keep all", []*analysis.Analyzer{sa, nilerr, osexit}, nil, "SA1000,nilerr,osexitmain"},
		{"disable one", []*analysis.Analyzer{sa, nilerr, osexit}, []string{" nilerr "}, "SA1000,osexitmain"},
		{"drop nil and duplicates", []*analysis.Analyzer{sa, nil, sa, osexit}, nil, "SA1000,osexitmain"},
		{"disable unknown", []*analysis.Analyzer{sa}, []string{"nope"}, "SA1000"},
		{"empty input", nil, []string{"SA1000"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := names(filterAnalyzers(tt.input, tt.disabled)); got != tt.want {
				t.Errorf("filterAnalyzers = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectAnalyzers(t *testing.T) {
	set := []*lint.Analyzer{
		{Analyzer: &analysis.Analyzer{Name: "SA1000"}},
		nil,
		{Analyzer: &analysis.Analyzer{Name: "S1000"}},
		{},
		{Analyzer: &analysis.Analyzer{Name: "ST1000"}},
		{Analyzer: &analysis.Analyzer{Name: "ST1003"}},
	}
	if got := names(selectAnalyzers(set, "SA", "ST1000")); got != "SA1000,ST1000" {
		t.Fatalf("selectAnalyzers = %q", got)
	}
	if got := selectAnalyzers(set); len(got) != 0 {
		t.Fatalf("no prefixes should select nothing, got %d", len(got))
	}
}

func TestVetPassesUnique(t *testing.T) {
	if got := filterAnalyzers(vetPasses, nil); len(got) != len(vetPasses) {
		t.Fatalf("vetPasses has duplicates: %d unique of %d", len(got), len(vetPasses))
	}
}
