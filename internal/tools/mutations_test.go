package tools

import (
	"reflect"
	"strings"
	"testing"
)

func TestReplaceResidue(t *testing.T) {
	out, old, err := replaceResidue("MKLV", 2, "A")
	if err != nil {
		t.Fatalf("replaceResidue: %v", err)
	}
	if out != "MALV" || old != 'K' {
		t.Fatalf("out=%q old=%c", out, old)
	}
	if _, _, err := replaceResidue("MKLV", 5, "A"); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, _, err := replaceResidue("MKLV", 0, "A"); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestDeleteRange(t *testing.T) {
	out, removed, err := deleteRange("MKLVW", 2, 4)
	if err != nil {
		t.Fatalf("deleteRange: %v", err)
	}
	if out != "MW" || removed != "KLV" {
		t.Fatalf("out=%q removed=%q", out, removed)
	}
	if _, _, err := deleteRange("MKLVW", 4, 2); err == nil {
		t.Fatalf("expected inverted-range error")
	}
	if _, _, err := deleteRange("MKLVW", 1, 6); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestInsertAfter(t *testing.T) {
	out, err := insertAfter("MKLV", 2, "GGS")
	if err != nil {
		t.Fatalf("insertAfter: %v", err)
	}
	if out != "MKGGSLV" {
		t.Fatalf("out=%q", out)
	}
	// Position 0 prepends.
	if out, err = insertAfter("MKLV", 0, "A"); err != nil || out != "AMKLV" {
		t.Fatalf("prepend: %q, %v", out, err)
	}
	if _, err := insertAfter("MKLV", 5, "A"); err == nil {
		t.Fatalf("expected invalid-position error")
	}
}

func TestTruncateAt(t *testing.T) {
	out, err := truncateAt("MKLVW", 3)
	if err != nil {
		t.Fatalf("truncateAt: %v", err)
	}
	if out != "MKL" {
		t.Fatalf("out=%q", out)
	}
	if _, err := truncateAt("MKLVW", 0); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := truncateAt("MKLVW", 6); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestApplyMutations_Directives(t *testing.T) {
	seq := "MKLVWAAKES"
	out, report, err := ApplyMutations(seq, []string{"K2A", "del5-6", "ins8GGS", "trunc9"})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	// Applied right to left: trunc9 -> MKLVWAAKE, ins8GGS -> MKLVWAAKGGSE,
	// del5-6 -> MKLVAKGGSE, K2A -> MALVAKGGSE.
	if out != "MALVAKGGSE" {
		t.Fatalf("out=%q", out)
	}
	if len(report) != 4 {
		t.Fatalf("report: %v", report)
	}
	joined := strings.Join(report, "\n")
	for _, want := range []string{"TRUNCATE: kept 1-9", "INSERT: after 8 added 'GGS'", "DELETE RANGE: 5-6 'WA' removed", "REPLACE: pos 2 'K' -> 'A'"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("report missing %q:\n%s", want, joined)
		}
	}
}

func TestApplyMutations_DeclaredResidueMismatchNoted(t *testing.T) {
	_, report, err := ApplyMutations("MKLV", []string{"A2T"})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if !strings.Contains(report[0], "(directive declared 'A')") {
		t.Fatalf("report: %v", report)
	}
}

func TestApplyMutations_ColonReplaceForms(t *testing.T) {
	out, report, err := ApplyMutations("MKLVWAAKES", []string{"rep3:V"})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if out != "MKVVWAAKES" {
		t.Fatalf("out=%q", out)
	}
	if report[0] != "REPLACE: pos 3 'L' -> 'V'" {
		t.Fatalf("report: %v", report)
	}

	out, report, err = ApplyMutations("MKLVWAAKES", []string{"rep3-5:GFP"})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if out != "MKGFPAAKES" {
		t.Fatalf("out=%q", out)
	}
	if report[0] != "REPLACE RANGE: 3-5 'LVW' -> 'GFP'" {
		t.Fatalf("report: %v", report)
	}
}

func TestApplyMutations_ReplaceRangeLengthChange(t *testing.T) {
	// Replacement payload need not match the range length.
	out, _, err := ApplyMutations("MKLVW", []string{"rep2-4:A"})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if out != "MAW" {
		t.Fatalf("out=%q", out)
	}
	if _, _, err := ApplyMutations("MKLVW", []string{"rep4-2:A"}); err == nil {
		t.Fatalf("expected inverted-range error")
	}
	if _, _, err := ApplyMutations("MKLVW", []string{"rep2-9:A"}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestApplyMutations_ColonInsert(t *testing.T) {
	out, report, err := ApplyMutations("MKLVW", []string{"ins5:GGS"})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if out != "MKLVWGGS" {
		t.Fatalf("out=%q", out)
	}
	if report[0] != "INSERT: after 5 added 'GGS'" {
		t.Fatalf("report: %v", report)
	}
}

func TestApplyMutations_SingleDelete(t *testing.T) {
	out, report, err := ApplyMutations("MKLV", []string{"del3"})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if out != "MKV" {
		t.Fatalf("out=%q", out)
	}
	if !strings.Contains(report[0], "DELETE: pos 3 'L' removed") {
		t.Fatalf("report: %v", report)
	}
}

func TestApplyMutations_UnsupportedFormat(t *testing.T) {
	if _, _, err := ApplyMutations("MKLV", []string{"swap1-2"}); err == nil {
		t.Fatalf("expected unsupported-format error")
	}
}

func TestApplyMutations_BlankDirectivesSkipped(t *testing.T) {
	out, report, err := ApplyMutations("MKLV", []string{"", "  "})
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if out != "MKLV" || len(report) != 0 {
		t.Fatalf("out=%q report=%v", out, report)
	}
}

func TestParseDirective(t *testing.T) {
	cases := map[string]mutationDirective{
		"rep123:V":       {kind: "rep", start: 123, end: 123, payload: "V"},
		"rep120-125:GFP": {kind: "rep", start: 120, end: 125, payload: "GFP"},
		"del10":          {kind: "del", start: 10, end: 10},
		"del10-12":       {kind: "del", start: 10, end: 12},
		"ins123:GFP":     {kind: "ins", start: 123, end: 123, payload: "GFP"},
		"A123T":          {kind: "rep", start: 123, end: 123, payload: "T", declared: 'A'},
		"ins5GGS":        {kind: "ins", start: 5, end: 5, payload: "GGS"},
		"trunc100":       {kind: "trunc", start: 100, end: 100},
	}
	for raw, want := range cases {
		got, err := parseDirective(raw)
		if err != nil {
			t.Fatalf("parseDirective(%q): %v", raw, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("parseDirective(%q) = %+v, want %+v", raw, got, want)
		}
	}
}
