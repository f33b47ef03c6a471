package tools

import (
	"math"
	"strings"
	"testing"
)

func TestCleanSequence(t *testing.T) {
	seq, err := CleanSequence("mkl v\nw")
	if err != nil {
		t.Fatalf("CleanSequence: %v", err)
	}
	if seq != "MKLVW" {
		t.Fatalf("seq = %q", seq)
	}
	if _, err := CleanSequence("MKXZ"); err == nil {
		t.Fatalf("expected invalid-residue error")
	}
	if _, err := CleanSequence("  "); err == nil {
		t.Fatalf("expected empty-sequence error")
	}
}

func TestGRAVY(t *testing.T) {
	// A=1.8, G=-0.4.
	got := GRAVY("AG")
	if math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("GRAVY(AG) = %f", got)
	}
	if GRAVY("") != 0 {
		t.Fatalf("GRAVY of empty sequence")
	}
}

func TestIsoelectricPoint(t *testing.T) {
	// Glycine has no ionizable side chains; pI is the midpoint of the
	// terminal pK values (7.5 and 3.55).
	pi := IsoelectricPoint("G")
	if math.Abs(pi-5.525) > 0.01 {
		t.Fatalf("pI(G) = %f", pi)
	}
	// Lysine-rich sequences are basic, aspartate-rich acidic.
	if IsoelectricPoint("GKKKK") <= IsoelectricPoint("G") {
		t.Fatalf("lysine did not raise pI")
	}
	if IsoelectricPoint("GDDDD") >= IsoelectricPoint("G") {
		t.Fatalf("aspartate did not lower pI")
	}
}

func TestCompareSolubility_Verdicts(t *testing.T) {
	// Mutant swaps hydrophilic D for hydrophobic I: GRAVY rises, verdict is
	// decreased solubility.
	cmp, err := CompareSolubility("MKDDD", "MKDDI")
	if err != nil {
		t.Fatalf("CompareSolubility: %v", err)
	}
	if cmp.DeltaGravy() <= 0 {
		t.Fatalf("delta GRAVY = %f", cmp.DeltaGravy())
	}
	report := cmp.Report()
	if !strings.Contains(report, "decreased solubility (more hydrophobic)") {
		t.Fatalf("report:\n%s", report)
	}
	if !strings.Contains(report, "=== Protein Comparison: Wild-Type vs Mutant ===") {
		t.Fatalf("report header missing:\n%s", report)
	}

	cmp, err = CompareSolubility("MKDDI", "MKDDD")
	if err != nil {
		t.Fatalf("CompareSolubility: %v", err)
	}
	if !strings.Contains(cmp.Report(), "increased solubility (more hydrophilic)") {
		t.Fatalf("report:\n%s", cmp.Report())
	}

	cmp, err = CompareSolubility("MKDDD", "MKDDD")
	if err != nil {
		t.Fatalf("CompareSolubility: %v", err)
	}
	if !strings.Contains(cmp.Report(), "no significant change in solubility") {
		t.Fatalf("report:\n%s", cmp.Report())
	}
}

func TestCompareSolubility_InvalidSequence(t *testing.T) {
	if _, err := CompareSolubility("MKX", "MK"); err == nil {
		t.Fatalf("expected wild-type validation error")
	}
	if _, err := CompareSolubility("MK", "MKX"); err == nil {
		t.Fatalf("expected mutant validation error")
	}
}
