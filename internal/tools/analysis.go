package tools

import (
	"fmt"
	"math"
	"strings"
)

// Kyte-Doolittle hydropathy values per residue.
var hydropathy = map[byte]float64{
	'A': 1.8, 'R': -4.5, 'N': -3.5, 'D': -3.5, 'C': 2.5,
	'Q': -3.5, 'E': -3.5, 'G': -0.4, 'H': -3.2, 'I': 4.5,
	'L': 3.8, 'K': -3.9, 'M': 1.9, 'F': 2.8, 'P': -1.6,
	'S': -0.8, 'T': -0.7, 'W': -0.9, 'Y': -1.3, 'V': 4.2,
}

// Bjellqvist pK values for ionizable groups.
var (
	positivePK = map[string]float64{"Nterm": 7.5, "K": 10.0, "R": 12.0, "H": 5.98}
	negativePK = map[string]float64{"Cterm": 3.55, "D": 4.05, "E": 4.45, "C": 9.0, "Y": 10.0}
)

// CleanSequence uppercases and strips non-letters, then verifies every
// residue is one of the twenty standard amino acids.
func CleanSequence(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	seq := b.String()
	var bad []string
	seen := map[byte]bool{}
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		if _, ok := hydropathy[c]; !ok && !seen[c] {
			seen[c] = true
			bad = append(bad, string(c))
		}
	}
	if len(bad) > 0 {
		return "", fmt.Errorf("invalid amino acids in sequence: %s", strings.Join(bad, ", "))
	}
	if seq == "" {
		return "", fmt.Errorf("empty sequence")
	}
	return seq, nil
}

// GRAVY computes the grand average of hydropathy.
func GRAVY(seq string) float64 {
	if len(seq) == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(seq); i++ {
		sum += hydropathy[seq[i]]
	}
	return sum / float64(len(seq))
}

// IsoelectricPoint estimates the pH at which the protein's net charge is
// zero, by bisection over pH 0..14.
func IsoelectricPoint(seq string) float64 {
	counts := map[string]int{}
	for i := 0; i < len(seq); i++ {
		counts[string(seq[i])]++
	}
	lo, hi := 0.0, 14.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if chargeAtPH(counts, mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < 1e-4 {
			break
		}
	}
	return (lo + hi) / 2
}

func chargeAtPH(counts map[string]int, ph float64) float64 {
	var charge float64
	for group, pk := range positivePK {
		n := 1
		if group != "Nterm" {
			n = counts[group]
		}
		charge += float64(n) / (1 + math.Pow(10, ph-pk))
	}
	for group, pk := range negativePK {
		n := 1
		if group != "Cterm" {
			n = counts[group]
		}
		charge -= float64(n) / (1 + math.Pow(10, pk-ph))
	}
	return charge
}

// SolubilityComparison holds GRAVY and pI metrics for a wild-type/mutant
// pair.
type SolubilityComparison struct {
	WTGravy, MutGravy float64
	WTPI, MutPI       float64
}

func (c SolubilityComparison) DeltaGravy() float64 { return c.MutGravy - c.WTGravy }
func (c SolubilityComparison) DeltaPI() float64    { return c.MutPI - c.WTPI }

// CompareSolubility computes GRAVY and pI for both sequences.
func CompareSolubility(wtSeq, mutSeq string) (SolubilityComparison, error) {
	wt, err := CleanSequence(wtSeq)
	if err != nil {
		return SolubilityComparison{}, fmt.Errorf("wild-type: %w", err)
	}
	mu, err := CleanSequence(mutSeq)
	if err != nil {
		return SolubilityComparison{}, fmt.Errorf("mutant: %w", err)
	}
	return SolubilityComparison{
		WTGravy:  GRAVY(wt),
		MutGravy: GRAVY(mu),
		WTPI:     IsoelectricPoint(wt),
		MutPI:    IsoelectricPoint(mu),
	}, nil
}

const solubilityTolerance = 0.001

// Report renders the comparison the way the saved artifact presents it.
func (c SolubilityComparison) Report() string {
	var verdict string
	switch d := c.DeltaGravy(); {
	case d > solubilityTolerance:
		verdict = "decreased solubility (more hydrophobic)"
	case d < -solubilityTolerance:
		verdict = "increased solubility (more hydrophilic)"
	default:
		verdict = "no significant change in solubility"
	}
	lines := []string{
		"=== Protein Comparison: Wild-Type vs Mutant ===",
		fmt.Sprintf("Wild-type - GRAVY: %.3f, pI: %.2f", c.WTGravy, c.WTPI),
		fmt.Sprintf("Mutant    - GRAVY: %.3f, pI: %.2f", c.MutGravy, c.MutPI),
		fmt.Sprintf("dGRAVY (mut - wt): %+.3f -> %s", c.DeltaGravy(), verdict),
		fmt.Sprintf("dpI (mut - wt): %+.2f", c.DeltaPI()),
	}
	return strings.Join(lines, "\n")
}
