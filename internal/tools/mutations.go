package tools

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Point mutation helpers. Positions are 1-based throughout (UniProt
// convention).

func replaceResidue(seq string, pos int, newAA string) (string, byte, error) {
	idx := pos - 1
	if idx < 0 || idx >= len(seq) {
		return "", 0, fmt.Errorf("position %d out of range for sequence length %d", pos, len(seq))
	}
	old := seq[idx]
	return seq[:idx] + newAA + seq[idx+1:], old, nil
}

func deleteRange(seq string, start, end int) (string, string, error) {
	if start < 1 || end > len(seq) || start > end {
		return "", "", fmt.Errorf("invalid range %d-%d for sequence length %d", start, end, len(seq))
	}
	removed := seq[start-1 : end]
	return seq[:start-1] + seq[end:], removed, nil
}

func replaceRange(seq string, start, end int, payload string) (string, string, error) {
	if start < 1 || end > len(seq) || start > end {
		return "", "", fmt.Errorf("invalid range %d-%d for sequence length %d", start, end, len(seq))
	}
	old := seq[start-1 : end]
	return seq[:start-1] + payload + seq[end:], old, nil
}

func insertAfter(seq string, pos int, ins string) (string, error) {
	if pos < 0 || pos > len(seq) {
		return "", fmt.Errorf("insert position %d invalid for sequence length %d", pos, len(seq))
	}
	return seq[:pos] + ins + seq[pos:], nil
}

func truncateAt(seq string, pos int) (string, error) {
	if pos < 1 || pos > len(seq) {
		return "", fmt.Errorf("position %d out of range for sequence length %d", pos, len(seq))
	}
	return seq[:pos], nil
}

// mutationDirective is one parsed edit from the directive grammar:
//
//	rep123:V       replace residue 123 with 'V'
//	rep120-125:GFP replace residues 120..125 with "GFP"
//	del123         delete residue 123
//	del120-125     delete residues 120..125 inclusive
//	ins123:GFP     insert "GFP" after residue 123
//
// plus the shorthand forms:
//
//	A123T      replace residue 123 (declared as 'A') with 'T'
//	ins5GGS    insert "GGS" after residue 5
//	trunc100   keep residues 1..100
type mutationDirective struct {
	kind     string // rep, del, ins, trunc
	start    int
	end      int
	payload  string // replacement / insertion residues
	declared byte   // A123T form only: residue the directive claims is present
}

var (
	reReplace      = regexp.MustCompile(`^([A-Z])(\d+)([A-Z])$`)
	reReplacePos   = regexp.MustCompile(`^rep(\d+):([A-Z]+)$`)
	reReplaceRange = regexp.MustCompile(`^rep(\d+)-(\d+):([A-Z]+)$`)
	reDelete       = regexp.MustCompile(`^del(\d+)(?:-(\d+))?$`)
	reInsert       = regexp.MustCompile(`^ins(\d+):?([A-Z]+)$`)
	reTruncate     = regexp.MustCompile(`^trunc(\d+)$`)
)

func parseDirective(raw string) (mutationDirective, error) {
	m := strings.TrimSpace(raw)
	if g := reReplace.FindStringSubmatch(m); g != nil {
		pos, _ := strconv.Atoi(g[2])
		return mutationDirective{kind: "rep", start: pos, end: pos, payload: g[3], declared: g[1][0]}, nil
	}
	if g := reReplacePos.FindStringSubmatch(m); g != nil {
		pos, _ := strconv.Atoi(g[1])
		return mutationDirective{kind: "rep", start: pos, end: pos, payload: g[2]}, nil
	}
	if g := reReplaceRange.FindStringSubmatch(m); g != nil {
		start, _ := strconv.Atoi(g[1])
		end, _ := strconv.Atoi(g[2])
		return mutationDirective{kind: "rep", start: start, end: end, payload: g[3]}, nil
	}
	if g := reDelete.FindStringSubmatch(m); g != nil {
		start, _ := strconv.Atoi(g[1])
		end := start
		if g[2] != "" {
			end, _ = strconv.Atoi(g[2])
		}
		return mutationDirective{kind: "del", start: start, end: end}, nil
	}
	if g := reInsert.FindStringSubmatch(m); g != nil {
		pos, _ := strconv.Atoi(g[1])
		return mutationDirective{kind: "ins", start: pos, end: pos, payload: g[2]}, nil
	}
	if g := reTruncate.FindStringSubmatch(m); g != nil {
		pos, _ := strconv.Atoi(g[1])
		return mutationDirective{kind: "trunc", start: pos, end: pos}, nil
	}
	return mutationDirective{}, fmt.Errorf("unsupported mutation format: %q", raw)
}

// ApplyMutations applies a directive list to a protein sequence and returns
// the mutated sequence plus a per-edit report line list. Edits are applied
// right to left so earlier positions stay valid.
func ApplyMutations(seq string, directives []string) (string, []string, error) {
	parsed := make([]mutationDirective, 0, len(directives))
	for _, d := range directives {
		if strings.TrimSpace(d) == "" {
			continue
		}
		p, err := parseDirective(d)
		if err != nil {
			return "", nil, err
		}
		parsed = append(parsed, p)
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].start > parsed[j].start })

	var report []string
	for _, d := range parsed {
		switch d.kind {
		case "rep":
			if d.start == d.end {
				mutated, old, err := replaceResidue(seq, d.start, d.payload)
				if err != nil {
					return "", nil, err
				}
				line := fmt.Sprintf("REPLACE: pos %d '%c' -> '%s'", d.start, old, d.payload)
				if d.declared != 0 && old != d.declared {
					line += fmt.Sprintf(" (directive declared '%c')", d.declared)
				}
				report = append(report, line)
				seq = mutated
			} else {
				mutated, old, err := replaceRange(seq, d.start, d.end, d.payload)
				if err != nil {
					return "", nil, err
				}
				report = append(report, fmt.Sprintf("REPLACE RANGE: %d-%d '%s' -> '%s'", d.start, d.end, old, d.payload))
				seq = mutated
			}
		case "del":
			mutated, removed, err := deleteRange(seq, d.start, d.end)
			if err != nil {
				return "", nil, err
			}
			if d.start == d.end {
				report = append(report, fmt.Sprintf("DELETE: pos %d '%s' removed", d.start, removed))
			} else {
				report = append(report, fmt.Sprintf("DELETE RANGE: %d-%d '%s' removed", d.start, d.end, removed))
			}
			seq = mutated
		case "ins":
			mutated, err := insertAfter(seq, d.start, d.payload)
			if err != nil {
				return "", nil, err
			}
			report = append(report, fmt.Sprintf("INSERT: after %d added '%s'", d.start, d.payload))
			seq = mutated
		case "trunc":
			mutated, err := truncateAt(seq, d.start)
			if err != nil {
				return "", nil, err
			}
			report = append(report, fmt.Sprintf("TRUNCATE: kept 1-%d", d.start))
			seq = mutated
		}
	}
	return seq, report, nil
}
