// Package tools implements the bioinformatics tools exposed to the model:
// gene normalization, protein mutation, sequence analysis, UniProt lookups,
// and artifact registry helpers. Each tool is wired into the dispatcher via
// BuildRegistry.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"
)

// FASTARecord is a single-sequence FASTA file: one header line and the
// concatenated sequence.
type FASTARecord struct {
	Header   string // without the leading ">"
	Sequence string
}

// ParseFASTA parses a single-record FASTA string. Blank lines are skipped;
// sequence lines are concatenated verbatim.
func ParseFASTA(data string) (FASTARecord, error) {
	var rec FASTARecord
	lines := strings.Split(data, "\n")
	seen := false
	var seq strings.Builder
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ">") {
			if seen {
				return rec, fmt.Errorf("multiple FASTA records; expected one")
			}
			seen = true
			rec.Header = strings.TrimPrefix(trimmed, ">")
			continue
		}
		if !seen {
			return rec, fmt.Errorf("missing FASTA header line")
		}
		seq.WriteString(trimmed)
	}
	if !seen {
		return rec, fmt.Errorf("missing FASTA header line")
	}
	rec.Sequence = seq.String()
	return rec, nil
}

// ReadFASTA reads a single-record FASTA file.
func ReadFASTA(path string) (FASTARecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FASTARecord{}, err
	}
	rec, err := ParseFASTA(string(b))
	if err != nil {
		return FASTARecord{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// WriteFASTA writes a single-record FASTA file, wrapping the sequence at 60
// columns.
func WriteFASTA(path string, rec FASTARecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteByte('>')
	b.WriteString(rec.Header)
	b.WriteByte('\n')
	seq := rec.Sequence
	for len(seq) > 60 {
		b.WriteString(seq[:60])
		b.WriteByte('\n')
		seq = seq[60:]
	}
	if seq != "" {
		b.WriteString(seq)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// resolveInputPath maps a tool-supplied file reference onto a readable path:
// artifact id or label first, then a literal path, then a path relative to
// the session directory.
func resolveInputPath(sess *artifacts.Session, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("no input file given")
	}
	if p, ok := sess.Store.Resolve(ref); ok {
		return p, nil
	}
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	rel := filepath.Join(sess.Dir, ref)
	if _, err := os.Stat(rel); err == nil {
		return rel, nil
	}
	return "", fmt.Errorf("file not found: %s", ref)
}
