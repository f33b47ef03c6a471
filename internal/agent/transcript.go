package agent

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
)

type TurnKind string

const (
	TurnUser      TurnKind = "user"
	TurnAssistant TurnKind = "assistant"
	TurnTool      TurnKind = "tool"
)

// TranscriptRecord is one conversation turn in the session's binary log.
// ContentHash is the blake3 digest of the msgpack-encoded Data, letting
// readers verify records and de-duplicate replays.
type TranscriptRecord struct {
	Kind        TurnKind       `msgpack:"kind"`
	TimestampMS int64          `msgpack:"timestamp_ms"`
	Data        map[string]any `msgpack:"data"`
	ContentHash string         `msgpack:"content_hash"`
}

// Transcript appends length-prefixed msgpack records to transcript.msgpack
// in the session directory. Purely best-effort: a transcript that cannot be
// opened or written never interferes with the conversation.
type Transcript struct {
	mu sync.Mutex
	f  *os.File
}

const transcriptName = "transcript.msgpack"

// OpenTranscript opens (appending) the session transcript. Returns a usable
// no-op Transcript when the file cannot be opened.
func OpenTranscript(sessionDir string) *Transcript {
	f, err := os.OpenFile(filepath.Join(sessionDir, transcriptName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &Transcript{}
	}
	return &Transcript{f: f}
}

// Record appends one turn. Failures are swallowed.
func (t *Transcript) Record(kind TurnKind, data map[string]any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return
	}
	payload, err := msgpack.Marshal(data)
	if err != nil {
		return
	}
	sum := blake3.Sum256(payload)
	rec := TranscriptRecord{
		Kind:        kind,
		TimestampMS: time.Now().UnixMilli(),
		Data:        data,
		ContentHash: fmt.Sprintf("%x", sum[:16]),
	}
	b, err := msgpack.Marshal(rec)
	if err != nil {
		return
	}
	var lenbuf [4]byte
	binary.BigEndian.PutUint32(lenbuf[:], uint32(len(b)))
	if _, err := t.f.Write(lenbuf[:]); err != nil {
		return
	}
	_, _ = t.f.Write(b)
}

func (t *Transcript) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f != nil {
		_ = t.f.Close()
		t.f = nil
	}
}

// ReadTranscript decodes all records from a session's transcript log.
func ReadTranscript(sessionDir string) ([]TranscriptRecord, error) {
	b, err := os.ReadFile(filepath.Join(sessionDir, transcriptName))
	if err != nil {
		return nil, err
	}
	var out []TranscriptRecord
	for len(b) >= 4 {
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < n {
			return out, fmt.Errorf("truncated transcript record")
		}
		var rec TranscriptRecord
		if err := msgpack.Unmarshal(b[:n], &rec); err != nil {
			return out, fmt.Errorf("decode transcript record: %w", err)
		}
		out = append(out, rec)
		b = b[n:]
	}
	return out, nil
}
