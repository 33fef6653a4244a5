package eventlog

import (
	"io"
	"os"
	"strings"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

// Tailer incrementally reads new lines from an append-only log file,
// tracking a byte offset and resetting it on truncation/rotation (§4.1).
// Reads are single-shot per call with no mid-read re-stat; a failed read
// leaves the offset unchanged, preserving offset monotonicity (§8).
type Tailer struct {
	path   string
	offset int64
}

// NewTailer returns a Tailer positioned at offset 0.
func NewTailer(path string) *Tailer {
	return &Tailer{path: path}
}

// Offset returns the current byte offset.
func (t *Tailer) Offset() int64 { return t.offset }

// SetOffset sets the stored byte offset; the next Poll reads from there.
func (t *Tailer) SetOffset(off int64) { t.offset = off }

// ReadAll returns every parsed entry in the file and sets the offset to
// end-of-file, per the daemon's normal-mode startup (§4.8).
func (t *Tailer) ReadAll() []domain.Event {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return nil
	}
	t.offset = int64(len(data))
	return parseLines(data)
}

// Poll reads only bytes past the stored offset and advances it. On
// truncation (current size < offset) the offset resets to zero and this
// same poll reads the rotated file from its start.
func (t *Tailer) Poll() []domain.Event {
	info, err := os.Stat(t.path)
	if err != nil {
		return nil
	}
	size := info.Size()
	if size < t.offset {
		t.offset = 0
	}
	if size == t.offset {
		return nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil
	}

	t.offset += int64(len(data))
	return parseLines(data)
}

func parseLines(data []byte) []domain.Event {
	text := strings.ToValidUTF8(string(data), replacementChar)
	var out []domain.Event
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ev, ok := Parse(line); ok {
			out = append(out, ev)
		}
	}
	return out
}

const replacementChar = "�"
