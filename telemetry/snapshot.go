package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/ecosys/sim"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// compressedExt marks zstd-compressed snapshot files.
const compressedExt = ".zst"

// Snapshot holds a simulation state for inspection and archiving.
type Snapshot struct {
	Version int   `json:"version"`
	RNGSeed int64 `json:"rng_seed"`

	Time float64 `json:"time"`

	// Doc is the persisted-state document at Time.
	Doc sim.StateDoc `json:"doc"`

	Map        sim.MapInfo      `json:"map"`
	Population []sim.AnimalInfo `json:"population"`
	Lifetimes  []LifetimeStats  `json:"lifetimes,omitempty"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// NewSnapshot captures the simulator's current state.
func NewSnapshot(s *sim.Simulator, seed int64, bookmark *Bookmark) *Snapshot {
	return &Snapshot{
		Version:    SnapshotVersion,
		RNGSeed:    seed,
		Time:       s.Time(),
		Doc:        s.Dump(),
		Map:        s.Map(),
		Population: s.Population(),
		Bookmark:   bookmark,
	}
}

// SnapshotName returns the file name a snapshot is saved under.
func SnapshotName(snapshot *Snapshot, compress bool) string {
	// Milliseconds keep names unique and sortable.
	name := fmt.Sprintf("snapshot_%08d", int64(snapshot.Time*1000))
	if snapshot.Bookmark != nil {
		name += "_" + strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
	}
	name += ".json"
	if compress {
		name += compressedExt
	}
	return name
}

// SaveSnapshot writes a snapshot to dir, zstd-compressed if compress is
// set. Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string, compress bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, SnapshotName(snapshot, compress))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	if err := EncodeSnapshot(f, snapshot, compress); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// EncodeSnapshot writes snapshot as JSON, optionally zstd-compressed.
func EncodeSnapshot(w io.Writer, snapshot *Snapshot, compress bool) error {
	if !compress {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot); err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		return nil
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(zw, 256*1024)
	if err := json.NewEncoder(bw).Encode(snapshot); err != nil {
		zw.Close()
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader, compressed bool) (*Snapshot, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		r = bufio.NewReaderSize(zr, 256*1024)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// LoadSnapshot reads a snapshot from disk. Files ending in .zst are
// decompressed.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer f.Close()
	return DecodeSnapshot(f, strings.HasSuffix(path, compressedExt))
}
