package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Header is written as the first JSON line so tools can inspect a snapshot without
// decoding the body.
type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Bodies  int    `json:"bodies"`
	Blocks  int    `json:"blocks"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRateHz       int    `json:"tick_rate_hz"`
	MaterialsDigest  string `json:"materials_digest"`
	BlockTypesDigest string `json:"block_types_digest"`
	TuningDigest     string `json:"tuning_digest,omitempty"`

	NextEntityID uint64   `json:"next_entity_id"`
	Bodies       []BodyV1 `json:"bodies"`
}

// BodyV1 carries the durable rigid-body fields. Force/torque accumulators and the render
// interpolation pose are not persisted.
type BodyV1 struct {
	ID              uint64       `json:"id"`
	Pos             [3]float64   `json:"pos"`
	Vel             [3]float64   `json:"vel"`
	Rot             [3]float64   `json:"rot"`
	AngVel          [3]float64   `json:"ang_vel"`
	Mass            float64      `json:"mass"`
	Inertia         float64      `json:"inertia"`
	LinearDrag      float64      `json:"linear_drag"`
	AngularDrag     float64      `json:"angular_drag"`
	MaxThrust       float64      `json:"max_thrust"`
	MaxTorque       float64      `json:"max_torque"`
	CollisionRadius float64      `json:"collision_radius"`
	Static          bool         `json:"static,omitempty"`
	Structure       *StructureV1 `json:"structure,omitempty"`
}

type StructureV1 struct {
	NextBlockID uint32    `json:"next_block_id"`
	Blocks      []BlockV1 `json:"blocks"`
}

type BlockV1 struct {
	ID            uint32     `json:"id"`
	Pos           [3]float64 `json:"pos"`
	Size          [3]float64 `json:"size"`
	Material      uint8      `json:"material"`
	Type          uint8      `json:"type"`
	Shape         uint8      `json:"shape,omitempty"`
	Orientation   uint8      `json:"orientation,omitempty"`
	Durability    float64    `json:"durability"`
	MaxDurability float64    `json:"max_durability"`
}

// WriteSnapshot writes to a temp file and renames it into place.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	snap.Header.Version = Version
	snap.Header.Bodies = len(snap.Bodies)
	snap.Header.Blocks = 0
	for _, b := range snap.Bodies {
		if b.Structure != nil {
			snap.Header.Blocks += len(b.Structure.Blocks)
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err = bw.Write(hb); err != nil {
		return err
	}
	if err = bw.WriteByte('\n'); err != nil {
		return err
	}
	if err = json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = enc.Close(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("json decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

// Path returns the conventional location of the snapshot for tick under dir.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}
