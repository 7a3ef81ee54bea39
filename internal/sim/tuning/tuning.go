package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	// Commands queued beyond this per tick are rejected with E_RATE_LIMIT.
	MaxCommandsPerTick int `yaml:"max_commands_per_tick"`

	Physics  Physics      `yaml:"physics"`
	Defaults BodyDefaults `yaml:"defaults"`
}

type Physics struct {
	CellSize           float64 `yaml:"cell_size"`
	Restitution        float64 `yaml:"restitution"`
	MaxVelocity        float64 `yaml:"max_velocity"`
	MaxAngularVelocity float64 `yaml:"max_angular_velocity"`
}

// BodyDefaults seed bodies spawned without explicit values.
type BodyDefaults struct {
	Mass            float64 `yaml:"mass"`
	LinearDrag      float64 `yaml:"linear_drag"`
	AngularDrag     float64 `yaml:"angular_drag"`
	MaxThrust       float64 `yaml:"max_thrust"`
	MaxTorque       float64 `yaml:"max_torque"`
	CollisionRadius float64 `yaml:"collision_radius"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         60,
		SnapshotEveryTicks: 3600,
		MaxCommandsPerTick: 256,
		Physics: Physics{
			CellSize:           50,
			Restitution:        0.5,
			MaxVelocity:        1000,
			MaxAngularVelocity: 10,
		},
		Defaults: BodyDefaults{
			Mass:            1000,
			LinearDrag:      0.5,
			AngularDrag:     0.5,
			MaxThrust:       50000,
			MaxTorque:       10000,
			CollisionRadius: 5,
		},
	}
}

// Load overlays path onto Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate_hz must be > 0 (got %d)", t.TickRateHz))
	}
	if t.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("snapshot_every_ticks must be >= 0 (got %d)", t.SnapshotEveryTicks))
	}
	if t.MaxCommandsPerTick <= 0 {
		errs = append(errs, fmt.Errorf("max_commands_per_tick must be > 0 (got %d)", t.MaxCommandsPerTick))
	}
	p := t.Physics
	if !(p.CellSize > 0) || math.IsInf(p.CellSize, 0) {
		errs = append(errs, fmt.Errorf("physics.cell_size must be > 0 (got %v)", p.CellSize))
	}
	if !(p.Restitution >= 0 && p.Restitution <= 1) {
		errs = append(errs, fmt.Errorf("physics.restitution must be in [0,1] (got %v)", p.Restitution))
	}
	if p.MaxVelocity < 0 || p.MaxAngularVelocity < 0 {
		errs = append(errs, errors.New("physics velocity limits must be >= 0"))
	}
	d := t.Defaults
	if !(d.Mass > 0) {
		errs = append(errs, fmt.Errorf("defaults.mass must be > 0 (got %v)", d.Mass))
	}
	if d.LinearDrag < 0 || d.AngularDrag < 0 {
		errs = append(errs, errors.New("defaults drag must be >= 0"))
	}
	if d.MaxThrust < 0 || d.MaxTorque < 0 || d.CollisionRadius < 0 {
		errs = append(errs, errors.New("defaults thrust, torque and radius must be >= 0"))
	}
	return errors.Join(errs...)
}

// TickDuration is the nominal step in seconds.
func (t Tuning) TickDuration() float64 {
	if t.TickRateHz <= 0 {
		return 0
	}
	return 1 / float64(t.TickRateHz)
}

// Digest identifies the effective values; snapshots record it so a resumed world can tell
// when it runs under different physics.
func (t Tuning) Digest() string {
	b, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
