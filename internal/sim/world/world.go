package world

import (
	"fmt"
	"sync/atomic"

	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/catalogs"
	"subspace.dev/internal/sim/physics"
	"subspace.dev/internal/sim/tuning"
	"subspace.dev/internal/sim/voxel"
)

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int
	MaxCommandsPerTick int
	TuningDigest       string

	Physics  tuning.Physics
	Defaults tuning.BodyDefaults
}

// ConfigFromTuning builds a world config from loaded tuning.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		MaxCommandsPerTick: t.MaxCommandsPerTick,
		TuningDigest:       t.Digest(),
		Physics:            t.Physics,
		Defaults:           t.Defaults,
	}
}

type JoinRequest struct {
	Name string
	// Entities to include in TICK messages; empty means all.
	Watch []uint64
	Out   chan []byte
	Resp  chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// CommandEnvelope is one client command queued for the next tick.
type CommandEnvelope struct {
	SessionID string
	Cmd       protocol.CmdMsg
}

// Entity pairs a body with its optional voxel structure.
type Entity struct {
	ID        physics.EntityID
	Body      *physics.RigidBody
	Structure *voxel.Structure
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	blocks   *voxel.Catalog
	physics  *physics.System

	tick atomic.Uint64

	entities     map[physics.EntityID]*Entity
	ids          []physics.EntityID // ascending
	nextEntityID uint64

	clients       map[string]*clientState
	nextSessionID uint64

	inbox chan CommandEnvelope
	join  chan JoinRequest
	leave chan string
	admin chan snapshotRequest
	stop  chan struct{}

	// Per-tick scratch, reset at the start of every step.
	collisions []physics.CollisionEvent
	destroyed  []DestroyedBlock
	acks       []CommandResult

	// Optional loggers (may be nil). Implemented in internal/persistence/log.
	tickLogger      TickLogger
	collisionLogger CollisionLogger

	// Optional snapshot sink (may be nil). Snapshot writing happens off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	lastStep        StepResult
	collisionsTotal uint64
	destroyedTotal  uint64
	commandsTotal   uint64
	rejectsTotal    uint64
	metrics         atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type CollisionLogger interface {
	WriteCollision(entry CollisionLogEntry) error
}

// TickLogEntry is the replay record of one tick: the commands applied, in order, and the
// digest of the resulting state.
type TickLogEntry struct {
	Tick      uint64            `json:"tick"`
	Joins     []string          `json:"joins,omitempty"`
	Leaves    []string          `json:"leaves,omitempty"`
	Commands  []RecordedCommand `json:"commands,omitempty"`
	Destroyed []DestroyedBlock  `json:"destroyed,omitempty"`
	Digest    string            `json:"digest"`
}

type RecordedCommand struct {
	SessionID string          `json:"session_id,omitempty"`
	Cmd       protocol.CmdMsg `json:"cmd"`
}

type CollisionLogEntry struct {
	Tick    uint64     `json:"tick"`
	A       uint64     `json:"a"`
	B       uint64     `json:"b"`
	Point   [3]float64 `json:"point"`
	Normal  [3]float64 `json:"normal"`
	Depth   float64    `json:"depth"`
	Impulse float64    `json:"impulse"`
}

type DestroyedBlock = protocol.DestroyedBlock

type clientState struct {
	Name  string
	Out   chan []byte
	Watch map[uint64]struct{}
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0 (got %d)", cfg.TickRateHz)
	}
	def := tuning.Defaults()
	if cfg.MaxCommandsPerTick <= 0 {
		cfg.MaxCommandsPerTick = def.MaxCommandsPerTick
	}
	if cfg.Physics == (tuning.Physics{}) {
		cfg.Physics = def.Physics
	}
	if cfg.Defaults == (tuning.BodyDefaults{}) {
		cfg.Defaults = def.Defaults
	}

	w := &World{
		cfg:          cfg,
		catalogs:     cats,
		blocks:       voxel.DefaultCatalog(),
		entities:     map[physics.EntityID]*Entity{},
		clients:      map[string]*clientState{},
		nextEntityID: 1,
		inbox:        make(chan CommandEnvelope, 4096),
		join:         make(chan JoinRequest, 64),
		leave:        make(chan string, 64),
		admin:        make(chan snapshotRequest, 8),
		stop:         make(chan struct{}),
	}
	if cats != nil {
		w.blocks = cats.Voxel()
	}

	w.physics = physics.NewSystem(cfg.Physics.CellSize, w)
	w.physics.Resolver.Restitution = cfg.Physics.Restitution
	w.physics.Integrator.MaxVelocity = cfg.Physics.MaxVelocity
	w.physics.Integrator.MaxAngularVelocity = cfg.Physics.MaxAngularVelocity
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetCollisionLogger(l CollisionLogger)          { w.collisionLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Leave() chan<- string          { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

// Config returns the effective configuration after defaults were applied.
func (w *World) Config() WorldConfig { return w.cfg }

// BlockCatalog is the catalog new and restored blocks are derived from.
func (w *World) BlockCatalog() *voxel.Catalog { return w.blocks }

func (w *World) catalogDigests() protocol.CatalogDigests {
	if w.catalogs == nil {
		return protocol.CatalogDigests{}
	}
	return protocol.CatalogDigests{
		MaterialsDigest:  w.catalogs.Materials.Digest,
		BlockTypesDigest: w.catalogs.BlockTypes.Digest,
	}
}
