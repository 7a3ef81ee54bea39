package protocol

// Command names carried in CmdMsg.Cmd.
const (
	CmdSpawn       = "SPAWN"
	CmdDespawn     = "DESPAWN"
	CmdThrust      = "THRUST"
	CmdRotate      = "ROTATE"
	CmdDamage      = "DAMAGE"
	CmdAddBlock    = "ADD_BLOCK"
	CmdRemoveBlock = "REMOVE_BLOCK"
)

// CMD (client -> server). Fields used depend on Cmd.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Cmd             string `json:"cmd"`
	EntityID        uint64 `json:"entity_id,omitempty"`

	// THRUST / ROTATE
	Direction [3]float64 `json:"direction"`
	Axis      [3]float64 `json:"axis"`
	Magnitude float64    `json:"magnitude,omitempty"`

	// DAMAGE (point is structure-local)
	Point  [3]float64 `json:"point"`
	Radius float64    `json:"radius,omitempty"`
	Damage float64    `json:"damage,omitempty"`

	// ADD_BLOCK / REMOVE_BLOCK
	Block   *BlockSpec `json:"block,omitempty"`
	BlockID uint32     `json:"block_id,omitempty"`

	// SPAWN
	Pos    [3]float64  `json:"pos"`
	Vel    [3]float64  `json:"vel"`
	Static bool        `json:"static,omitempty"`
	Blocks []BlockSpec `json:"blocks,omitempty"`
}

type BlockSpec struct {
	Pos         [3]float64 `json:"pos"`
	Size        [3]float64 `json:"size"`
	Material    string     `json:"material"`
	BlockType   string     `json:"block_type"`
	Shape       uint8      `json:"shape,omitempty"`
	Orientation uint8      `json:"orientation,omitempty"`
}

// TICK (server -> client), one per simulated tick.
type TickMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Tick            uint64           `json:"tick"`
	Digest          string           `json:"digest"`
	Bodies          []BodyState      `json:"bodies"`
	Collisions      []CollisionState `json:"collisions,omitempty"`
	Destroyed       []DestroyedBlock `json:"destroyed,omitempty"`
}

type BodyState struct {
	ID        uint64     `json:"id"`
	Pos       [3]float64 `json:"pos"`
	Vel       [3]float64 `json:"vel"`
	Rot       [3]float64 `json:"rot"`
	Mass      float64    `json:"mass"`
	Static    bool       `json:"static,omitempty"`
	Blocks    int        `json:"blocks,omitempty"`
	Integrity float64    `json:"integrity,omitempty"`
}

type CollisionState struct {
	A       uint64     `json:"a"`
	B       uint64     `json:"b"`
	Point   [3]float64 `json:"point"`
	Normal  [3]float64 `json:"normal"`
	Depth   float64    `json:"depth"`
	Impulse float64    `json:"impulse"`
}

type DestroyedBlock struct {
	EntityID  uint64     `json:"entity_id"`
	BlockID   uint32     `json:"block_id"`
	BlockType string     `json:"block_type,omitempty"`
	Pos       [3]float64 `json:"pos"`
}
