package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// Restricts TICK bodies to these entities. Empty means all.
	Watch []uint64 `json:"watch,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz  int     `json:"tick_rate_hz"`
	CellSize    float64 `json:"cell_size"`
	Restitution float64 `json:"restitution"`
	MaxVelocity float64 `json:"max_velocity"`
}

type CatalogDigests struct {
	MaterialsDigest  string `json:"materials_digest"`
	BlockTypesDigest string `json:"block_types_digest"`
}

// ACK (server -> client) answers one CMD by id.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Tick            uint64 `json:"tick,omitempty"`
	OK              bool   `json:"ok"`
	EntityID        uint64 `json:"entity_id,omitempty"`
	BlockID         uint32 `json:"block_id,omitempty"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

func NewAck(id string, tick uint64) AckMsg {
	return AckMsg{Type: TypeAck, ProtocolVersion: Version, ID: id, Tick: tick, OK: true}
}

func NewReject(id string, tick uint64, code, message string) AckMsg {
	return AckMsg{Type: TypeAck, ProtocolVersion: Version, ID: id, Tick: tick, Code: code, Message: message}
}
