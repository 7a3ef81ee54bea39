package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownEntity = "E_UNKNOWN_ENTITY"
	ErrUnknownBlock  = "E_UNKNOWN_BLOCK"
	ErrStaticBody    = "E_STATIC_BODY"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrWorldBusy     = "E_WORLD_BUSY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrUnknownEntity:   {},
	ErrUnknownBlock:    {},
	ErrStaticBody:      {},
	ErrRateLimit:       {},
	ErrWorldBusy:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
