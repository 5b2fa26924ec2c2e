package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Game/score layer.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrNotFinished = "E_NOT_FINISHED"
	ErrStale       = "E_STALE"
	ErrConflict    = "E_CONFLICT"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrNotFinished:     {},
	ErrStale:           {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
