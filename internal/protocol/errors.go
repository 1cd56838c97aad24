package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrAuth            = "E_AUTH"

	// Command layer.
	ErrUnknownCommand = "E_UNKNOWN_COMMAND"
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrNoPermission   = "E_NO_PERMISSION"
	ErrNotFound       = "E_NOT_FOUND"
	ErrConflict       = "E_CONFLICT"
	ErrBusy           = "E_BUSY"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrAuth:            {},
	ErrUnknownCommand:  {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
