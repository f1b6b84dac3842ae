package protocol

const (
	// Request/action validation.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrUnknownType = "E_UNKNOWN_TYPE"

	// Placement and grid geometry.
	ErrInvalidPosition = "E_INVALID_POSITION"
	ErrSpaceOccupied   = "E_SPACE_OCCUPIED"
	ErrEdgeOccupied    = "E_EDGE_OCCUPIED"
	ErrLimitReached    = "E_LIMIT_REACHED"

	// Economy and command history.
	ErrNoFunds       = "E_NO_FUNDS"
	ErrNothingToUndo = "E_NOTHING_TO_UNDO"
	ErrNothingToRedo = "E_NOTHING_TO_REDO"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:      {},
	ErrUnknownType:     {},
	ErrInvalidPosition: {},
	ErrSpaceOccupied:   {},
	ErrEdgeOccupied:    {},
	ErrLimitReached:    {},
	ErrNoFunds:         {},
	ErrNothingToUndo:   {},
	ErrNothingToRedo:   {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
