package world

import "fmt"

const (
	ActionTypeBuild        = "BUILD"
	ActionTypeDemolish     = "DEMOLISH"
	ActionTypeUndo         = "UNDO"
	ActionTypeRedo         = "REDO"
	ActionTypeAddFloors    = "ADD_FLOORS"
	ActionTypeAddBasements = "ADD_BASEMENTS"
	ActionTypeAddColumns   = "ADD_COLUMNS"
	ActionTypeBuildFloor   = "BUILD_FLOOR"
	ActionTypeAddShaft     = "ADD_SHAFT"
	ActionTypeSpawnPerson  = "SPAWN_PERSON"
	ActionTypeRaiseLimits  = "RAISE_LIMITS"
)

var supportedActionTypes = []string{
	ActionTypeBuild,
	ActionTypeDemolish,
	ActionTypeUndo,
	ActionTypeRedo,
	ActionTypeAddFloors,
	ActionTypeAddBasements,
	ActionTypeAddColumns,
	ActionTypeBuildFloor,
	ActionTypeAddShaft,
	ActionTypeSpawnPerson,
	ActionTypeRaiseLimits,
}

func validateActionDispatchMaps() error {
	return validateDispatchMap("actionDispatch", actionDispatch, supportedActionTypes)
}

func validateDispatchMap[T any](name string, handlers map[string]T, supported []string) error {
	allowed := make(map[string]struct{}, len(supported))
	for _, k := range supported {
		if k == "" {
			return fmt.Errorf("%s: empty supported key", name)
		}
		if _, ok := allowed[k]; ok {
			return fmt.Errorf("%s: duplicate supported key %q", name, k)
		}
		allowed[k] = struct{}{}
	}
	if len(handlers) != len(allowed) {
		return fmt.Errorf("%s size mismatch: got=%d want=%d", name, len(handlers), len(allowed))
	}
	for k := range handlers {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%s has unsupported key %q", name, k)
		}
	}
	for k := range allowed {
		if _, ok := handlers[k]; !ok {
			return fmt.Errorf("%s missing key %q", name, k)
		}
	}
	return nil
}
