package world

import "skyrise.dev/internal/protocol"

type actionHandler func(*World, *clientState, protocol.ActionReq, uint64)

var actionDispatch = map[string]actionHandler{
	ActionTypeBuild:        handleActionBuild,
	ActionTypeDemolish:     handleActionDemolish,
	ActionTypeUndo:         handleActionUndo,
	ActionTypeRedo:         handleActionRedo,
	ActionTypeAddFloors:    handleActionAddFloors,
	ActionTypeAddBasements: handleActionAddBasements,
	ActionTypeAddColumns:   handleActionAddColumns,
	ActionTypeBuildFloor:   handleActionBuildFloor,
	ActionTypeAddShaft:     handleActionAddShaft,
	ActionTypeSpawnPerson:  handleActionSpawnPerson,
	ActionTypeRaiseLimits:  handleActionRaiseLimits,
}
