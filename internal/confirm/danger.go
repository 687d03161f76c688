package confirm

// DangerLevel is a human-readable classification used purely for rendering
// confirmation screens. Gating is caller-driven.
type DangerLevel string

const (
	DangerLow    DangerLevel = "low"
	DangerMedium DangerLevel = "medium"
	DangerHigh   DangerLevel = "high"
)

// DangerInfo carries the warning text shown on a confirmation screen.
type DangerInfo struct {
	Level   DangerLevel
	Warning string
}

var dangerTable = map[string]DangerInfo{
	"container:stop":    {Level: DangerMedium, Warning: "The container will stop serving traffic until started again."},
	"container:restart": {Level: DangerMedium, Warning: "The container will briefly go down while restarting."},
	"container:rebuild": {Level: DangerHigh, Warning: "The image will be rebuilt and the container recreated. This can take several minutes."},
	"terminal:execute":  {Level: DangerHigh, Warning: "The command runs directly on the host shell."},
}

// Danger returns rendering info for an action identifier. Unknown actions
// get a low-danger default.
func Danger(action string) DangerInfo {
	if info, ok := dangerTable[action]; ok {
		return info
	}
	return DangerInfo{Level: DangerLow, Warning: "Please confirm this action."}
}
