package supervisor

// State is the supervisor's lifecycle state. Transitions only move forward
// except for MONITORING, which loops until a signal or a fatal backend
// failure.
type State string

const (
	StateInit                 State = "init"
	StateStartingBackend      State = "starting_backend"
	StateWaitingBackendReady  State = "waiting_backend_ready"
	StateStartingFrontend     State = "starting_frontend"
	StateWaitingFrontendReady State = "waiting_frontend_ready"
	StateMonitoring           State = "monitoring"
	StateShuttingDown         State = "shutting_down"
	StateStopped              State = "stopped"
)

func (s State) String() string { return string(s) }

var allStates = []State{
	StateInit,
	StateStartingBackend,
	StateWaitingBackendReady,
	StateStartingFrontend,
	StateWaitingFrontendReady,
	StateMonitoring,
	StateShuttingDown,
	StateStopped,
}
