package detector

// Detector is a strategy that decides whether a managed service is running.
// Implementations may check a PID file or a raw PID number. They must be
// safe for concurrent use.
type Detector interface {
	// Alive returns true if the service is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
