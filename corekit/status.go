package corekit

// Status describes how far the lifecycle has progressed.
type Status int

const (
	// StatusNotInitialized means Init has not completed.
	StatusNotInitialized Status = iota
	// StatusInitialized means the metadata record is loaded but holds no
	// share backups yet.
	StatusInitialized
	// StatusRequiredShare means the user must input a factor key before
	// any key operation can proceed.
	StatusRequiredShare
	// StatusLoggedIn means a share is reconstructed and signing is
	// available.
	StatusLoggedIn
)

func (s Status) String() string {
	switch s {
	case StatusNotInitialized:
		return "NOT_INITIALIZED"
	case StatusInitialized:
		return "INITIALIZED"
	case StatusRequiredShare:
		return "REQUIRED_SHARE"
	case StatusLoggedIn:
		return "LOGGED_IN"
	default:
		return "UNKNOWN"
	}
}

// statusOf derives the lifecycle status from three observable facts:
// record presence, registered share backups in the record, and a
// reconstructed share in memory. Nothing else is cached, so the status
// can be re-derived at any point and resets with the facts themselves.
func statusOf(hasMetadata, hasBackups, hasShare bool) Status {
	switch {
	case !hasMetadata:
		return StatusNotInitialized
	case hasShare:
		return StatusLoggedIn
	case hasBackups:
		return StatusRequiredShare
	default:
		return StatusInitialized
	}
}
