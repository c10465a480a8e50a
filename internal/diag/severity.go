package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Label is the lower-case form used by the short and json renderers.
func (s Severity) Label() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}

// Status summarizes a diagnostic set for exit codes and result reporting.
type Status uint8

const (
	// StatusClean means no diagnostics above info.
	StatusClean Status = iota
	// StatusWarnings means warnings only; the plan is still emitted.
	StatusWarnings
	// StatusRejected means at least one error; no plan is emitted.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusWarnings:
		return "warnings"
	case StatusRejected:
		return "rejected"
	}
	return "unknown"
}

// ExitCode maps a status to the CLI exit status.
func (s Status) ExitCode() int {
	switch s {
	case StatusWarnings:
		return 2
	case StatusRejected:
		return 1
	default:
		return 0
	}
}
