package health

// FaultKind is the closed enumeration of failure observations the bus can
// report into the health model.
type FaultKind int

const (
	FaultCorruption FaultKind = iota
	FaultTimeout
	FaultOverflow
	FaultUnderflow
	FaultMemory
	FaultNetwork
	FaultGPU
	FaultDeadlock
	FaultStarvation
)

func (k FaultKind) String() string {
	switch k {
	case FaultCorruption:
		return "CORRUPTION"
	case FaultTimeout:
		return "TIMEOUT"
	case FaultOverflow:
		return "OVERFLOW"
	case FaultUnderflow:
		return "UNDERFLOW"
	case FaultMemory:
		return "MEMORY"
	case FaultNetwork:
		return "NETWORK"
	case FaultGPU:
		return "GPU"
	case FaultDeadlock:
		return "DEADLOCK"
	case FaultStarvation:
		return "STARVATION"
	default:
		return "UNKNOWN"
	}
}

// Severity is the closed enumeration of fault severities, derived
// deterministically from FaultKind (§4.4).
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// severityFor maps a fault kind to its mandated severity.
func severityFor(kind FaultKind) Severity {
	switch kind {
	case FaultCorruption, FaultDeadlock:
		return SeverityCritical
	case FaultTimeout, FaultOverflow, FaultGPU:
		return SeverityError
	case FaultUnderflow, FaultMemory:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// RecoveryAction is the closed set of actions the recovery policy can
// choose.
type RecoveryAction int

const (
	RecoveryNone RecoveryAction = iota
	RecoveryRetry
	RecoveryFallback
	RecoveryReset
	RecoveryIsolate
	RecoveryEscalate
)

func (a RecoveryAction) String() string {
	switch a {
	case RecoveryNone:
		return "NONE"
	case RecoveryRetry:
		return "RETRY"
	case RecoveryFallback:
		return "FALLBACK"
	case RecoveryReset:
		return "RESET"
	case RecoveryIsolate:
		return "ISOLATE"
	case RecoveryEscalate:
		return "ESCALATE"
	default:
		return "NONE"
	}
}

// descriptionMaxBytes bounds the fault description length. The source
// fixes this at 128 NUL-padded bytes; Go strings aren't fixed-width, so
// this is enforced as a truncation limit instead (documented deviation,
// see SPEC_FULL.md).
const descriptionMaxBytes = 128

func truncateDescription(desc string) string {
	if len(desc) <= descriptionMaxBytes {
		return desc
	}
	return desc[:descriptionMaxBytes]
}

// Record is one fault observation in the fault log.
type Record struct {
	ID                uint64
	Kind              FaultKind
	Severity          Severity
	ComponentID       uint32
	TimestampUs       int64
	RetryCount        int
	ActionTaken       RecoveryAction
	RecoverySuccessful bool
	RecoveryTimeUs    int64
	Description       string

	occupied bool
}
