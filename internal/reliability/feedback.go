package reliability

// FeedbackKind is the closed set of feedback messages a consumer can send
// back to the bus about a previously delivered sequence.
type FeedbackKind int

const (
	FeedbackACK FeedbackKind = iota
	FeedbackNACK
	FeedbackBusy
	FeedbackOverflow
	FeedbackReady
)

func (k FeedbackKind) String() string {
	switch k {
	case FeedbackACK:
		return "ACK"
	case FeedbackNACK:
		return "NACK"
	case FeedbackBusy:
		return "BUSY"
	case FeedbackOverflow:
		return "OVERFLOW"
	case FeedbackReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Feedback is a tagged record: Kind selects the variant, and Code and Msg
// are only meaningful when Kind is FeedbackNACK. It is a plain struct, not
// a sum type: Code and Msg are present on every value and are left zero for
// the other kinds.
type Feedback struct {
	Kind         FeedbackKind
	Sequence     uint64
	ProducerID   uint32
	ConsumerID   uint32
	TimestampUs  int64

	// Code and Msg are populated only for FeedbackNACK.
	Code int32
	Msg  string
}

// MakeACK constructs a well-formed ACK feedback message.
func MakeACK(seq uint64, producerID, consumerID uint32, nowUs int64) Feedback {
	return Feedback{Kind: FeedbackACK, Sequence: seq, ProducerID: producerID, ConsumerID: consumerID, TimestampUs: nowUs}
}

// MakeNACK constructs a well-formed NACK feedback message carrying an
// error code and message.
func MakeNACK(seq uint64, producerID, consumerID uint32, code int32, msg string, nowUs int64) Feedback {
	return Feedback{Kind: FeedbackNACK, Sequence: seq, ProducerID: producerID, ConsumerID: consumerID, TimestampUs: nowUs, Code: code, Msg: msg}
}

// MakeBusy constructs a well-formed BUSY feedback message.
func MakeBusy(seq uint64, producerID, consumerID uint32, nowUs int64) Feedback {
	return Feedback{Kind: FeedbackBusy, Sequence: seq, ProducerID: producerID, ConsumerID: consumerID, TimestampUs: nowUs}
}

// MakeOverflow constructs a well-formed OVERFLOW feedback message.
func MakeOverflow(seq uint64, producerID, consumerID uint32, nowUs int64) Feedback {
	return Feedback{Kind: FeedbackOverflow, Sequence: seq, ProducerID: producerID, ConsumerID: consumerID, TimestampUs: nowUs}
}

// MakeReady constructs a well-formed READY feedback message. READY carries
// no sequence: it is a proactive flow-control signal from a consumer, not
// an acknowledgment of a specific delivery.
func MakeReady(producerID, consumerID uint32, nowUs int64) Feedback {
	return Feedback{Kind: FeedbackReady, ProducerID: producerID, ConsumerID: consumerID, TimestampUs: nowUs}
}
