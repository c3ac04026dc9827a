package dispatch

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeClientRejected
	OutcomeTimeout
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientRejected:
		return "client_rejected"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "transport_error"
	}
}

// Outcome is the terminal result of one dispatch, reported to the state
// tracker exactly once per request.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func (o Outcome) Success() bool {
	return o.Kind == OutcomeSuccess
}
