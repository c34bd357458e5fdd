package notification

// OutcomeKind classifies the result of a single send attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeInvalidToken means the provider reports the token as no longer
	// valid or never registered.
	OutcomeInvalidToken
	// OutcomeTransientFailure covers every other provider error.
	OutcomeTransientFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeTransientFailure:
		return "send_failed"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of sending to one device token.
type Outcome struct {
	Kind      OutcomeKind
	MessageID string
	Detail    string
}

func Success(messageID string) Outcome {
	return Outcome{Kind: OutcomeSuccess, MessageID: messageID}
}

func InvalidToken(detail string) Outcome {
	return Outcome{Kind: OutcomeInvalidToken, Detail: detail}
}

func TransientFailure(detail string) Outcome {
	return Outcome{Kind: OutcomeTransientFailure, Detail: detail}
}

// FailedToken pairs a token with the provider's failure detail.
type FailedToken struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// DispatchResult partitions the tokens of one batch. Every input token appears
// in exactly one bucket, in input order.
type DispatchResult struct {
	Successful []string      `json:"successful"`
	Failed     []FailedToken `json:"failed"`
	Invalid    []string      `json:"invalid_tokens"`
}

// Total is the number of tokens covered by the result.
func (r DispatchResult) Total() int {
	return len(r.Successful) + len(r.Failed) + len(r.Invalid)
}

// Summary aggregates one orchestrated dispatch.
type Summary struct {
	Sent          int
	Failed        int
	InvalidTokens int
	TotalUsers    int
	// InvalidRegistrations lists the registrations whose token was rejected
	// as invalid. They are not deleted; callers unregister them explicitly.
	InvalidRegistrations []TokenRef
	// NoTargets is set when no device was registered for the target set and
	// nothing was sent or recorded.
	NoTargets bool
}
