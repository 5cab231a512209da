package protocol

type ConnectedPayload struct {
	UserID     string `json:"userId"`
	InstanceID string `json:"instanceId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type EnterContestPayload struct {
	ContestID string `json:"contestId"`
}

type SelectProblemPayload struct {
	ProblemID string `json:"problemId"`
}

type UpdateCodePayload struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

type RunSamplePayload struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

type SubmitPayload struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

type ClockTickPayload struct {
	ContestID       string `json:"contestId"`
	RemainingMillis int64  `json:"remainingMillis"`
}

type PhaseChangedPayload struct {
	ContestID string `json:"contestId"`
	Phase     string `json:"phase"`
	Reason    string `json:"reason,omitempty"`
}

type ProblemSelectedPayload struct {
	ProblemID string `json:"problemId"`
	Language  string `json:"language"`
	Source    string `json:"source"`
}

type LeavePromptPayload struct {
	ContestID string `json:"contestId"`
	Message   string `json:"message"`
}
