package contest

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

type Language string

const (
	LangPython     Language = "python"
	LangCPP        Language = "cpp"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
)

func (l Language) Valid() bool {
	switch l {
	case LangPython, LangCPP, LangJava, LangJavaScript:
		return true
	}
	return false
}

type Verdict string

const (
	VerdictPending             Verdict = "Pending"
	VerdictAccepted            Verdict = "Accepted"
	VerdictWrongAnswer         Verdict = "Wrong Answer"
	VerdictTimeLimitExceeded   Verdict = "Time Limit Exceeded"
	VerdictMemoryLimitExceeded Verdict = "Memory Limit Exceeded"
	VerdictCompilationError    Verdict = "Compilation Error"
	VerdictRuntimeError        Verdict = "Runtime Error"

	// VerdictSubmitFailed marks attempts that never reached the judge
	// (gateway failure or exit deadline); kept in history for audit.
	VerdictSubmitFailed Verdict = "Submit Failed"
)

// Window is the immutable contest time frame as fetched from the platform.
// Running/upcoming/ended are never stored; they are recomputed from now so a
// stale fetch cannot misreport the contest state.
type Window struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	StartAt          time.Time `json:"startAt"`
	EndAt            time.Time `json:"endAt"`
	RegistrationOpen bool      `json:"registrationOpen"`
	MaxParticipants  *int      `json:"maxParticipants"`
}

func (w Window) IsRunning(now time.Time) bool {
	return !now.Before(w.StartAt) && now.Before(w.EndAt)
}

func (w Window) IsUpcoming(now time.Time) bool {
	return now.Before(w.StartAt)
}

func (w Window) IsEnded(now time.Time) bool {
	return !now.Before(w.EndAt)
}

type Problem struct {
	ID          string     `json:"id"`
	Order       int        `json:"order"`
	Points      int        `json:"points"`
	Title       string     `json:"title"`
	Statement   string     `json:"statement"`
	Constraints string     `json:"constraints"`
	Tags        []string   `json:"tags"`
	StarterCode string     `json:"starterCode"`
	Difficulty  Difficulty `json:"difficulty"`
}

type AttemptKind string

const (
	AttemptSample AttemptKind = "sample"
	AttemptFinal  AttemptKind = "final"
)

type SubmissionRecord struct {
	ID          string      `json:"id"`
	ProblemID   string      `json:"problemId"`
	Language    Language    `json:"language"`
	Source      string      `json:"source,omitempty"`
	Kind        AttemptKind `json:"kind"`
	Verdict     Verdict     `json:"verdict"`
	Score       int         `json:"score"`
	ElapsedMs   *int64      `json:"elapsedMs,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt"`
	Forced      bool        `json:"forced,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type CaseResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Passed         bool   `json:"passed"`
	Error          string `json:"error,omitempty"`
	ElapsedMs      int64  `json:"elapsedMs"`
}

type TestReport struct {
	ProblemID string       `json:"problemId"`
	PerCase   []CaseResult `json:"perCase"`
	Summary   TestSummary  `json:"summary"`
}

type TestSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}
