package session

import (
	"errors"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
)

type Phase string

const (
	PhaseLoading       Phase = "loading"
	PhaseBrowsing      Phase = "browsing"
	PhaseParticipating Phase = "participating"
	PhaseExiting       Phase = "exiting"
	PhaseEnded         Phase = "ended"
)

// Exit reasons, carried on phase-change events and metrics labels.
const (
	ReasonTimeout      = "timeout"
	ReasonDisconnect   = "disconnect"
	ReasonLeave        = "leave"
	ReasonContestEnded = "contest_ended"
)

var (
	// Programming errors: rejected synchronously, session state untouched.
	ErrUnknownProblem     = errors.New("problem is not part of this contest")
	ErrSubmissionInFlight = errors.New("a final submission is already in flight")

	ErrNotParticipating  = errors.New("session is not in the participating phase")
	ErrNotBrowsing       = errors.New("session is not in the browsing phase")
	ErrNotLoading        = errors.New("session has already been loaded")
	ErrContestNotRunning = errors.New("contest is not currently running")
)

// Ticket is a value object for one judge call in flight.
type Ticket struct {
	ProblemID string              `json:"problemId"`
	Language  contest.Language    `json:"language"`
	Source    string              `json:"-"`
	Kind      contest.AttemptKind `json:"kind"`
	IssuedAt  time.Time           `json:"issuedAt"`
}

// State is a point-in-time snapshot of the session, safe to serialize.
type State struct {
	Phase             Phase                      `json:"phase"`
	ContestID         string                     `json:"contestId"`
	ParticipantID     string                     `json:"participantId,omitempty"`
	SelectedProblemID string                     `json:"selectedProblemId,omitempty"`
	RemainingMillis   int64                      `json:"remainingMillis"`
	Pending           *Ticket                    `json:"pendingSubmission,omitempty"`
	Contest           contest.Window             `json:"contest"`
	Problems          []contest.Problem          `json:"problems,omitempty"`
	History           []contest.SubmissionRecord `json:"history,omitempty"`
}

type EventKind string

const (
	EventPhaseChanged       EventKind = "phase_changed"
	EventClockTick          EventKind = "clock_tick"
	EventSubmissionRecorded EventKind = "submission_recorded"
)

// Event is pushed to the single observer of the session (the connection
// layer). Failures of caller-initiated operations are returned as errors
// instead, so every failure surfaces exactly once.
type Event struct {
	Kind            EventKind
	Phase           Phase
	Reason          string
	RemainingMillis int64
	Record          *contest.SubmissionRecord
}

type Observer func(Event)
