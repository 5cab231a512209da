package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/gateway"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/workspace"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	defaultTickInterval      = time.Second
	defaultExitSubmitTimeout = 3 * time.Second
	defaultLanguage          = contest.LangPython
)

type Config struct {
	ContestID string
	UserID    string

	Registry  gateway.Registry
	Judge     gateway.Judge
	Workspace *workspace.Cache

	Clock             clockwork.Clock
	TickInterval      time.Duration
	ExitSubmitTimeout time.Duration

	Observer Observer
	Logger   zerolog.Logger
}

// Controller owns all state of one participation session. One instance per
// live session; methods are safe for concurrent use, but judge calls always
// happen outside the state lock so slow judging never blocks the session.
type Controller struct {
	contestID string
	userID    string

	registry  gateway.Registry
	judge     gateway.Judge
	workspace *workspace.Cache

	clock             clockwork.Clock
	tickInterval      time.Duration
	exitSubmitTimeout time.Duration

	observer Observer
	logger   zerolog.Logger

	remainingMillis atomic.Int64

	mu            sync.Mutex
	phase         Phase
	window        contest.Window
	problems      []contest.Problem
	problemsByID  map[string]contest.Problem
	participantID string

	selectedID string
	curLang    contest.Language
	curSource  string

	pending   *Ticket
	history   []contest.SubmissionRecord
	lastFinal map[string]string // problemID -> source of last accepted final submit

	stopCountdown context.CancelFunc
}

func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.ExitSubmitTimeout <= 0 {
		cfg.ExitSubmitTimeout = defaultExitSubmitTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = func(Event) {}
	}

	return &Controller{
		contestID:         cfg.ContestID,
		userID:            cfg.UserID,
		registry:          cfg.Registry,
		judge:             cfg.Judge,
		workspace:         cfg.Workspace,
		clock:             cfg.Clock,
		tickInterval:      cfg.TickInterval,
		exitSubmitTimeout: cfg.ExitSubmitTimeout,
		observer:          cfg.Observer,
		logger: cfg.Logger.With().
			Str("component", "session").
			Str("contestId", cfg.ContestID).
			Str("userId", cfg.UserID).
			Logger(),
		phase:        PhaseLoading,
		problemsByID: make(map[string]contest.Problem),
		curLang:      defaultLanguage,
		lastFinal:    make(map[string]string),
	}
}

// Load fetches contest metadata, the problem set, prior submissions and the
// user's registration status, then resolves the initial phase: an ended
// contest goes straight to Ended, a running contest in which the user is
// already registered resumes Participating, anything else lands in Browsing.
func (c *Controller) Load(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.phase != PhaseLoading {
		c.mu.Unlock()
		return State{}, ErrNotLoading
	}
	c.mu.Unlock()

	window, err := c.registry.FetchContest(ctx, c.contestID)
	if err != nil {
		return State{}, fmt.Errorf("load contest: %w", err)
	}

	problems, err := c.registry.FetchProblems(ctx, c.contestID)
	if err != nil {
		return State{}, fmt.Errorf("load problems: %w", err)
	}

	history, err := c.registry.FetchSubmissions(ctx, c.contestID)
	if err != nil {
		return State{}, fmt.Errorf("load submission history: %w", err)
	}

	participantID, registered, err := c.registry.FetchRegistration(ctx, c.contestID)
	if err != nil {
		return State{}, fmt.Errorf("load registration status: %w", err)
	}

	c.mu.Lock()
	if c.phase != PhaseLoading {
		// A disconnect can end the session while the fetches are running.
		state := c.snapshotLocked()
		c.mu.Unlock()
		return state, nil
	}

	c.window = window
	c.problems = problems
	c.problemsByID = make(map[string]contest.Problem, len(problems))
	for _, p := range problems {
		c.problemsByID[p.ID] = p
	}
	c.history = history
	for _, rec := range history {
		if rec.Kind == contest.AttemptFinal && rec.Source != "" {
			c.lastFinal[rec.ProblemID] = rec.Source
		}
	}

	now := c.clock.Now()
	switch {
	case window.IsEnded(now):
		c.phase = PhaseEnded
	case registered && window.IsRunning(now):
		c.participantID = participantID
		c.enterParticipatingLocked(ctx)
	default:
		c.phase = PhaseBrowsing
	}

	state := c.snapshotLocked()
	phase := c.phase
	c.mu.Unlock()

	c.logger.Info().
		Str("phase", string(phase)).
		Int("problems", len(problems)).
		Bool("registered", registered).
		Msg("Session loaded")

	c.notify(Event{Kind: EventPhaseChanged, Phase: phase})
	return state, nil
}

// Join registers the user as a participant. Rejections (already registered,
// capacity exceeded, registration closed) are surfaced once and leave the
// session browsing; the caller may retry after conditions change.
func (c *Controller) Join(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseBrowsing {
		c.mu.Unlock()
		return ErrNotBrowsing
	}
	if !c.window.IsRunning(c.clock.Now()) {
		c.mu.Unlock()
		return ErrContestNotRunning
	}
	c.mu.Unlock()

	participantID, err := c.registry.Register(ctx, c.contestID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Join rejected")
		return err
	}

	c.mu.Lock()
	if c.phase != PhaseBrowsing {
		c.mu.Unlock()
		return nil
	}
	c.participantID = participantID
	c.enterParticipatingLocked(ctx)
	c.mu.Unlock()

	c.logger.Info().Str("participantId", participantID).Msg("Joined contest")
	c.notify(Event{Kind: EventPhaseChanged, Phase: PhaseParticipating})
	return nil
}

func (c *Controller) enterParticipatingLocked(ctx context.Context) {
	c.phase = PhaseParticipating

	if c.workspace != nil {
		if err := c.workspace.Restore(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Could not restore durable workspace")
		}
	}

	if len(c.problems) > 0 {
		c.loadBufferLocked(c.problems[0].ID)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c.stopCountdown = cancel
	countdown := NewCountdown(c.clock, c.window.EndAt, c.tickInterval, c.handleTick, c.handleExpiry)
	go countdown.Run(cctx)
}

// loadBufferLocked points the editor buffer at problemID, using the cached
// text for the current language or seeding from starter code on first visit.
func (c *Controller) loadBufferLocked(problemID string) {
	c.selectedID = problemID
	if source, ok := c.workspace.Get(problemID, c.curLang); ok {
		c.curSource = source
		return
	}
	c.curSource = c.problemsByID[problemID].StarterCode
	c.workspace.Put(problemID, c.curLang, c.curSource)
}

// SelectProblem switches the active problem. The current buffer is flushed to
// the workspace cache before switching; no network call is made.
func (c *Controller) SelectProblem(problemID string) (contest.Language, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseParticipating {
		return "", "", ErrNotParticipating
	}
	if _, known := c.problemsByID[problemID]; !known {
		return "", "", ErrUnknownProblem
	}

	if c.selectedID != "" {
		c.workspace.Put(c.selectedID, c.curLang, c.curSource)
	}
	c.loadBufferLocked(problemID)

	return c.curLang, c.curSource, nil
}

// UpdateCode records an edit into the buffer and the workspace cache.
func (c *Controller) UpdateCode(lang contest.Language, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseParticipating {
		return ErrNotParticipating
	}
	if c.selectedID == "" {
		return ErrUnknownProblem
	}

	c.curLang = lang
	c.curSource = source
	c.workspace.Put(c.selectedID, lang, source)
	return nil
}

// RunSample judges the buffer against the visible sample cases. It never
// touches the pending final submission; a gateway failure is returned to the
// caller with the session state unchanged and is safe to retry.
func (c *Controller) RunSample(ctx context.Context, source string, lang contest.Language) (contest.TestReport, error) {
	c.mu.Lock()
	if c.phase != PhaseParticipating {
		c.mu.Unlock()
		return contest.TestReport{}, ErrNotParticipating
	}
	problemID := c.selectedID
	c.mu.Unlock()

	report, err := c.judge.RunSample(ctx, problemID, source, lang)
	if err != nil {
		return contest.TestReport{}, err
	}

	// Sample attempts are kept in history for audit even if the user has
	// switched problems while the run was in flight.
	verdict := contest.VerdictWrongAnswer
	if report.Summary.Total > 0 && report.Summary.Passed == report.Summary.Total {
		verdict = contest.VerdictAccepted
	}
	record := contest.SubmissionRecord{
		ProblemID:   problemID,
		Language:    lang,
		Kind:        contest.AttemptSample,
		Verdict:     verdict,
		SubmittedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.history = append(c.history, record)
	c.mu.Unlock()

	return report, nil
}

// SubmitFinal makes a scoring submission for the selected problem. At most
// one final submission may be in flight; a second request is rejected
// synchronously rather than queued. On completion, success or failure, the
// in-flight ticket is cleared and the outcome is appended to history.
func (c *Controller) SubmitFinal(ctx context.Context, source string, lang contest.Language) (contest.SubmissionRecord, error) {
	return c.submit(ctx, source, lang, false)
}

func (c *Controller) submit(ctx context.Context, source string, lang contest.Language, forced bool) (contest.SubmissionRecord, error) {
	c.mu.Lock()
	if forced {
		if c.phase != PhaseExiting {
			c.mu.Unlock()
			return contest.SubmissionRecord{}, ErrNotParticipating
		}
	} else if c.phase != PhaseParticipating {
		c.mu.Unlock()
		return contest.SubmissionRecord{}, ErrNotParticipating
	}
	if c.pending != nil {
		c.mu.Unlock()
		return contest.SubmissionRecord{}, ErrSubmissionInFlight
	}
	problemID := c.selectedID
	if problemID == "" {
		c.mu.Unlock()
		return contest.SubmissionRecord{}, ErrUnknownProblem
	}
	ticket := &Ticket{
		ProblemID: problemID,
		Language:  lang,
		Source:    source,
		Kind:      contest.AttemptFinal,
		IssuedAt:  c.clock.Now(),
	}
	c.pending = ticket
	c.mu.Unlock()

	record, err := c.judge.Submit(ctx, c.contestID, problemID, source, lang)

	c.mu.Lock()
	c.pending = nil
	if err != nil {
		record = contest.SubmissionRecord{
			ProblemID:   problemID,
			Language:    lang,
			Kind:        contest.AttemptFinal,
			Verdict:     contest.VerdictSubmitFailed,
			SubmittedAt: c.clock.Now(),
			Forced:      forced,
			Error:       err.Error(),
		}
	} else {
		record.Forced = forced
		c.lastFinal[problemID] = source
	}
	c.history = append(c.history, record)
	c.mu.Unlock()

	c.notify(Event{Kind: EventSubmissionRecorded, Record: &record})

	if err != nil {
		c.logger.Warn().Err(err).
			Str("problemId", problemID).
			Bool("forced", forced).
			Msg("Final submission failed")
		return record, err
	}
	return record, nil
}

// ForceExit drives the session to Ended. It is idempotent: calls while
// already exiting or ended are no-ops. If the buffer holds unsubmitted work,
// one best-effort final submission is attempted under a hard deadline; the
// session reaches Ended regardless of its outcome, and a late completion is
// still recorded into history without affecting the phase.
func (c *Controller) ForceExit(ctx context.Context, reason string) {
	c.mu.Lock()
	switch c.phase {
	case PhaseExiting, PhaseEnded:
		c.mu.Unlock()
		return
	case PhaseParticipating:
	default:
		// Nothing in flight to save while loading or browsing.
		c.endLocked()
		c.mu.Unlock()
		c.notify(Event{Kind: EventPhaseChanged, Phase: PhaseEnded, Reason: reason})
		return
	}

	c.phase = PhaseExiting
	problemID := c.selectedID
	source := c.curSource
	lang := c.curLang
	dirty := problemID != "" && source != "" && c.lastFinal[problemID] != source && c.pending == nil
	c.mu.Unlock()

	c.logger.Info().Str("reason", reason).Bool("dirty", dirty).Msg("Session exiting")
	c.notify(Event{Kind: EventPhaseChanged, Phase: PhaseExiting, Reason: reason})

	if dirty {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.exitSubmitTimeout)
		if _, err := c.submit(sctx, source, lang, true); err != nil {
			c.logger.Warn().Err(err).Str("reason", reason).Msg("Forced submission did not complete")
		}
		cancel()
	}

	c.mu.Lock()
	c.endLocked()
	c.mu.Unlock()

	c.logger.Info().Str("reason", reason).Msg("Session ended")
	c.notify(Event{Kind: EventPhaseChanged, Phase: PhaseEnded, Reason: reason})
}

func (c *Controller) endLocked() {
	c.phase = PhaseEnded
	if c.stopCountdown != nil {
		c.stopCountdown()
		c.stopCountdown = nil
	}
	if c.workspace != nil {
		c.workspace.Clear()
	}
	c.remainingMillis.Store(0)
}

// ResolveVerdict applies an asynchronously judged verdict to a pending
// history record. Returns false when the submission is not part of this
// session.
func (c *Controller) ResolveVerdict(submissionID string, verdict contest.Verdict, score int) bool {
	c.mu.Lock()
	var updated *contest.SubmissionRecord
	for i := range c.history {
		if c.history[i].ID == submissionID && c.history[i].Verdict == contest.VerdictPending {
			c.history[i].Verdict = verdict
			c.history[i].Score = score
			rec := c.history[i]
			updated = &rec
			break
		}
	}
	c.mu.Unlock()

	if updated == nil {
		return false
	}
	c.notify(Event{Kind: EventSubmissionRecorded, Record: updated})
	return true
}

func (c *Controller) handleTick(remaining time.Duration) {
	c.remainingMillis.Store(remaining.Milliseconds())
	c.notify(Event{Kind: EventClockTick, RemainingMillis: remaining.Milliseconds()})
}

func (c *Controller) handleExpiry() {
	c.ForceExit(context.Background(), ReasonTimeout)
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) ContestID() string {
	return c.contestID
}

func (c *Controller) UserID() string {
	return c.userID
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	history := make([]contest.SubmissionRecord, len(c.history))
	copy(history, c.history)

	var pending *Ticket
	if c.pending != nil {
		t := *c.pending
		pending = &t
	}

	return State{
		Phase:             c.phase,
		ContestID:         c.contestID,
		ParticipantID:     c.participantID,
		SelectedProblemID: c.selectedID,
		RemainingMillis:   c.remainingMillis.Load(),
		Pending:           pending,
		Contest:           c.window,
		Problems:          c.problems,
		History:           history,
	}
}

func (c *Controller) notify(ev Event) {
	c.observer(ev)
}
