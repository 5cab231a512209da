package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/gateway"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/workspace"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type fakeRegistry struct {
	mu            sync.Mutex
	window        contest.Window
	problems      []contest.Problem
	submissions   []contest.SubmissionRecord
	participantID string
	registered    bool
	registerErr   error
	registerCalls int
}

func (f *fakeRegistry) FetchContest(ctx context.Context, contestID string) (contest.Window, error) {
	return f.window, nil
}

func (f *fakeRegistry) FetchProblems(ctx context.Context, contestID string) ([]contest.Problem, error) {
	return f.problems, nil
}

func (f *fakeRegistry) FetchSubmissions(ctx context.Context, contestID string) ([]contest.SubmissionRecord, error) {
	return f.submissions, nil
}

func (f *fakeRegistry) FetchRegistration(ctx context.Context, contestID string) (string, bool, error) {
	return f.participantID, f.registered, nil
}

func (f *fakeRegistry) Register(ctx context.Context, contestID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return f.participantID, nil
}

func (f *fakeRegistry) setRegisterErr(err error) {
	f.mu.Lock()
	f.registerErr = err
	f.mu.Unlock()
}

type fakeJudge struct {
	sampleReport contest.TestReport
	sampleErr    error

	submitErr   error
	submitCalls atomic.Int32
	submitGate  chan struct{} // when set, Submit blocks until closed or ctx done
	submitEntry chan struct{} // when set, receives one signal per Submit call
}

func (f *fakeJudge) RunSample(ctx context.Context, problemID, source string, lang contest.Language) (contest.TestReport, error) {
	if f.sampleErr != nil {
		return contest.TestReport{}, f.sampleErr
	}
	report := f.sampleReport
	report.ProblemID = problemID
	return report, nil
}

func (f *fakeJudge) Submit(ctx context.Context, contestID, problemID, source string, lang contest.Language) (contest.SubmissionRecord, error) {
	n := f.submitCalls.Add(1)
	if f.submitEntry != nil {
		f.submitEntry <- struct{}{}
	}
	if f.submitGate != nil {
		select {
		case <-f.submitGate:
		case <-ctx.Done():
			return contest.SubmissionRecord{}, ctx.Err()
		}
	}
	if f.submitErr != nil {
		return contest.SubmissionRecord{}, f.submitErr
	}
	return contest.SubmissionRecord{
		ID:          fmt.Sprintf("sub-%d", n),
		ProblemID:   problemID,
		Language:    lang,
		Source:      source,
		Kind:        contest.AttemptFinal,
		Verdict:     contest.VerdictPending,
		SubmittedAt: time.Now(),
	}, nil
}

var _ gateway.Registry = (*fakeRegistry)(nil)
var _ gateway.Judge = (*fakeJudge)(nil)

type testSession struct {
	ctrl     *Controller
	registry *fakeRegistry
	judge    *fakeJudge
	clock    *clockwork.FakeClock
	events   chan Event
}

func problemSet() []contest.Problem {
	return []contest.Problem{
		{ID: "p1", Order: 1, Points: 100, Title: "Two Sum", StarterCode: "def solve():\n    pass\n"},
		{ID: "p2", Order: 2, Points: 200, Title: "Graph Paths", StarterCode: "def solve():\n    pass\n"},
	}
}

func newTestSession(t *testing.T, mutate func(*fakeRegistry, *Config)) *testSession {
	t.Helper()

	clock := clockwork.NewFakeClock()
	registry := &fakeRegistry{
		window: contest.Window{
			ID:               "c1",
			Title:            "Weekly Round",
			StartAt:          clock.Now().Add(-time.Hour),
			EndAt:            clock.Now().Add(time.Hour),
			RegistrationOpen: true,
		},
		problems:      problemSet(),
		participantID: "part-1",
	}
	judge := &fakeJudge{}
	events := make(chan Event, 128)

	cfg := Config{
		ContestID: "c1",
		UserID:    "u1",
		Registry:  registry,
		Judge:     judge,
		Workspace: workspace.NewCache("c1", "u1", nil, zerolog.Nop()),
		Clock:     clock,
		Observer:  func(ev Event) { events <- ev },
		Logger:    zerolog.Nop(),
	}
	if mutate != nil {
		mutate(registry, &cfg)
	}

	return &testSession{
		ctrl:     NewController(cfg),
		registry: registry,
		judge:    judge,
		clock:    clock,
		events:   events,
	}
}

func (s *testSession) waitPhase(t *testing.T, phase Phase) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.events:
			if ev.Kind == EventPhaseChanged && ev.Phase == phase {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for phase %s (current %s)", phase, s.ctrl.Phase())
		}
	}
}

func (s *testSession) waitTickEvent(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.events:
			if ev.Kind == EventClockTick {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for clock tick event")
		}
	}
}

func finalRecords(history []contest.SubmissionRecord) []contest.SubmissionRecord {
	var finals []contest.SubmissionRecord
	for _, rec := range history {
		if rec.Kind == contest.AttemptFinal {
			finals = append(finals, rec)
		}
	}
	return finals
}

func TestLoadResolvesPhase(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*fakeRegistry, *Config)
		wantPhase Phase
	}{
		{
			name:      "running and not registered",
			mutate:    nil,
			wantPhase: PhaseBrowsing,
		},
		{
			name: "running and already registered",
			mutate: func(r *fakeRegistry, _ *Config) {
				r.registered = true
			},
			wantPhase: PhaseParticipating,
		},
		{
			name: "ended contest",
			mutate: func(r *fakeRegistry, cfg *Config) {
				r.window.StartAt = cfg.Clock.Now().Add(-2 * time.Hour)
				r.window.EndAt = cfg.Clock.Now().Add(-time.Hour)
			},
			wantPhase: PhaseEnded,
		},
		{
			name: "upcoming contest",
			mutate: func(r *fakeRegistry, cfg *Config) {
				r.window.StartAt = cfg.Clock.Now().Add(time.Hour)
				r.window.EndAt = cfg.Clock.Now().Add(2 * time.Hour)
			},
			wantPhase: PhaseBrowsing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, tt.mutate)
			state, err := s.ctrl.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if state.Phase != tt.wantPhase {
				t.Errorf("phase = %s, want %s", state.Phase, tt.wantPhase)
			}
		})
	}
}

func TestLoadSelectsFirstProblemWhenParticipating(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })

	state, err := s.ctrl.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.SelectedProblemID != "p1" {
		t.Errorf("selected problem = %q, want p1", state.SelectedProblemID)
	}
	if state.ParticipantID != "part-1" {
		t.Errorf("participant = %q, want part-1", state.ParticipantID)
	}
}

func TestJoinCapacityExceededThenRetry(t *testing.T) {
	s := newTestSession(t, nil)
	s.registry.setRegisterErr(gateway.ErrCapacityExceeded)

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	err := s.ctrl.Join(context.Background())
	if !errors.Is(err, gateway.ErrCapacityExceeded) {
		t.Fatalf("Join() error = %v, want ErrCapacityExceeded", err)
	}
	if got := s.ctrl.Phase(); got != PhaseBrowsing {
		t.Fatalf("phase after rejected join = %s, want browsing", got)
	}

	// Capacity frees up; an explicit retry succeeds.
	s.registry.setRegisterErr(nil)
	if err := s.ctrl.Join(context.Background()); err != nil {
		t.Fatalf("Join() retry error = %v", err)
	}
	if got := s.ctrl.Phase(); got != PhaseParticipating {
		t.Fatalf("phase after join = %s, want participating", got)
	}
}

func TestJoinRejectedWhenNotRunning(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, cfg *Config) {
		r.window.StartAt = cfg.Clock.Now().Add(time.Hour)
		r.window.EndAt = cfg.Clock.Now().Add(2 * time.Hour)
	})

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.ctrl.Join(context.Background()); !errors.Is(err, ErrContestNotRunning) {
		t.Fatalf("Join() error = %v, want ErrContestNotRunning", err)
	}
	if s.registry.registerCalls != 0 {
		t.Errorf("register called %d times for a contest that is not running", s.registry.registerCalls)
	}
}

func TestSelectProblemRoundTripRestoresBuffer(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	edited := "def solve():\n    return 42\n"
	if err := s.ctrl.UpdateCode(contest.LangPython, edited); err != nil {
		t.Fatalf("UpdateCode() error = %v", err)
	}

	if _, _, err := s.ctrl.SelectProblem("p2"); err != nil {
		t.Fatalf("SelectProblem(p2) error = %v", err)
	}

	_, source, err := s.ctrl.SelectProblem("p1")
	if err != nil {
		t.Fatalf("SelectProblem(p1) error = %v", err)
	}
	if source != edited {
		t.Errorf("restored source = %q, want the edited text", source)
	}
}

func TestSelectProblemSeedsStarterCode(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, source, err := s.ctrl.SelectProblem("p2")
	if err != nil {
		t.Fatalf("SelectProblem(p2) error = %v", err)
	}
	if want := problemSet()[1].StarterCode; source != want {
		t.Errorf("source = %q, want starter code %q", source, want)
	}
}

func TestSelectProblemUnknownID(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, _, err := s.ctrl.SelectProblem("nope"); !errors.Is(err, ErrUnknownProblem) {
		t.Fatalf("SelectProblem() error = %v, want ErrUnknownProblem", err)
	}
	if got := s.ctrl.Snapshot().SelectedProblemID; got != "p1" {
		t.Errorf("selection changed to %q after invalid select", got)
	}
}

func TestSubmitFinalDuplicateRejectedSynchronously(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	s.judge.submitGate = make(chan struct{})
	s.judge.submitEntry = make(chan struct{}, 1)

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.ctrl.SubmitFinal(context.Background(), "code-a", contest.LangPython)
		firstDone <- err
	}()

	<-s.judge.submitEntry // first call is now in flight

	if _, err := s.ctrl.SubmitFinal(context.Background(), "code-b", contest.LangPython); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("second SubmitFinal() error = %v, want ErrSubmissionInFlight", err)
	}

	close(s.judge.submitGate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first SubmitFinal() error = %v", err)
	}

	if calls := s.judge.submitCalls.Load(); calls != 1 {
		t.Errorf("judge received %d submit calls, want 1", calls)
	}
	if finals := finalRecords(s.ctrl.Snapshot().History); len(finals) != 1 {
		t.Errorf("history has %d final records, want 1", len(finals))
	}
}

func TestSubmitFinalFailureKeepsParticipating(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	s.judge.submitErr = errors.New("judge unavailable")

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := s.ctrl.SubmitFinal(context.Background(), "code", contest.LangPython); err == nil {
		t.Fatal("SubmitFinal() succeeded, want error")
	}
	if got := s.ctrl.Phase(); got != PhaseParticipating {
		t.Errorf("phase = %s, want participating after failed submit", got)
	}

	// The failed attempt is auditable and the in-flight slot is free again.
	state := s.ctrl.Snapshot()
	if state.Pending != nil {
		t.Error("pending ticket not cleared after failure")
	}
	finals := finalRecords(state.History)
	if len(finals) != 1 || finals[0].Verdict != contest.VerdictSubmitFailed {
		t.Errorf("history finals = %+v, want one Submit Failed marker", finals)
	}

	s.judge.submitErr = nil
	if _, err := s.ctrl.SubmitFinal(context.Background(), "code", contest.LangPython); err != nil {
		t.Fatalf("retry SubmitFinal() error = %v", err)
	}
}

func TestRunSampleConcurrentWithFinalSubmit(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	s.judge.submitGate = make(chan struct{})
	s.judge.submitEntry = make(chan struct{}, 1)
	s.judge.sampleReport = contest.TestReport{Summary: contest.TestSummary{Passed: 2, Total: 2}}

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	submitDone := make(chan error, 1)
	go func() {
		_, err := s.ctrl.SubmitFinal(context.Background(), "final-code", contest.LangPython)
		submitDone <- err
	}()
	<-s.judge.submitEntry

	// Sample runs complete independently of the pending final ticket.
	report, err := s.ctrl.RunSample(context.Background(), "sample-code", contest.LangPython)
	if err != nil {
		t.Fatalf("RunSample() error = %v", err)
	}
	if report.Summary.Passed != 2 {
		t.Errorf("report passed = %d, want 2", report.Summary.Passed)
	}

	state := s.ctrl.Snapshot()
	if state.Pending == nil || state.Pending.Kind != contest.AttemptFinal {
		t.Fatalf("pending = %+v, want the final ticket still in flight", state.Pending)
	}

	close(s.judge.submitGate)
	if err := <-submitDone; err != nil {
		t.Fatalf("SubmitFinal() error = %v", err)
	}
	if s.ctrl.Snapshot().Pending != nil {
		t.Error("pending ticket not cleared after final completed")
	}
}

func TestRunSampleFailureLeavesStateUnchanged(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	s.judge.sampleErr = errors.New("network down")

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before := s.ctrl.Snapshot()

	if _, err := s.ctrl.RunSample(context.Background(), "code", contest.LangPython); err == nil {
		t.Fatal("RunSample() succeeded, want error")
	}

	after := s.ctrl.Snapshot()
	if after.Phase != before.Phase || len(after.History) != len(before.History) {
		t.Error("failed sample run mutated session state")
	}
}

func TestClockExpiryForcesExactlyOneFinalSubmission(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, cfg *Config) {
		r.registered = true
		r.window.EndAt = cfg.Clock.Now().Add(2 * time.Second)
	})

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.ctrl.UpdateCode(contest.LangPython, "almost done"); err != nil {
		t.Fatalf("UpdateCode() error = %v", err)
	}

	s.waitTickEvent(t) // initial derivation delivered, ticker armed

	for i := 0; i < 2; i++ {
		s.clock.BlockUntil(1)
		s.clock.Advance(time.Second)
		s.waitTickEvent(t)
	}

	s.waitPhase(t, PhaseEnded)

	if got := s.ctrl.Phase(); got != PhaseEnded {
		t.Fatalf("phase = %s, want ended", got)
	}
	finals := finalRecords(s.ctrl.Snapshot().History)
	if len(finals) != 1 {
		t.Fatalf("history has %d final records, want exactly 1", len(finals))
	}
	if !finals[0].Forced || finals[0].Source != "almost done" {
		t.Errorf("forced record = %+v, want forced submit of the current buffer", finals[0])
	}
	if calls := s.judge.submitCalls.Load(); calls != 1 {
		t.Errorf("judge received %d submit calls, want 1", calls)
	}
}

func TestForceExitUnmodifiedBufferSkipsSubmission(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	code := "final answer"
	if err := s.ctrl.UpdateCode(contest.LangPython, code); err != nil {
		t.Fatalf("UpdateCode() error = %v", err)
	}
	if _, err := s.ctrl.SubmitFinal(context.Background(), code, contest.LangPython); err != nil {
		t.Fatalf("SubmitFinal() error = %v", err)
	}

	s.ctrl.ForceExit(context.Background(), ReasonLeave)

	finals := finalRecords(s.ctrl.Snapshot().History)
	if len(finals) != 1 {
		t.Errorf("history has %d final records, want 1 (no redundant forced submit)", len(finals))
	}
	if got := s.ctrl.Phase(); got != PhaseEnded {
		t.Errorf("phase = %s, want ended", got)
	}
}

func TestForceExitEmptyBufferSkipsSubmission(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) {
		r.registered = true
		r.problems = []contest.Problem{{ID: "p1", Order: 1, StarterCode: ""}}
	})
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	s.ctrl.ForceExit(context.Background(), ReasonDisconnect)

	if calls := s.judge.submitCalls.Load(); calls != 0 {
		t.Errorf("judge received %d submit calls for an empty buffer, want 0", calls)
	}
	if got := s.ctrl.Phase(); got != PhaseEnded {
		t.Errorf("phase = %s, want ended", got)
	}
}

func TestForceExitIsIdempotent(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.ctrl.UpdateCode(contest.LangPython, "work in progress"); err != nil {
		t.Fatalf("UpdateCode() error = %v", err)
	}

	s.ctrl.ForceExit(context.Background(), ReasonLeave)
	history := len(s.ctrl.Snapshot().History)

	s.ctrl.ForceExit(context.Background(), ReasonTimeout)
	s.ctrl.ForceExit(context.Background(), ReasonDisconnect)

	if got := len(s.ctrl.Snapshot().History); got != history {
		t.Errorf("repeated ForceExit grew history from %d to %d records", history, got)
	}
	if calls := s.judge.submitCalls.Load(); calls != 1 {
		t.Errorf("judge received %d submit calls, want 1", calls)
	}
}

func TestForceExitSubmitDeadlineNeverBlocksExit(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, cfg *Config) {
		r.registered = true
		cfg.ExitSubmitTimeout = 50 * time.Millisecond
	})
	s.judge.submitGate = make(chan struct{}) // judge never answers

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.ctrl.UpdateCode(contest.LangPython, "unsaved work"); err != nil {
		t.Fatalf("UpdateCode() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.ctrl.ForceExit(context.Background(), ReasonDisconnect)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ForceExit blocked past the submit deadline")
	}

	if got := s.ctrl.Phase(); got != PhaseEnded {
		t.Fatalf("phase = %s, want ended", got)
	}
	finals := finalRecords(s.ctrl.Snapshot().History)
	if len(finals) != 1 || finals[0].Verdict != contest.VerdictSubmitFailed {
		t.Errorf("finals = %+v, want one Submit Failed marker", finals)
	}
}

func TestForceExitWhileManualSubmitPending(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	s.judge.submitGate = make(chan struct{})
	s.judge.submitEntry = make(chan struct{}, 1)

	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	submitDone := make(chan error, 1)
	go func() {
		_, err := s.ctrl.SubmitFinal(context.Background(), "manual", contest.LangPython)
		submitDone <- err
	}()
	<-s.judge.submitEntry

	// The terminal edge fires while the manual submit is still pending: the
	// session must end without queueing a second final.
	s.ctrl.ForceExit(context.Background(), ReasonTimeout)
	if got := s.ctrl.Phase(); got != PhaseEnded {
		t.Fatalf("phase = %s, want ended", got)
	}

	// The late completion is still recorded, but the phase is settled.
	close(s.judge.submitGate)
	if err := <-submitDone; err != nil {
		t.Fatalf("manual SubmitFinal() error = %v", err)
	}
	if calls := s.judge.submitCalls.Load(); calls != 1 {
		t.Errorf("judge received %d submit calls, want 1", calls)
	}
	finals := finalRecords(s.ctrl.Snapshot().History)
	if len(finals) != 1 {
		t.Errorf("history has %d final records, want 1", len(finals))
	}
	if got := s.ctrl.Phase(); got != PhaseEnded {
		t.Errorf("late completion changed phase to %s", got)
	}
}

func TestResolveVerdict(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	rec, err := s.ctrl.SubmitFinal(context.Background(), "code", contest.LangPython)
	if err != nil {
		t.Fatalf("SubmitFinal() error = %v", err)
	}

	if !s.ctrl.ResolveVerdict(rec.ID, contest.VerdictAccepted, 100) {
		t.Fatal("ResolveVerdict() did not find the pending record")
	}
	if s.ctrl.ResolveVerdict(rec.ID, contest.VerdictAccepted, 100) {
		t.Error("ResolveVerdict() resolved the same record twice")
	}
	if s.ctrl.ResolveVerdict("unknown-id", contest.VerdictAccepted, 100) {
		t.Error("ResolveVerdict() matched a foreign submission")
	}

	finals := finalRecords(s.ctrl.Snapshot().History)
	if finals[0].Verdict != contest.VerdictAccepted || finals[0].Score != 100 {
		t.Errorf("record = %+v, want accepted with score 100", finals[0])
	}
}

func TestWorkspaceClearedOnEnd(t *testing.T) {
	s := newTestSession(t, func(r *fakeRegistry, _ *Config) { r.registered = true })
	if _, err := s.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := s.ctrl.UpdateCode(contest.LangPython, "scratch"); err != nil {
		t.Fatalf("UpdateCode() error = %v", err)
	}

	s.ctrl.ForceExit(context.Background(), ReasonLeave)

	if err := s.ctrl.UpdateCode(contest.LangPython, "more"); !errors.Is(err, ErrNotParticipating) {
		t.Errorf("UpdateCode() after end = %v, want ErrNotParticipating", err)
	}
}
