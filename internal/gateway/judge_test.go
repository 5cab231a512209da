package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/rs/zerolog"
)

func newJudgeServer(t *testing.T, handler http.HandlerFunc) *JudgeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewJudgeClient(srv.URL, "test-token", 5*time.Second, zerolog.Nop())
}

func TestRunSample(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [
				{"input": "1 2", "expected_output": "3", "actual_output": "3", "passed": true, "execution_time": 12},
				{"input": "5 5", "expected_output": "10", "actual_output": "11", "passed": false, "execution_time": 9}
			],
			"summary": {"passed": 1, "total": 2}
		}`))
	})

	report, err := client.RunSample(context.Background(), "p1", "print(input())", contest.LangPython)
	if err != nil {
		t.Fatalf("RunSample() error = %v", err)
	}

	if gotPath != "/submissions/run-test/" {
		t.Errorf("request path = %q, want /submissions/run-test/", gotPath)
	}
	if gotBody["problem_id"] != "p1" || gotBody["language"] != "python" {
		t.Errorf("request body = %v", gotBody)
	}
	if report.ProblemID != "p1" {
		t.Errorf("report problem = %q, want p1", report.ProblemID)
	}
	if len(report.PerCase) != 2 {
		t.Fatalf("got %d case results, want 2", len(report.PerCase))
	}
	if report.PerCase[1].Passed || report.PerCase[1].ActualOutput != "11" {
		t.Errorf("second case = %+v", report.PerCase[1])
	}
	if report.Summary.Passed != 1 || report.Summary.Total != 2 {
		t.Errorf("summary = %+v, want 1/2", report.Summary)
	}
}

func TestRunSampleGatewayFailure(t *testing.T) {
	client := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error": "judge pool exhausted"}`))
	})

	if _, err := client.RunSample(context.Background(), "p1", "code", contest.LangPython); err == nil {
		t.Fatal("RunSample() = nil error, want gateway failure")
	}
}

func TestSubmit(t *testing.T) {
	var gotPath string
	client := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "s42",
			"problem": "p1",
			"language": "python",
			"verdict": "Pending",
			"submitted_at": "2026-08-28T11:00:00Z"
		}`))
	})

	record, err := client.Submit(context.Background(), "c1", "p1", "print(42)", contest.LangPython)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if gotPath != "/contests/c1/submissions/create/" {
		t.Errorf("request path = %q", gotPath)
	}
	if record.ID != "s42" || record.Verdict != contest.VerdictPending {
		t.Errorf("record = %+v", record)
	}
	if record.Source != "print(42)" {
		t.Errorf("source = %q, want submitted code", record.Source)
	}
	if record.Kind != contest.AttemptFinal {
		t.Errorf("kind = %s, want final", record.Kind)
	}
}

func TestSubmitDefaultsVerdictToPending(t *testing.T) {
	client := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "s1", "problem": "p1"}`))
	})

	record, err := client.Submit(context.Background(), "c1", "p1", "code", contest.LangPython)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if record.Verdict != contest.VerdictPending {
		t.Errorf("verdict = %q, want Pending", record.Verdict)
	}
}

func TestSubmitHonorsContextDeadline(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	client := newJudgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Submit(ctx, "c1", "p1", "code", contest.LangPython)
		errCh <- err
	}()

	<-started
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("Submit() = nil error, want context deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Submit() did not return after the context deadline")
	}
}
