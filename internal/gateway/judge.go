package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/rs/zerolog"
)

// Judge proxies the judging backend. RunSample and Submit are not idempotent:
// every call produces a new judged attempt, and judging can take seconds, so
// callers pass a context and must not hold session locks across calls.
type Judge interface {
	RunSample(ctx context.Context, problemID, source string, lang contest.Language) (contest.TestReport, error)
	Submit(ctx context.Context, contestID, problemID, source string, lang contest.Language) (contest.SubmissionRecord, error)
}

type JudgeClient struct {
	base   *baseClient
	logger zerolog.Logger
}

func NewJudgeClient(baseURL, authToken string, timeout time.Duration, logger zerolog.Logger) *JudgeClient {
	base := newBaseClient(baseURL, timeout)
	if authToken != "" {
		base.setHeader("Authorization", "Bearer "+authToken)
	}
	return &JudgeClient{
		base:   base,
		logger: logger.With().Str("component", "judge-client").Logger(),
	}
}

type caseResultWire struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Passed         bool   `json:"passed"`
	Error          string `json:"error"`
	ExecutionMs    int64  `json:"execution_time"`
}

type testReportWire struct {
	Results []caseResultWire `json:"results"`
	Summary struct {
		Passed int `json:"passed"`
		Total  int `json:"total"`
	} `json:"summary"`
}

func (c *JudgeClient) RunSample(ctx context.Context, problemID, source string, lang contest.Language) (contest.TestReport, error) {
	req := map[string]string{
		"problem_id": problemID,
		"code":       source,
		"language":   string(lang),
	}

	started := time.Now()
	var wire testReportWire
	if err := c.base.postJSON(ctx, "/submissions/run-test/", req, &wire); err != nil {
		return contest.TestReport{}, fmt.Errorf("run sample for problem %s: %w", problemID, err)
	}

	report := contest.TestReport{
		ProblemID: problemID,
		PerCase:   make([]contest.CaseResult, 0, len(wire.Results)),
		Summary: contest.TestSummary{
			Passed: wire.Summary.Passed,
			Total:  wire.Summary.Total,
		},
	}
	for _, r := range wire.Results {
		report.PerCase = append(report.PerCase, contest.CaseResult{
			Input:          r.Input,
			ExpectedOutput: r.ExpectedOutput,
			ActualOutput:   r.ActualOutput,
			Passed:         r.Passed,
			Error:          r.Error,
			ElapsedMs:      r.ExecutionMs,
		})
	}

	c.logger.Debug().
		Str("problemId", problemID).
		Int("passed", report.Summary.Passed).
		Int("total", report.Summary.Total).
		Dur("elapsed", time.Since(started)).
		Msg("Sample run completed")

	return report, nil
}

func (c *JudgeClient) Submit(ctx context.Context, contestID, problemID, source string, lang contest.Language) (contest.SubmissionRecord, error) {
	req := map[string]string{
		"problem":  problemID,
		"code":     source,
		"language": string(lang),
	}

	var wire submissionWire
	endpoint := fmt.Sprintf("/contests/%s/submissions/create/", contestID)
	if err := c.base.postJSON(ctx, endpoint, req, &wire); err != nil {
		return contest.SubmissionRecord{}, fmt.Errorf("submit problem %s in contest %s: %w", problemID, contestID, err)
	}

	record := contest.SubmissionRecord{
		ID:          wire.ID,
		ProblemID:   problemID,
		Language:    lang,
		Source:      source,
		Kind:        contest.AttemptFinal,
		Verdict:     contest.Verdict(wire.Verdict),
		Score:       wire.Score,
		ElapsedMs:   wire.ExecutionMs,
		SubmittedAt: wire.SubmittedAt,
	}
	if record.Verdict == "" {
		record.Verdict = contest.VerdictPending
	}

	c.logger.Info().
		Str("contestId", contestID).
		Str("problemId", problemID).
		Str("submissionId", record.ID).
		Str("verdict", string(record.Verdict)).
		Msg("Submission accepted by judge")

	return record, nil
}
