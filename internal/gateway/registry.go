package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/rs/zerolog"
)

// Registry is the contest-side platform API: contest metadata, problem sets,
// submission history and participant registration. All reads are idempotent.
type Registry interface {
	FetchContest(ctx context.Context, contestID string) (contest.Window, error)
	FetchProblems(ctx context.Context, contestID string) ([]contest.Problem, error)
	FetchSubmissions(ctx context.Context, contestID string) ([]contest.SubmissionRecord, error)
	FetchRegistration(ctx context.Context, contestID string) (participantID string, registered bool, err error)
	Register(ctx context.Context, contestID string) (string, error)
}

type RegistryClient struct {
	base   *baseClient
	logger zerolog.Logger
}

func NewRegistryClient(baseURL, authToken string, timeout time.Duration, logger zerolog.Logger) *RegistryClient {
	base := newBaseClient(baseURL, timeout)
	if authToken != "" {
		base.setHeader("Authorization", "Bearer "+authToken)
	}
	return &RegistryClient{
		base:   base,
		logger: logger.With().Str("component", "registry-client").Logger(),
	}
}

type contestWire struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	AllowRegistration bool      `json:"allow_registration"`
	MaxParticipants   *int      `json:"max_participants"`
}

type problemWire struct {
	ID      string `json:"id"`
	Order   int    `json:"order"`
	Points  int    `json:"points"`
	Problem struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Constraints string   `json:"constraints"`
		Difficulty  string   `json:"difficulty"`
		Tags        []string `json:"tags"`
		StarterCode string   `json:"starter_code"`
	} `json:"problem"`
}

type submissionWire struct {
	ID          string    `json:"id"`
	Problem     string    `json:"problem"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	Verdict     string    `json:"verdict"`
	Score       int       `json:"score"`
	ExecutionMs *int64    `json:"execution_time"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (c *RegistryClient) FetchContest(ctx context.Context, contestID string) (contest.Window, error) {
	var wire contestWire
	if err := c.base.getJSON(ctx, fmt.Sprintf("/contests/%s/", contestID), &wire); err != nil {
		return contest.Window{}, fmt.Errorf("fetch contest %s: %w", contestID, err)
	}

	return contest.Window{
		ID:               wire.ID,
		Title:            wire.Title,
		StartAt:          wire.StartTime,
		EndAt:            wire.EndTime,
		RegistrationOpen: wire.AllowRegistration,
		MaxParticipants:  wire.MaxParticipants,
	}, nil
}

func (c *RegistryClient) FetchProblems(ctx context.Context, contestID string) ([]contest.Problem, error) {
	var wires []problemWire
	if err := c.base.getJSON(ctx, fmt.Sprintf("/contests/%s/problems/", contestID), &wires); err != nil {
		return nil, fmt.Errorf("fetch problems for contest %s: %w", contestID, err)
	}

	problems := make([]contest.Problem, 0, len(wires))
	for _, w := range wires {
		problems = append(problems, contest.Problem{
			ID:          w.Problem.ID,
			Order:       w.Order,
			Points:      w.Points,
			Title:       w.Problem.Title,
			Statement:   w.Problem.Description,
			Constraints: w.Problem.Constraints,
			Tags:        w.Problem.Tags,
			StarterCode: w.Problem.StarterCode,
			Difficulty:  contest.Difficulty(w.Problem.Difficulty),
		})
	}

	sort.Slice(problems, func(i, j int) bool {
		return problems[i].Order < problems[j].Order
	})

	return problems, nil
}

func (c *RegistryClient) FetchSubmissions(ctx context.Context, contestID string) ([]contest.SubmissionRecord, error) {
	var wires []submissionWire
	if err := c.base.getJSON(ctx, fmt.Sprintf("/contests/%s/submissions/", contestID), &wires); err != nil {
		return nil, fmt.Errorf("fetch submissions for contest %s: %w", contestID, err)
	}

	records := make([]contest.SubmissionRecord, 0, len(wires))
	for _, w := range wires {
		records = append(records, contest.SubmissionRecord{
			ID:          w.ID,
			ProblemID:   w.Problem,
			Source:      w.Code,
			Language:    contest.Language(w.Language),
			Kind:        contest.AttemptFinal,
			Verdict:     contest.Verdict(w.Verdict),
			Score:       w.Score,
			ElapsedMs:   w.ExecutionMs,
			SubmittedAt: w.SubmittedAt,
		})
	}

	return records, nil
}

func (c *RegistryClient) FetchRegistration(ctx context.Context, contestID string) (string, bool, error) {
	var resp struct {
		ParticipantID string `json:"participant_id"`
		IsRegistered  bool   `json:"is_registered"`
	}
	if err := c.base.getJSON(ctx, fmt.Sprintf("/contests/%s/register/", contestID), &resp); err != nil {
		return "", false, fmt.Errorf("fetch registration for contest %s: %w", contestID, err)
	}
	return resp.ParticipantID, resp.IsRegistered, nil
}

func (c *RegistryClient) Register(ctx context.Context, contestID string) (string, error) {
	var resp struct {
		ParticipantID string `json:"participant_id"`
	}
	err := c.base.postJSON(ctx, fmt.Sprintf("/contests/%s/register/", contestID), struct{}{}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case codeAlreadyRegistered:
				return "", ErrAlreadyRegistered
			case codeCapacityExceeded:
				return "", ErrCapacityExceeded
			case codeRegistrationClosed:
				return "", ErrContestNotOpen
			}
			if apiErr.StatusCode == http.StatusForbidden {
				return "", ErrContestNotOpen
			}
		}
		return "", fmt.Errorf("register for contest %s: %w", contestID, err)
	}

	c.logger.Info().
		Str("contestId", contestID).
		Str("participantId", resp.ParticipantID).
		Msg("Registered participant")

	return resp.ParticipantID, nil
}
