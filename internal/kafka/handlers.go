package kafka

import (
	"context"
	"encoding/json"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/session"
	"github.com/CDeX-Labs/CDeX-Contest-Service/pkg/events"
	"github.com/CDeX-Labs/CDeX-Contest-Service/pkg/protocol"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type Handlers struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

func NewHandlers(h *hub.Hub, logger zerolog.Logger) *Handlers {
	return &Handlers{
		hub:    h,
		logger: logger.With().Str("component", "kafka-handlers").Logger(),
	}
}

// HandleSubmissionJudged resolves the verdict of a pending submission in the
// owning session and pushes the result. Events for submissions this instance
// does not host are normal in a multi-instance deployment.
func (h *Handlers) HandleSubmissionJudged(ctx context.Context, msg kafka.Message) error {
	var event events.SubmissionJudgedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal submission.judged event")
		return err
	}

	if event.ContestID == nil || *event.ContestID == "" {
		// Practice submissions are judged outside any contest session.
		return nil
	}

	resolved := h.hub.ResolveSubmission(
		event.UserID,
		*event.ContestID,
		event.SubmissionID,
		contest.Verdict(event.Verdict),
		event.Score,
	)

	h.logger.Info().
		Str("submissionId", event.SubmissionID).
		Str("userId", event.UserID).
		Str("verdict", event.Verdict).
		Bool("resolved", resolved).
		Msg("Processed submission.judged")

	return nil
}

func (h *Handlers) HandleLeaderboardUpdated(ctx context.Context, msg kafka.Message) error {
	var event events.LeaderboardUpdatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal leaderboard.updated event")
		return err
	}

	wsMsg, err := protocol.NewMessage(protocol.MsgContestEvent, map[string]interface{}{
		"type":      "LEADERBOARD_UPDATED",
		"contestId": event.ContestID,
		"timestamp": event.Timestamp,
	})
	if err != nil {
		return err
	}

	h.hub.SendToContest(event.ContestID, wsMsg)
	return nil
}

func (h *Handlers) HandleContestStarted(ctx context.Context, msg kafka.Message) error {
	var event events.ContestStartedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal contest.started event")
		return err
	}

	h.logger.Info().
		Str("contestId", event.ContestID).
		Str("title", event.Title).
		Msg("Processing contest.started")

	wsMsg, err := protocol.NewMessage(protocol.MsgContestEvent, map[string]interface{}{
		"type":      "STARTED",
		"contestId": event.ContestID,
		"title":     event.Title,
		"startTime": event.StartTime,
		"timestamp": event.Timestamp,
	})
	if err != nil {
		return err
	}

	h.hub.SendToContest(event.ContestID, wsMsg)
	return nil
}

// HandleContestEnded is the authoritative end-of-contest edge: besides the
// notification, every session of the contest hosted here is forced to exit.
// Local countdowns usually fire first; the forced exit is idempotent.
func (h *Handlers) HandleContestEnded(ctx context.Context, msg kafka.Message) error {
	var event events.ContestEndedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal contest.ended event")
		return err
	}

	wsMsg, err := protocol.NewMessage(protocol.MsgContestEvent, map[string]interface{}{
		"type":      "ENDED",
		"contestId": event.ContestID,
		"title":     event.Title,
		"endTime":   event.EndTime,
		"timestamp": event.Timestamp,
	})
	if err != nil {
		return err
	}
	h.hub.SendToContest(event.ContestID, wsMsg)

	ended := h.hub.ForceEndContest(event.ContestID, session.ReasonContestEnded)

	h.logger.Info().
		Str("contestId", event.ContestID).
		Str("title", event.Title).
		Int("sessions", ended).
		Msg("Processed contest.ended")

	return nil
}

func (h *Handlers) RegisterAll(consumer *Consumer) {
	consumer.RegisterHandler("submission.judged", h.HandleSubmissionJudged)
	consumer.RegisterHandler("leaderboard.updated", h.HandleLeaderboardUpdated)
	consumer.RegisterHandler("contest.started", h.HandleContestStarted)
	consumer.RegisterHandler("contest.ended", h.HandleContestEnded)
}
