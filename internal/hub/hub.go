package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/gateway"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/presence"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/session"
	"github.com/CDeX-Labs/CDeX-Contest-Service/pkg/protocol"
	"github.com/rs/zerolog"
)

// SessionFactory builds a session controller for one (contest, user) pair.
// The hub owns the observer wiring; everything else (gateways, workspace
// store, clock) is bound by the factory. userToken is the connection's own
// credential so platform and judge calls are attributed to the participant,
// not to the service.
type SessionFactory func(contestID, userID, userToken string, observer session.Observer) *session.Controller

type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	Register    chan *Client
	Unregister  chan *Client
	mu          sync.RWMutex
	logger      zerolog.Logger
	rooms       *RoomManager
	newSession  SessionFactory
	metrics     *metrics.Metrics
	presence    *presence.Manager
}

func NewHub(factory SessionFactory, m *metrics.Metrics, p *presence.Manager, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		rooms:       NewRoomManager(),
		newSession:  factory,
		metrics:     m,
		presence:    p,
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true

	h.metrics.IncConnections()

	h.logger.Info().
		Str("clientId", client.ID).
		Str("userId", client.UserID).
		Int("totalClients", len(h.clients)).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client)
	client.CloseSend()

	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.DecConnections()
	h.releaseSession(client)

	// The connection is gone; this is a termination signal for the session.
	// The forced submission may take seconds, so it runs off the hub loop.
	if ctrl, guard := client.Session(); ctrl != nil && ctrl.Phase() != session.PhaseEnded {
		go guard.HostGone(context.Background())
	}

	h.logger.Info().
		Str("clientId", client.ID).
		Str("userId", client.UserID).
		Int("totalClients", total).
		Msg("Client unregistered")
}

// releaseSession drops the client's room membership and session gauges.
// Safe to call when the client never entered a contest.
func (h *Hub) releaseSession(client *Client) {
	contestID := client.ContestID()
	if contestID == "" {
		return
	}
	h.rooms.LeaveRoom(contestID, client)
	h.metrics.SessionEnded(contestID)
	if h.presence != nil {
		if err := h.presence.ContestLeft(context.Background(), contestID, client.UserID); err != nil {
			h.logger.Warn().Err(err).Str("contestId", contestID).Msg("Failed to clear contest presence")
		}
	}
}

func (h *Hub) ProcessMessage(client *Client, data []byte) {
	h.metrics.IncMessagesReceived()

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to parse message")
		h.sendError(client, "PARSE_ERROR", "Invalid message format", "")
		return
	}

	h.logger.Debug().
		Str("clientId", client.ID).
		Str("type", string(msg.Type)).
		Msg("Processing message")

	switch msg.Type {
	case protocol.MsgEnterContest:
		h.handleEnterContest(client, msg)
	case protocol.MsgJoinContest:
		h.handleJoinContest(client, msg)
	case protocol.MsgSelectProblem:
		h.handleSelectProblem(client, msg)
	case protocol.MsgUpdateCode:
		h.handleUpdateCode(client, msg)
	case protocol.MsgRunSample:
		h.handleRunSample(client, msg)
	case protocol.MsgSubmit:
		h.handleSubmit(client, msg)
	case protocol.MsgLeaveContest:
		h.handleLeaveContest(client, msg)
	case protocol.MsgLeaveConfirm:
		h.handleLeaveConfirm(client, msg)
	case protocol.MsgLeaveCancel:
		h.handleLeaveCancel(client, msg)
	case protocol.MsgPing:
		h.handlePing(client, msg)
	default:
		h.sendError(client, "UNKNOWN_TYPE", "Unknown message type", msg.RequestID)
	}
}

func (h *Hub) handleEnterContest(client *Client, msg *protocol.Message) {
	var payload protocol.EnterContestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid enter contest payload", msg.RequestID)
		return
	}
	if payload.ContestID == "" {
		h.sendError(client, "INVALID_CONTEST", "Contest ID is required", msg.RequestID)
		return
	}

	previousContest := client.ContestID()

	ctrl := h.newSession(payload.ContestID, client.UserID, client.Token, func(ev session.Event) {
		h.forwardEvent(client, payload.ContestID, ev)
	})
	guard := session.NewExitGuard(ctrl, h.logger)

	if !client.AttachSession(ctrl, guard) {
		h.sendError(client, "SESSION_ACTIVE", "A contest session is already active on this connection", msg.RequestID)
		return
	}

	// An ended session was just replaced; drop its room membership.
	if previousContest != "" {
		h.rooms.LeaveRoom(previousContest, client)
		h.metrics.SessionEnded(previousContest)
		if h.presence != nil {
			if err := h.presence.ContestLeft(context.Background(), previousContest, client.UserID); err != nil {
				h.logger.Warn().Err(err).Str("contestId", previousContest).Msg("Failed to clear contest presence")
			}
		}
	}

	state, err := ctrl.Load(context.Background())
	if err != nil {
		client.DetachSession()
		h.logger.Error().Err(err).
			Str("clientId", client.ID).
			Str("contestId", payload.ContestID).
			Msg("Session load failed")
		h.sendError(client, "LOAD_FAILED", "Could not load contest", msg.RequestID)
		return
	}

	room := h.rooms.JoinRoom(payload.ContestID, client)
	h.metrics.SessionStarted(payload.ContestID)
	if h.presence != nil {
		if err := h.presence.ContestJoined(context.Background(), payload.ContestID, client.UserID); err != nil {
			h.logger.Warn().Err(err).Str("contestId", payload.ContestID).Msg("Failed to record contest presence")
		}
	}

	h.logger.Info().
		Str("clientId", client.ID).
		Str("contestId", payload.ContestID).
		Str("phase", string(state.Phase)).
		Int("memberCount", room.ClientCount()).
		Msg("Client entered contest")

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgSessionState, state, msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) handleJoinContest(client *Client, msg *protocol.Message) {
	ctrl, _ := client.Session()
	if ctrl == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}

	if err := ctrl.Join(context.Background()); err != nil {
		h.sendError(client, errorCode(err), err.Error(), msg.RequestID)
		return
	}

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgSessionState, ctrl.Snapshot(), msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) handleSelectProblem(client *Client, msg *protocol.Message) {
	ctrl, _ := client.Session()
	if ctrl == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}

	var payload protocol.SelectProblemPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid select problem payload", msg.RequestID)
		return
	}

	lang, source, err := ctrl.SelectProblem(payload.ProblemID)
	if err != nil {
		h.sendError(client, errorCode(err), err.Error(), msg.RequestID)
		return
	}

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgProblemSelected, protocol.ProblemSelectedPayload{
		ProblemID: payload.ProblemID,
		Language:  string(lang),
		Source:    source,
	}, msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) handleUpdateCode(client *Client, msg *protocol.Message) {
	ctrl, _ := client.Session()
	if ctrl == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}

	var payload protocol.UpdateCodePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid update code payload", msg.RequestID)
		return
	}

	lang := contest.Language(payload.Language)
	if !lang.Valid() {
		h.sendError(client, "INVALID_LANGUAGE", "Unsupported language", msg.RequestID)
		return
	}

	// Edits are frequent and get no ack; failures are still reported.
	if err := ctrl.UpdateCode(lang, payload.Source); err != nil {
		h.sendError(client, errorCode(err), err.Error(), msg.RequestID)
	}
}

func (h *Hub) handleRunSample(client *Client, msg *protocol.Message) {
	ctrl, _ := client.Session()
	if ctrl == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}

	var payload protocol.RunSamplePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid run sample payload", msg.RequestID)
		return
	}

	lang := contest.Language(payload.Language)
	if !lang.Valid() {
		h.sendError(client, "INVALID_LANGUAGE", "Unsupported language", msg.RequestID)
		return
	}

	// Judging takes seconds; run it off the read loop so the connection
	// stays responsive to leave and disconnect handling.
	go func() {
		started := time.Now()
		report, err := ctrl.RunSample(context.Background(), payload.Source, lang)
		h.metrics.ObserveSampleRunLatency(time.Since(started).Seconds())
		if err != nil {
			h.sendError(client, errorCode(err), err.Error(), msg.RequestID)
			return
		}

		response, _ := protocol.NewMessageWithRequestID(protocol.MsgTestReport, report, msg.RequestID)
		h.SendToClient(client, response)
	}()
}

func (h *Hub) handleSubmit(client *Client, msg *protocol.Message) {
	ctrl, _ := client.Session()
	if ctrl == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}

	var payload protocol.SubmitPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid submit payload", msg.RequestID)
		return
	}

	lang := contest.Language(payload.Language)
	if !lang.Valid() {
		h.sendError(client, "INVALID_LANGUAGE", "Unsupported language", msg.RequestID)
		return
	}

	// The duplicate-submission guard inside the controller still rejects
	// synchronously: a second SUBMIT gets its error before the first
	// completes. Successful outcomes reach the client as session events.
	go func() {
		if _, err := ctrl.SubmitFinal(context.Background(), payload.Source, lang); err != nil {
			h.sendError(client, errorCode(err), err.Error(), msg.RequestID)
		}
	}()
}

func (h *Hub) handleLeaveContest(client *Client, msg *protocol.Message) {
	ctrl, guard := client.Session()
	if ctrl == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}

	if guard.RequestLeave() {
		response, _ := protocol.NewMessageWithRequestID(protocol.MsgLeavePrompt, protocol.LeavePromptPayload{
			ContestID: ctrl.ContestID(),
			Message:   "Leaving ends your participation. Unsubmitted work will be submitted on exit.",
		}, msg.RequestID)
		h.SendToClient(client, response)
		return
	}

	// Outside participation there is nothing to guard.
	ctrl.ForceExit(context.Background(), session.ReasonLeave)
}

func (h *Hub) handleLeaveConfirm(client *Client, msg *protocol.Message) {
	_, guard := client.Session()
	if guard == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}
	guard.ConfirmLeave(context.Background())
}

func (h *Hub) handleLeaveCancel(client *Client, msg *protocol.Message) {
	_, guard := client.Session()
	if guard == nil {
		h.sendError(client, "NO_SESSION", "Enter a contest first", msg.RequestID)
		return
	}
	guard.CancelLeave()
}

func (h *Hub) handlePing(client *Client, msg *protocol.Message) {
	response, _ := protocol.NewMessageWithRequestID(protocol.MsgPong, nil, msg.RequestID)
	h.SendToClient(client, response)
}

// forwardEvent converts a session event into the corresponding push message.
func (h *Hub) forwardEvent(client *Client, contestID string, ev session.Event) {
	switch ev.Kind {
	case session.EventClockTick:
		msg, _ := protocol.NewMessage(protocol.MsgClockTick, protocol.ClockTickPayload{
			ContestID:       contestID,
			RemainingMillis: ev.RemainingMillis,
		})
		h.SendToClient(client, msg)

	case session.EventPhaseChanged:
		if ev.Phase == session.PhaseEnded && ev.Reason != "" {
			h.metrics.IncForcedExit(ev.Reason)
		}
		msg, _ := protocol.NewMessage(protocol.MsgPhaseChanged, protocol.PhaseChangedPayload{
			ContestID: contestID,
			Phase:     string(ev.Phase),
			Reason:    ev.Reason,
		})
		h.SendToClient(client, msg)

	case session.EventSubmissionRecorded:
		h.metrics.IncSubmission(string(ev.Record.Kind), ev.Record.Forced)
		msg, _ := protocol.NewMessage(protocol.MsgSubmissionResult, ev.Record)
		h.SendToClient(client, msg)
	}
}

// ResolveSubmission applies an asynchronously judged verdict to every live
// session of the user in the given contest. Reports whether any session
// claimed the submission.
func (h *Hub) ResolveSubmission(userID, contestID, submissionID string, verdict contest.Verdict, score int) bool {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.userClients[userID]))
	for client := range h.userClients[userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	resolved := false
	for _, client := range clients {
		ctrl, _ := client.Session()
		if ctrl == nil || ctrl.ContestID() != contestID {
			continue
		}
		if ctrl.ResolveVerdict(submissionID, verdict, score) {
			resolved = true
		}
	}
	return resolved
}

// ForceEndContest terminates every live session of a contest. Forced
// submissions run concurrently per session, each under its own deadline.
func (h *Hub) ForceEndContest(contestID, reason string) int {
	room := h.rooms.GetRoom(contestID)
	if room == nil {
		return 0
	}

	clients := room.GetClients()
	for _, client := range clients {
		ctrl, _ := client.Session()
		if ctrl == nil {
			continue
		}
		go ctrl.ForceExit(context.Background(), reason)
	}

	h.logger.Info().
		Str("contestId", contestID).
		Str("reason", reason).
		Int("sessions", len(clients)).
		Msg("Forcing contest sessions to end")

	return len(clients)
}

func (h *Hub) SendToClient(client *Client, msg *protocol.Message) {
	data, err := msg.ToBytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize message")
		return
	}

	if client.QueueMessage(data) {
		h.metrics.IncMessagesSent()
		return
	}
	if client.SendClosed() {
		// Session teardown races unregistration; late pushes are dropped.
		return
	}
	h.logger.Warn().Str("clientId", client.ID).Msg("Client send buffer full, disconnecting")
	h.Unregister <- client
}

func (h *Hub) SendToUser(userID string, msg *protocol.Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.userClients[userID]))
	for client := range h.userClients[userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.SendToClient(client, msg)
	}
}

func (h *Hub) SendToContest(contestID string, msg *protocol.Message) {
	room := h.rooms.GetRoom(contestID)
	if room == nil {
		return
	}

	data, err := msg.ToBytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize message")
		return
	}

	for _, client := range room.GetClients() {
		if client.QueueMessage(data) {
			h.metrics.IncMessagesSent()
		}
	}
}

func (h *Hub) Broadcast(msg *protocol.Message) {
	data, err := msg.ToBytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.QueueMessage(data)
	}
}

func (h *Hub) sendError(client *Client, code, message, requestID string) {
	errMsg, _ := protocol.NewErrorMessage(code, message, requestID)
	h.SendToClient(client, errMsg)
}

// errorCode maps session and gateway errors to wire codes the client can
// branch on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrSubmissionInFlight):
		return "SUBMISSION_IN_FLIGHT"
	case errors.Is(err, session.ErrUnknownProblem):
		return "UNKNOWN_PROBLEM"
	case errors.Is(err, session.ErrNotParticipating):
		return "NOT_PARTICIPATING"
	case errors.Is(err, session.ErrNotBrowsing):
		return "NOT_BROWSING"
	case errors.Is(err, session.ErrContestNotRunning):
		return "CONTEST_NOT_RUNNING"
	case errors.Is(err, gateway.ErrAlreadyRegistered):
		return "ALREADY_REGISTERED"
	case errors.Is(err, gateway.ErrCapacityExceeded):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, gateway.ErrContestNotOpen):
		return "REGISTRATION_CLOSED"
	default:
		return "INTERNAL_ERROR"
	}
}

func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"totalClients": len(h.clients),
		"totalUsers":   len(h.userClients),
		"rooms":        h.rooms.GetStats(),
	}
}
