package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

// Client -> server
const (
	MsgEnterContest  MessageType = "ENTER_CONTEST"
	MsgJoinContest   MessageType = "JOIN_CONTEST"
	MsgSelectProblem MessageType = "SELECT_PROBLEM"
	MsgUpdateCode    MessageType = "UPDATE_CODE"
	MsgRunSample     MessageType = "RUN_SAMPLE"
	MsgSubmit        MessageType = "SUBMIT"
	MsgLeaveContest  MessageType = "LEAVE_CONTEST"
	MsgLeaveConfirm  MessageType = "LEAVE_CONFIRM"
	MsgLeaveCancel   MessageType = "LEAVE_CANCEL"
	MsgPing          MessageType = "PING"
)

// Server -> client
const (
	MsgConnected        MessageType = "CONNECTED"
	MsgSessionState     MessageType = "SESSION_STATE"
	MsgClockTick        MessageType = "CLOCK_TICK"
	MsgPhaseChanged     MessageType = "PHASE_CHANGED"
	MsgProblemSelected  MessageType = "PROBLEM_SELECTED"
	MsgTestReport       MessageType = "TEST_REPORT"
	MsgSubmissionResult MessageType = "SUBMISSION_RESULT"
	MsgLeavePrompt      MessageType = "LEAVE_PROMPT"
	MsgContestEvent     MessageType = "CONTEST_EVENT"
	MsgError            MessageType = "ERROR"
	MsgPong             MessageType = "PONG"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}

	return msg, nil
}

func NewMessageWithRequestID(msgType MessageType, payload interface{}, requestID string) (*Message, error) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	msg.RequestID = requestID
	return msg, nil
}

func NewErrorMessage(code, message, requestID string) (*Message, error) {
	return NewMessageWithRequestID(MsgError, ErrorPayload{
		Code:    code,
		Message: message,
	}, requestID)
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	return &msg, nil
}

func (m *Message) ToBytes() ([]byte, error) {
	return json.Marshal(m)
}
