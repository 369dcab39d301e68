package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Action discriminator values accepted by the exam endpoint.
const (
	ActionSubmitAttempt     = "submit_attempt"
	ActionDeleteAttempt     = "delete_attempt"
	ActionGetAttemptDetails = "get_attempt_details"
	ActionGenerateOutline   = "generate_outline_only"
)

// ActionEnvelope is the raw request body. Clients send the payload fields
// either nested under "payload" or flattened at the top level; both are
// tolerated here and normalized into one strict per-action request type
// before any validation happens.
type ActionEnvelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
	raw     json.RawMessage
}

// ParseEnvelope decodes a request body into an envelope, keeping the full
// body around so a flattened payload can still be extracted.
func ParseEnvelope(body []byte) (*ActionEnvelope, error) {
	env := &ActionEnvelope{raw: body}
	if len(bytes.TrimSpace(body)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(body, env); err != nil {
		return nil, err
	}
	return env, nil
}

// DecodePayload unmarshals the nested payload if present, otherwise the body
// itself, into the per-action request struct.
func (e *ActionEnvelope) DecodePayload(v any) error {
	src := e.Payload
	if len(src) == 0 {
		src = e.raw
	}
	if len(bytes.TrimSpace(src)) == 0 {
		return nil
	}
	return json.Unmarshal(src, v)
}

// Seconds is a non-negative duration in seconds that tolerates sloppy client
// input: JSON numbers, numeric strings, null, or garbage all decode without
// error, with anything unparseable or negative coerced to 0.
type Seconds int

func (s *Seconds) UnmarshalJSON(data []byte) error {
	str := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if str == "" || str == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil || f < 0 {
		*s = 0
		return nil
	}
	*s = Seconds(int(f))
	return nil
}

type SubmitAttemptRequest struct {
	PaperID    string  `json:"paperId"`
	UserID     string  `json:"userId"`
	AnswerText string  `json:"answerText"`
	FileURL    *string `json:"fileUrl"`
	FileName   *string `json:"fileName"`
	TimeSpent  Seconds `json:"timeSpent"`
}

type DeleteAttemptRequest struct {
	AttemptID string `json:"attemptId"`
	UserID    string `json:"userId"`
	// PaperID is optional; echoed back as relatedPaperId for client-side
	// UI bookkeeping.
	PaperID string `json:"paperId"`
}

type GenerateOutlineRequest struct {
	PaperID      string `json:"paperId"`
	QuestionText string `json:"questionText"`
	UserID       string `json:"userId"`
}
