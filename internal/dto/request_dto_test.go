package dto

import (
	"encoding/json"
	"testing"
)

func TestSecondsCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Seconds
	}{
		{"number", `{"t": 1800}`, 1800},
		{"numeric string", `{"t": "900"}`, 900},
		{"float truncated", `{"t": 90.9}`, 90},
		{"null", `{"t": null}`, 0},
		{"garbage", `{"t": "soon"}`, 0},
		{"negative", `{"t": -5}`, 0},
		{"absent", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				T Seconds `json:"t"`
			}
			if err := json.Unmarshal([]byte(tt.raw), &v); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if v.T != tt.want {
				t.Errorf("Seconds = %d, want %d", v.T, tt.want)
			}
		})
	}
}

func TestEnvelopeNestedPayload(t *testing.T) {
	body := []byte(`{"action": "submit_attempt", "payload": {"paperId": "econ-9708-11-mj-25", "userId": "alice", "answerText": "hi", "timeSpent": "120"}}`)
	env, err := ParseEnvelope(body)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Action != "submit_attempt" {
		t.Errorf("Action = %q", env.Action)
	}

	var req SubmitAttemptRequest
	if err := env.DecodePayload(&req); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if req.PaperID != "econ-9708-11-mj-25" || req.UserID != "alice" || req.TimeSpent != 120 {
		t.Errorf("req = %+v", req)
	}
}

func TestEnvelopeFlattenedPayload(t *testing.T) {
	body := []byte(`{"action": "delete_attempt", "attemptId": "alice_x_1", "userId": "alice", "paperId": "econ-9708-11-mj-25"}`)
	env, err := ParseEnvelope(body)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}

	var req DeleteAttemptRequest
	if err := env.DecodePayload(&req); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if req.AttemptID != "alice_x_1" || req.UserID != "alice" || req.PaperID != "econ-9708-11-mj-25" {
		t.Errorf("req = %+v", req)
	}
}

func TestEnvelopeMalformedBody(t *testing.T) {
	if _, err := ParseEnvelope([]byte(`{"action":`)); err == nil {
		t.Error("malformed JSON should fail envelope parsing")
	}
}

func TestEnvelopeEmptyBody(t *testing.T) {
	env, err := ParseEnvelope(nil)
	if err != nil {
		t.Fatalf("ParseEnvelope(nil): %v", err)
	}
	if env.Action != "" {
		t.Errorf("Action = %q, want empty", env.Action)
	}
	var req SubmitAttemptRequest
	if err := env.DecodePayload(&req); err != nil {
		t.Fatalf("DecodePayload on empty body: %v", err)
	}
}
