package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"examgrader/config"
	"examgrader/internal/apperr"
	"examgrader/internal/model"
	"examgrader/internal/repository"
	"examgrader/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGrading struct {
	ready  bool
	result *model.GradingResult
	err    error
}

func (f *fakeGrading) Ready() bool { return f.ready }

func (f *fakeGrading) GradeAnswer(_ context.Context, paperID, answerText string, _ int) (*model.GradingResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(answerText) == "" {
		return &model.GradingResult{
			Score: 0, Grade: "U", Feedback: "No answer was provided for grading.",
			SectionScores: model.SectionScores{SectionA: "N/A", SectionB: "N/A", SectionC: "N/A"},
			Outline:       "No answer submitted.",
		}, nil
	}
	return f.result, nil
}

type fakeOutline struct {
	ready   bool
	outline string
	err     error
}

func (f *fakeOutline) Ready() bool { return f.ready }

func (f *fakeOutline) GenerateOutline(_ context.Context, paperID, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.outline, nil
}

type testEnv struct {
	router  *gin.Engine
	grading *fakeGrading
	outline *fakeOutline
}

func gradedResult() *model.GradingResult {
	return &model.GradingResult{
		Score:         46,
		Grade:         "A",
		Feedback:      "Strong application and analysis throughout the essay.",
		SectionScores: model.SectionScores{SectionA: "N/A", SectionB: "N/A", SectionC: "N/A"},
		Outline:       "# Model outline",
	}
}

// newTestEnv wires a controller over a real repository on in-memory SQLite
// with scripted grading/outline backends.
func newTestEnv(t *testing.T, withDB bool) *testEnv {
	t.Helper()

	var db *gorm.DB
	if withDB {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		if err := db.AutoMigrate(&model.Attempt{}); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	grading := &fakeGrading{ready: true, result: gradedResult()}
	outline := &fakeOutline{ready: true, outline: "# Outline\n- point"}
	attemptSvc := service.NewAttemptService(repository.NewAttemptRepository(db), grading)
	cfg := &config.Config{Environment: "production"}
	ctrl := NewExamController(attemptSvc, grading, outline, db, cfg)

	router := gin.New()
	router.Any("/api/v1/exam", ctrl.Dispatch)
	router.GET("/health", ctrl.Health)

	return &testEnv{router: router, grading: grading, outline: outline}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
		}
	}
	return w, parsed
}

func TestUnknownAndMissingAction(t *testing.T) {
	env := newTestEnv(t, true)

	w, resp := env.do(t, http.MethodPost, "/api/v1/exam", `{"action": "mystery"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", w.Code)
	}
	if resp["error"] == "" {
		t.Error("expected error message for unknown action")
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/exam", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing action status = %d, want 400", w.Code)
	}
}

func TestOptionsWithoutOriginReturnsNoContent(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/exam", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestMalformedJSONBody(t *testing.T) {
	env := newTestEnv(t, true)
	w, resp := env.do(t, http.MethodPost, "/api/v1/exam", `{"action": "submit_attempt"`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp["error"] != "Invalid JSON body" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestMethodActionMatrix(t *testing.T) {
	env := newTestEnv(t, true)
	tests := []struct {
		action string
		method string
	}{
		{"submit_attempt", http.MethodGet},
		{"submit_attempt", http.MethodDelete},
		{"delete_attempt", http.MethodGet},
		{"get_attempt_details", http.MethodPost},
		{"get_attempt_details", http.MethodDelete},
		{"generate_outline_only", http.MethodGet},
		{"generate_outline_only", http.MethodDelete},
	}
	for _, tt := range tests {
		t.Run(tt.action+"_"+tt.method, func(t *testing.T) {
			target := fmt.Sprintf("/api/v1/exam?action=%s&userId=alice&attemptId=x&paperId=p", tt.action)
			w, resp := env.do(t, tt.method, target, "")
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", w.Code)
			}
			if msg, _ := resp["error"].(string); !strings.Contains(msg, "Method Not Allowed") {
				t.Errorf("error = %q, should name the allowed method", msg)
			}
		})
	}
}

func TestMissingUserID(t *testing.T) {
	env := newTestEnv(t, true)
	for _, action := range []string{"submit_attempt", "delete_attempt", "get_attempt_details"} {
		t.Run(action, func(t *testing.T) {
			method := http.MethodPost
			if action == "get_attempt_details" {
				method = http.MethodGet
			}
			w, resp := env.do(t, method, "/api/v1/exam?action="+action, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if msg, _ := resp["error"].(string); !strings.Contains(msg, action) {
				t.Errorf("error %q should name the action", msg)
			}
		})
	}
}

func TestServiceReadinessGates(t *testing.T) {
	env := newTestEnv(t, true)
	env.grading.ready = false
	env.outline.ready = false

	for _, action := range []string{"submit_attempt", "generate_outline_only"} {
		w, _ := env.do(t, http.MethodPost, "/api/v1/exam?action="+action+"&userId=alice", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s without grading backend: status = %d, want 503", action, w.Code)
		}
	}

	noDB := newTestEnv(t, false)
	for _, tc := range []struct {
		action string
		method string
	}{
		{"submit_attempt", http.MethodPost},
		{"delete_attempt", http.MethodPost},
		{"get_attempt_details", http.MethodGet},
	} {
		w, _ := noDB.do(t, tc.method, "/api/v1/exam?action="+tc.action+"&userId=alice", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s without store: status = %d, want 503", tc.action, w.Code)
		}
	}
	// Outline generation does not need the store.
	w, _ := noDB.do(t, http.MethodPost, "/api/v1/exam", `{"action": "generate_outline_only", "paperId": "econ-9708-11-mj-25"}`)
	if w.Code != http.StatusOK {
		t.Errorf("outline without store: status = %d, want 200", w.Code)
	}
}

func TestSubmitMissingFields(t *testing.T) {
	env := newTestEnv(t, true)
	tests := []struct {
		name string
		body string
	}{
		{"no paperId", `{"action": "submit_attempt", "userId": "alice", "answerText": "x"}`},
		{"neither answer nor file", `{"action": "submit_attempt", "userId": "alice", "paperId": "econ-9708-11-mj-25"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodPost, "/api/v1/exam", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if msg, _ := resp["error"].(string); !strings.Contains(msg, "Missing required fields") {
				t.Errorf("error = %q", msg)
			}
		})
	}
}

func TestSubmitWithFileOnly(t *testing.T) {
	env := newTestEnv(t, true)
	body := `{"action": "submit_attempt", "payload": {"paperId": "econ-9708-11-mj-25", "userId": "alice", "fileUrl": "https://blob.example/a.pdf", "fileName": "a.pdf"}}`
	w, resp := env.do(t, http.MethodPost, "/api/v1/exam", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", w.Code, resp)
	}
	if resp["fileUrl"] != "https://blob.example/a.pdf" {
		t.Errorf("fileUrl = %v", resp["fileUrl"])
	}
	// File-only submissions grade the empty answer text: floor result.
	if resp["grade"] != "U" {
		t.Errorf("grade = %v, want U floor result", resp["grade"])
	}
}

func TestSubmitGradingFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.grading.err = apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("missing feedback field"))

	body := `{"action": "submit_attempt", "paperId": "econ-9708-11-mj-25", "userId": "alice", "answerText": "x"}`
	w, resp := env.do(t, http.MethodPost, "/api/v1/exam", body)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if resp["error"] != "AI grading failed." {
		t.Errorf("error = %v", resp["error"])
	}
	if details, _ := resp["details"].(string); !strings.Contains(details, "missing feedback field") {
		t.Errorf("details = %q, should carry the grading diagnostic", details)
	}
}

func TestOutlineMissingPaperID(t *testing.T) {
	env := newTestEnv(t, true)
	w, resp := env.do(t, http.MethodPost, "/api/v1/exam", `{"action": "generate_outline_only"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if msg, _ := resp["error"].(string); !strings.Contains(msg, "paperId") {
		t.Errorf("error = %q", msg)
	}
}

func TestOutlineFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.outline.err = &apperr.OutlineError{Err: fmt.Errorf("upstream 500")}
	w, resp := env.do(t, http.MethodPost, "/api/v1/exam", `{"action": "generate_outline_only", "paperId": "econ-9708-11-mj-25"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if resp["error"] != "AI outline generation failed." {
		t.Errorf("error = %v, must not be presented as a grading failure", resp["error"])
	}
}

func TestDeleteMissingAttemptID(t *testing.T) {
	env := newTestEnv(t, true)
	w, _ := env.do(t, http.MethodPost, "/api/v1/exam", `{"action": "delete_attempt", "userId": "alice"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetMissingAttemptID(t *testing.T) {
	env := newTestEnv(t, true)
	w, _ := env.do(t, http.MethodGet, "/api/v1/exam?action=get_attempt_details&userId=alice", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSubmitThenGetThenDelete(t *testing.T) {
	env := newTestEnv(t, true)

	body := `{"action": "submit_attempt", "payload": {"paperId": "econ-9708-11-mj-25", "userId": "alice", "answerText": "Supply and demand analysis...", "timeSpent": 1800}}`
	w, resp := env.do(t, http.MethodPost, "/api/v1/exam", body)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %v", w.Code, resp)
	}
	if resp["success"] != true {
		t.Error("submit response should carry success: true")
	}
	score, _ := resp["score"].(float64)
	if score < 0 || score > 60 {
		t.Errorf("score = %v, want within [0,60]", resp["score"])
	}
	grade, _ := resp["grade"].(string)
	if !strings.Contains("ABCDEU", grade) || grade == "" {
		t.Errorf("grade = %q", grade)
	}
	sections, _ := resp["sectionScores"].(map[string]any)
	if sections["sectionA"] != "N/A" {
		t.Errorf("sectionA = %v, want N/A for a single-essay paper", sections["sectionA"])
	}
	attemptID, _ := resp["attemptId"].(string)
	if !strings.HasPrefix(attemptID, "alice_econ-9708-11-mj-25_") {
		t.Fatalf("attemptId = %q", attemptID)
	}

	// Retrieve the persisted record.
	w, got := env.do(t, http.MethodGet, "/api/v1/exam?action=get_attempt_details&attemptId="+attemptID+"&userId=alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %v", w.Code, got)
	}
	if got["attemptId"] != attemptID {
		t.Errorf("retrieved attemptId = %v", got["attemptId"])
	}
	if got["timeSpent"] != float64(1800) {
		t.Errorf("timeSpent = %v, want 1800", got["timeSpent"])
	}

	// Wrong user gets a 404, not someone else's record.
	w, _ = env.do(t, http.MethodGet, "/api/v1/exam?action=get_attempt_details&attemptId="+attemptID+"&userId=bob", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want 404", w.Code)
	}

	// Delete it, echoing the related paper id.
	delBody := fmt.Sprintf(`{"action": "delete_attempt", "attemptId": %q, "userId": "alice", "paperId": "econ-9708-11-mj-25"}`, attemptID)
	w, del := env.do(t, http.MethodDelete, "/api/v1/exam", delBody)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %v", w.Code, del)
	}
	if del["deletedAttemptId"] != attemptID {
		t.Errorf("deletedAttemptId = %v", del["deletedAttemptId"])
	}
	if del["relatedPaperId"] != "econ-9708-11-mj-25" {
		t.Errorf("relatedPaperId = %v", del["relatedPaperId"])
	}

	// Gone now.
	w, _ = env.do(t, http.MethodGet, "/api/v1/exam?action=get_attempt_details&attemptId="+attemptID+"&userId=alice", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	w, notFound := env.do(t, http.MethodPost, "/api/v1/exam", delBody)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
	if msg, _ := notFound["error"].(string); !strings.Contains(msg, attemptID) {
		t.Errorf("404 error %q should name the missing id", msg)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)
	w, resp := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["grading"] != true || resp["store"] != true {
		t.Errorf("health = %v", resp)
	}

	noDB := newTestEnv(t, false)
	_, resp = noDB.do(t, http.MethodGet, "/health", "")
	if resp["store"] != false {
		t.Errorf("store readiness = %v, want false", resp["store"])
	}
}
