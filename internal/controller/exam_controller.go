package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"examgrader/config"
	"examgrader/internal/apperr"
	"examgrader/internal/dto"
	"examgrader/internal/model"
	"examgrader/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ExamController is the single HTTP entry point. It demultiplexes on the
// "action" discriminator (body field or query parameter) to one of the four
// exam operations, validates required parameters per action, and maps
// internal failures to HTTP responses. It holds no state beyond request
// scope; side effects live in the services it delegates to.
type ExamController struct {
	attemptService service.AttemptService
	gradingService service.GradingService
	outlineService service.OutlineService
	db             *gorm.DB
	cfg            *config.Config
}

func NewExamController(
	attemptService service.AttemptService,
	gradingService service.GradingService,
	outlineService service.OutlineService,
	db *gorm.DB,
	cfg *config.Config,
) *ExamController {
	return &ExamController{
		attemptService: attemptService,
		gradingService: gradingService,
		outlineService: outlineService,
		db:             db,
		cfg:            cfg,
	}
}

func needsStore(action string) bool {
	switch action {
	case dto.ActionSubmitAttempt, dto.ActionDeleteAttempt, dto.ActionGetAttemptDetails:
		return true
	}
	return false
}

// Dispatch handles every request to the exam endpoint.
func (c *ExamController) Dispatch(ctx *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("path", ctx.Request.URL.Path).Msg("Unhandled error during dispatch")
			c.internalError(ctx, fmt.Errorf("%v", r))
		}
	}()

	// The CORS middleware only answers preflights that carry an Origin
	// header; a bare OPTIONS would otherwise fall through to action
	// dispatch and fail validation.
	if ctx.Request.Method == http.MethodOptions {
		ctx.Status(http.StatusNoContent)
		return
	}

	var body []byte
	if ctx.Request.Body != nil {
		var err error
		body, err = io.ReadAll(ctx.Request.Body)
		if err != nil {
			c.internalError(ctx, err)
			return
		}
	}

	env, err := dto.ParseEnvelope(body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	action := env.Action
	if action == "" {
		action = ctx.Query("action")
	}

	aiReady := true
	switch action {
	case dto.ActionSubmitAttempt:
		aiReady = c.gradingService.Ready()
	case dto.ActionGenerateOutline:
		aiReady = c.outlineService.Ready()
	}
	if !aiReady {
		ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: (&apperr.ServiceUnavailableError{Service: "AI service"}).Error()})
		return
	}
	if needsStore(action) && c.db == nil {
		ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: (&apperr.ServiceUnavailableError{Service: "Database service"}).Error()})
		return
	}

	userID := c.userIDFrom(ctx, env)
	if userID == "" && needsStore(action) {
		c.validationError(ctx, apperr.NewValidation("Missing userId for action: %s", action))
		return
	}

	switch action {
	case dto.ActionSubmitAttempt:
		if !c.requireMethod(ctx, "POST", http.MethodPost) {
			return
		}
		c.handleSubmitAttempt(ctx, env, userID)

	case dto.ActionDeleteAttempt:
		if !c.requireMethod(ctx, "POST or DELETE", http.MethodPost, http.MethodDelete) {
			return
		}
		c.handleDeleteAttempt(ctx, env, userID)

	case dto.ActionGetAttemptDetails:
		if !c.requireMethod(ctx, "GET", http.MethodGet) {
			return
		}
		c.handleGetAttemptDetails(ctx, userID)

	case dto.ActionGenerateOutline:
		if !c.requireMethod(ctx, "POST", http.MethodPost) {
			return
		}
		c.handleGenerateOutline(ctx, env)

	default:
		c.validationError(ctx, apperr.NewValidation("Unknown action or missing action parameter."))
	}
}

// Health reports readiness of the grading backend and the attempt store.
func (c *ExamController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Grading: c.gradingService.Ready(),
		Store:   c.db != nil,
	})
}

// userIDFrom pulls userId from the payload (nested or flattened) or falls
// back to the query string, mirroring how clients actually send it.
func (c *ExamController) userIDFrom(ctx *gin.Context, env *dto.ActionEnvelope) string {
	var probe struct {
		UserID string `json:"userId"`
	}
	if err := env.DecodePayload(&probe); err == nil && probe.UserID != "" {
		return probe.UserID
	}
	return ctx.Query("userId")
}

func (c *ExamController) requireMethod(ctx *gin.Context, allowedLabel string, allowed ...string) bool {
	for _, m := range allowed {
		if ctx.Request.Method == m {
			return true
		}
	}
	ctx.JSON(http.StatusMethodNotAllowed, dto.ErrorResponse{Error: (&apperr.MethodNotAllowedError{Allowed: allowedLabel}).Error()})
	return false
}

func (c *ExamController) handleSubmitAttempt(ctx *gin.Context, env *dto.ActionEnvelope, userID string) {
	var req dto.SubmitAttemptRequest
	if err := env.DecodePayload(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid submit_attempt payload", Details: err.Error()})
		return
	}
	if req.UserID == "" {
		req.UserID = userID
	}

	hasFile := req.FileURL != nil && *req.FileURL != ""
	if req.PaperID == "" || req.UserID == "" || (req.AnswerText == "" && !hasFile) {
		c.validationError(ctx, apperr.NewValidation("Missing required fields (paperId, userId, and answerText or fileUrl)."))
		return
	}

	attempt, err := c.attemptService.Submit(ctx.Request.Context(), req)
	if err != nil {
		var gerr *apperr.GradingError
		if errors.As(err, &gerr) {
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "AI grading failed.", Details: gerr.Err.Error()})
			return
		}
		var perr *apperr.PersistenceError
		if errors.As(err, &perr) {
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to save attempt data."})
			return
		}
		c.internalError(ctx, err)
		return
	}

	resp := dto.SubmitAttemptResponse{
		Success: true,
		Message: "Attempt submitted and graded successfully.",
	}
	resp.AttemptResponse = toAttemptResponse(attempt)
	ctx.JSON(http.StatusOK, resp)
}

func (c *ExamController) handleDeleteAttempt(ctx *gin.Context, env *dto.ActionEnvelope, userID string) {
	var req dto.DeleteAttemptRequest
	if err := env.DecodePayload(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid delete_attempt payload", Details: err.Error()})
		return
	}
	if req.UserID == "" {
		req.UserID = userID
	}
	if req.AttemptID == "" || req.UserID == "" {
		c.validationError(ctx, apperr.NewValidation("Missing attemptId or userId for deletion."))
		return
	}

	if err := c.attemptService.Delete(req.UserID, req.AttemptID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: fmt.Sprintf("Attempt %s not found.", req.AttemptID)})
			return
		}
		var perr *apperr.PersistenceError
		if errors.As(err, &perr) {
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete attempt."})
			return
		}
		c.internalError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.DeleteAttemptResponse{
		Success:          true,
		Message:          fmt.Sprintf("Attempt %s deleted.", req.AttemptID),
		DeletedAttemptID: req.AttemptID,
		RelatedPaperID:   req.PaperID,
	})
}

func (c *ExamController) handleGetAttemptDetails(ctx *gin.Context, userID string) {
	attemptID := ctx.Query("attemptId")
	if attemptID == "" {
		c.validationError(ctx, apperr.NewValidation("Missing attemptId parameter."))
		return
	}

	attempt, err := c.attemptService.Get(userID, attemptID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: fmt.Sprintf("Attempt %s not found.", attemptID)})
			return
		}
		var perr *apperr.PersistenceError
		if errors.As(err, &perr) {
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to retrieve attempt details."})
			return
		}
		c.internalError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toAttemptResponse(attempt))
}

func (c *ExamController) handleGenerateOutline(ctx *gin.Context, env *dto.ActionEnvelope) {
	var req dto.GenerateOutlineRequest
	if err := env.DecodePayload(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid generate_outline_only payload", Details: err.Error()})
		return
	}
	if req.PaperID == "" {
		c.validationError(ctx, apperr.NewValidation("Missing paperId for outline generation."))
		return
	}

	outline, err := c.outlineService.GenerateOutline(ctx.Request.Context(), req.PaperID, req.QuestionText)
	if err != nil {
		var oerr *apperr.OutlineError
		if errors.As(err, &oerr) {
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "AI outline generation failed.", Details: oerr.Err.Error()})
			return
		}
		c.internalError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.GenerateOutlineResponse{
		Success: true,
		PaperID: req.PaperID,
		Outline: outline,
	})
}

func (c *ExamController) validationError(ctx *gin.Context, verr *apperr.ValidationError) {
	ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: verr.Message})
}

// internalError answers an unhandled failure. The raw message is exposed
// only in a development context so production does not leak internals.
func (c *ExamController) internalError(ctx *gin.Context, err error) {
	log.Error().Err(err).Msg("Internal server error")
	details := "An internal server error occurred."
	if c.cfg.IsDevelopment() {
		details = err.Error()
	}
	ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal Server Error", Details: details})
}

func toAttemptResponse(attempt *model.Attempt) dto.AttemptResponse {
	var resp dto.AttemptResponse
	if err := copier.Copy(&resp, attempt); err != nil {
		log.Warn().Err(err).Msg("Failed to map attempt to response DTO")
	}
	return resp
}
