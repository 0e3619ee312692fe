package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/formpilot/formpilot/internal/ratelimit"
	"github.com/formpilot/formpilot/internal/workflow"
	"github.com/formpilot/formpilot/pkg/models"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	orc     *workflow.Orchestrator
	limiter *ratelimit.Limiter
}

// NewHandler creates a new HTTP handler
func NewHandler(orc *workflow.Orchestrator) *Handler {
	return &Handler{orc: orc}
}

// validated is implemented by every request body.
type validated interface {
	Validate() error
}

// decode parses and validates a request body before it can reach a
// session; malformed input fails fast here.
func decode(r *http.Request, req validated) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return models.NewValidationError("invalid request body: %v", err)
	}
	return req.Validate()
}

// Init handles POST /v1/init
func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	var req models.InitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.Init(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Execute handles POST /v1/execute
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req models.ExecuteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// FillForm handles POST /v1/fill-form
func (h *Handler) FillForm(w http.ResponseWriter, r *http.Request) {
	var req models.FillFormRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.FillForm(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Click handles POST /v1/click
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	var req models.ClickRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.Click(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Submit handles POST /v1/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Input handles POST /v1/input
func (h *Handler) Input(w http.ResponseWriter, r *http.Request) {
	var req models.InputRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.SubmitInput(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Analyze handles POST /v1/analyze
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Screenshot handles POST /v1/screenshot
func (h *Handler) Screenshot(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.Screenshot(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Close handles POST /v1/close
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.orc.Close(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.limiter != nil {
		h.limiter.Forget(req.SessionID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses; every failure
// is the uniform {success:false, error} shape.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		validationErr *models.ValidationError
		stateErr      *models.InvalidStateError
		initErr       *models.InitializationError
		actionErr     *models.ActionError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyRunning),
		errors.Is(err, models.ErrVerificationPending),
		errors.Is(err, models.ErrNoPendingVerification),
		errors.Is(err, models.ErrVerificationCancelled),
		errors.As(err, &stateErr):
		status = http.StatusConflict
	case errors.As(err, &initErr), errors.As(err, &actionErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, models.ErrorResponse{Success: false, Error: err.Error()})
}
