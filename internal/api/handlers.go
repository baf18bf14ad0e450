package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/pocportal/internal/dashboard"
	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/store"
	"github.com/hyperengineering/pocportal/internal/types"
	"github.com/hyperengineering/pocportal/internal/validation"
)

// maxBodyBytes caps request bodies; heartbeats with full catalog metadata
// are the largest payloads.
const maxBodyBytes = 1 << 20

// Handler implements the API handlers
type Handler struct {
	store      store.Store
	classifier *lifecycle.Classifier
	apiKey     string
	version    string
	loc        *time.Location
	now        func() time.Time
}

// NewHandler creates a new Handler with store.Store interface. Classification
// and dashboard requests are evaluated in loc; nil means the local zone.
func NewHandler(s store.Store, c *lifecycle.Classifier, apiKey, version string, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		store:      s,
		classifier: c,
		apiKey:     apiKey,
		version:    version,
		loc:        loc,
		now:        time.Now,
	}
}

// asOf is the evaluation time for r: the pinned as_of or now, in h.loc.
func (h *Handler) asOf(r *http.Request) time.Time {
	return lifecycle.EvaluationTime(AsOfFromContext(r.Context(), h.now()), h.loc)
}

// ClassificationResponse is returned by GET /api/v1/pocs/{uid}/classification.
type ClassificationResponse struct {
	POC            types.POC          `json:"poc"`
	Assignments    []types.Assignment `json:"assignments"`
	Classification lifecycle.Result   `json:"classification"`
	StatusLabel    string             `json:"status_label"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:         "healthy",
		Version:        h.version,
		POCCount:       stats.POCCount,
		ActivePOCCount: stats.ActivePOCCount,
		Timestamp:      h.now().UTC().Format(time.RFC3339),
	})
}

// Register handles POST /api/v1/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateRegisterRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	res, err := h.store.RegisterPOC(r.Context(), req, h.now())
	if err != nil {
		slog.Error("register failed", "component", "api", "action", "register", "error", err)
		MapStoreError(w, r, err)
		return
	}

	msg := "POC already registered"
	if res.IsNew {
		msg = "POC registered"
	}
	slog.Info("poc registered", "component", "api", "action", "register",
		"poc_uid", res.POCUID, "is_new", res.IsNew, "user_created", res.UserCreated)

	writeJSON(w, http.StatusOK, types.RegisterResponse{
		Status:      "ok",
		POCUID:      res.POCUID,
		IsNew:       res.IsNew,
		UserCreated: res.UserCreated,
		UserEmail:   res.UserEmail,
		Message:     msg,
	})
}

// Deregister handles POST /api/v1/deregister. An unknown poc_uid is not an
// error; the response says so.
func (h *Handler) Deregister(w http.ResponseWriter, r *http.Request) {
	var req types.DeregisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateDeregisterRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	found, err := h.store.DeregisterPOC(r.Context(), req.POCUID, h.now())
	if err != nil {
		slog.Error("deregister failed", "component", "api", "action", "deregister", "poc_uid", req.POCUID, "error", err)
		MapStoreError(w, r, err)
		return
	}

	msg := "POC not found"
	if found {
		msg = "POC deregistered"
		slog.Info("poc deregistered", "component", "api", "action", "deregister", "poc_uid", req.POCUID)
	}
	writeJSON(w, http.StatusOK, types.DeregisterResponse{Status: "ok", POCUID: req.POCUID, Message: msg})
}

// Heartbeat handles POST /api/v1/heartbeat
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateHeartbeatRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	n, err := h.store.RecordHeartbeat(r.Context(), req.POCUID, req.UseCases, h.now())
	if err != nil {
		logStoreError("heartbeat", req.POCUID, err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.HeartbeatResponse{Status: "ok", POCUID: req.POCUID, UseCasesProcessed: n})
}

// CompleteUseCase handles POST /api/v1/complete_use_case
func (h *Handler) CompleteUseCase(w http.ResponseWriter, r *http.Request) {
	var req types.CompleteUseCaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateCompleteUseCaseRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	err := h.store.SetUseCaseCompletion(r.Context(), req.POCUID, req.UseCaseCode, *req.Completed, h.now())
	if err != nil {
		logStoreError("complete_use_case", req.POCUID, err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.CompleteUseCaseResponse{
		Status:      "ok",
		POCUID:      req.POCUID,
		UseCaseCode: req.UseCaseCode,
		Completed:   *req.Completed,
	})
}

// Rating handles POST /api/v1/rating
func (h *Handler) Rating(w http.ResponseWriter, r *http.Request) {
	var req types.RatingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateRatingRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	if err := h.store.SetRating(r.Context(), req.POCUID, req.UseCaseCode, *req.Rating, h.now()); err != nil {
		logStoreError("rating", req.POCUID, err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.RatingResponse{
		Status:      "ok",
		POCUID:      req.POCUID,
		UseCaseCode: req.UseCaseCode,
		Rating:      *req.Rating,
	})
}

// Feedback handles POST /api/v1/feedback
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req types.FeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateFeedbackRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	id, err := h.store.AddComment(r.Context(), req.POCUID, req.UseCaseCode, req.Kind, req.Text, h.now())
	if err != nil {
		logStoreError("feedback", req.POCUID, err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.FeedbackResponse{
		Status:      "ok",
		POCUID:      req.POCUID,
		UseCaseCode: req.UseCaseCode,
		CommentID:   id,
	})
}

// UpdateOutcome handles PATCH /api/v1/pocs/{uid}
func (h *Handler) UpdateOutcome(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := validation.ValidatePOCUID("uid", uid); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	var patch types.OutcomeUpdate
	if !decodeJSON(w, r, &patch) {
		return
	}
	if errs := validation.ValidateOutcomeUpdate(patch); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	poc, err := h.store.UpdateOutcome(r.Context(), uid, patch, h.now())
	if err != nil {
		logStoreError("update_outcome", uid, err)
		MapStoreError(w, r, err)
		return
	}

	slog.Info("poc outcome updated", "component", "api", "action", "update_outcome", "poc_uid", uid)
	writeJSON(w, http.StatusOK, poc)
}

// Classification handles GET /api/v1/pocs/{uid}/classification
func (h *Handler) Classification(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := validation.ValidatePOCUID("uid", uid); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	poc, assignments, err := h.store.GetPOC(r.Context(), uid)
	if err != nil {
		logStoreError("classification", uid, err)
		MapStoreError(w, r, err)
		return
	}
	if assignments == nil {
		assignments = []types.Assignment{}
	}

	result := h.classifier.Classify(*poc, assignments, h.asOf(r))
	writeJSON(w, http.StatusOK, ClassificationResponse{
		POC:            *poc,
		Assignments:    assignments,
		Classification: result,
		StatusLabel:    result.StatusLabel(),
	})
}

// Dashboard handles GET /api/v1/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	fs, errs := parseFilterState(r)
	if len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	snap, err := h.store.LoadSnapshot(r.Context())
	if err != nil {
		slog.Error("load snapshot failed", "component", "api", "action", "dashboard", "error", err)
		MapStoreError(w, r, err)
		return
	}

	view := dashboard.Build(*snap, h.classifier, fs, h.asOf(r))
	writeJSON(w, http.StatusOK, view)
}

// parseFilterState reads the dashboard selection from the query string.
// owner, region, product and risk may repeat or carry comma-separated lists.
func parseFilterState(r *http.Request) (dashboard.FilterState, []validation.ValidationError) {
	q := r.URL.Query()
	fs := dashboard.FilterState{
		Owners:   splitParams(q["owner"]),
		Regions:  splitParams(q["region"]),
		Products: splitParams(q["product"]),
		Query:    strings.TrimSpace(q.Get("q")),
		Category: lifecycle.LifecycleState(strings.TrimSpace(q.Get("category"))),
	}

	for _, v := range splitParams(q["risk"]) {
		fs.Risks = append(fs.Risks, lifecycle.RiskState(v))
	}

	return fs, validation.ValidateDashboardFilter(fs)
}

func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// decodeJSON decodes the request body into dst, writing a 400 (or 413)
// problem and returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// logStoreError logs at warn for a missing POC and at error otherwise.
func logStoreError(action, uid string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("poc not found", "component", "api", "action", action, "poc_uid", uid)
		return
	}
	slog.Error("store operation failed", "component", "api", "action", action, "poc_uid", uid, "error", err)
}
