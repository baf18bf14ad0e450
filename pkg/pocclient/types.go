package pocclient

import (
	"net/http"
	"time"

	"github.com/hyperengineering/pocportal/internal/dashboard"
	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/types"
)

// Config holds the client configuration
type Config struct {
	BaseURL    string        // Portal base URL, e.g. https://portal.example.com
	APIKey     string        // Shared secret sent as X-Api-Key
	Timeout    time.Duration // Per-request timeout (default: 30 seconds)
	HTTPClient *http.Client  // Optional; overrides Timeout when set
}

// Wire types shared with the server.
type (
	RegisterRequest         = types.RegisterRequest
	RegisterResponse        = types.RegisterResponse
	DeregisterResponse      = types.DeregisterResponse
	HeartbeatUseCase        = types.HeartbeatUseCase
	HeartbeatResponse       = types.HeartbeatResponse
	CompleteUseCaseResponse = types.CompleteUseCaseResponse
	RatingResponse          = types.RatingResponse
	FeedbackResponse        = types.FeedbackResponse
	CommentKind             = types.CommentKind
	OutcomeUpdate           = types.OutcomeUpdate
	POC                     = types.POC
	HealthResponse          = types.HealthResponse
	Assignment              = types.Assignment
	DashboardFilter         = dashboard.FilterState
	DashboardView           = dashboard.View
)

// Classification is one POC's derived state as returned by the portal.
type Classification struct {
	POC            POC              `json:"poc"`
	Assignments    []Assignment     `json:"assignments"`
	Classification lifecycle.Result `json:"classification"`
	StatusLabel    string           `json:"status_label"`
}

// Comment kinds accepted by Feedback.
const (
	KindFeedback = types.CommentFeedback
	KindQuestion = types.CommentQuestion
)
