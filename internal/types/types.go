package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the portal role carried by a user record.
type Role string

const (
	RoleSE      Role = "se"
	RoleManager Role = "manager"
	RoleAE      Role = "ae"
	RolePM      Role = "pm"
)

// User is a portal user. POCs reference their owning sales engineer by ID;
// the region used for dashboard filtering lives here, not on the POC.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Region      string    `json:"region,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommercialResult is the commercial outcome recorded for a POC.
type CommercialResult string

const (
	CommercialUnknown      CommercialResult = "unknown"
	CommercialWon          CommercialResult = "won"
	CommercialLost         CommercialResult = "lost"
	CommercialNoDecision   CommercialResult = "no_decision"
	CommercialDisqualified CommercialResult = "disqualified"
	CommercialOther        CommercialResult = "other"
)

// ParseCommercialResult maps a stored or submitted value onto the enum.
// Empty input is unknown; unrecognised non-empty input is other.
// The legacy spellings now_customer and not_correct_qualified are accepted.
func ParseCommercialResult(s string) CommercialResult {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "", "unknown":
		return CommercialUnknown
	case "won", "win", "now_customer":
		return CommercialWon
	case "lost", "loss":
		return CommercialLost
	case "no_decision":
		return CommercialNoDecision
	case "disqualified", "not_correct_qualified":
		return CommercialDisqualified
	default:
		return CommercialOther
	}
}

// Recorded reports whether a commercial outcome has been entered.
func (c CommercialResult) Recorded() bool {
	return c != "" && c != CommercialUnknown
}

// TechnicalResult is the technical outcome recorded for a POC.
type TechnicalResult string

const (
	TechnicalUnknown TechnicalResult = "unknown"
	TechnicalWin     TechnicalResult = "win"
	TechnicalLoss    TechnicalResult = "loss"
	TechnicalOther   TechnicalResult = "other"
)

// ParseTechnicalResult maps a stored or submitted value onto the enum.
func ParseTechnicalResult(s string) TechnicalResult {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return TechnicalUnknown
	case "win", "won":
		return TechnicalWin
	case "loss", "lost":
		return TechnicalLoss
	default:
		return TechnicalOther
	}
}

// UseCase is an immutable catalog template identified by (Code, Version).
type UseCase struct {
	ID             string   `json:"id"`
	Code           string   `json:"code"`
	Version        int      `json:"version"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	ProductFamily  string   `json:"product_family,omitempty"`
	Product        string   `json:"product,omitempty"`
	Category       string   `json:"category,omitempty"`
	Author         string   `json:"author,omitempty"`
	EstimateHours  *float64 `json:"estimate_hours,omitempty"`
	IsCustomerPrep bool     `json:"is_customer_prep"`
}

// AssignmentStatus is the explicit three-way state of an assignment.
type AssignmentStatus string

const (
	AssignmentUnassigned AssignmentStatus = "unassigned"
	AssignmentActive     AssignmentStatus = "active"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Assignment links a POC to a use case and carries its progress.
type Assignment struct {
	ID                    string     `json:"id"`
	POCID                 string     `json:"poc_id"`
	UseCaseID             string     `json:"use_case_id"`
	UseCase               *UseCase   `json:"use_case,omitempty"`
	IsActive              bool       `json:"is_active"`
	IsCompleted           bool       `json:"is_completed"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	Rating                *int       `json:"rating,omitempty"`
	EstimateHoursOverride *float64   `json:"estimate_hours_override,omitempty"`
	Order                 *int       `json:"order,omitempty"`
}

// Status derives the assignment state from the stored flags.
// Completed wins over active; neither flag set means unassigned.
func (a Assignment) Status() AssignmentStatus {
	switch {
	case a.IsCompleted:
		return AssignmentCompleted
	case a.IsActive:
		return AssignmentActive
	default:
		return AssignmentUnassigned
	}
}

// InScope reports whether the assignment counts toward progress.
func (a Assignment) InScope() bool {
	return a.Status() != AssignmentUnassigned
}

// IsPrepStep reports whether the linked use case is customer preparation work.
func (a Assignment) IsPrepStep() bool {
	return a.UseCase != nil && a.UseCase.IsCustomerPrep
}

// EstimateHours resolves the effort estimate: the per-assignment override,
// then the catalog estimate, then zero.
func (a Assignment) EstimateHours() float64 {
	if a.EstimateHoursOverride != nil {
		return *a.EstimateHoursOverride
	}
	if a.UseCase != nil && a.UseCase.EstimateHours != nil {
		return *a.UseCase.EstimateHours
	}
	return 0
}

// POC is a tracked proof-of-concept engagement.
type POC struct {
	ID                 string           `json:"id"`
	UID                string           `json:"poc_uid"`
	Name               string           `json:"name"`
	CustomerName       string           `json:"customer_name"`
	Partner            string           `json:"partner,omitempty"`
	Product            string           `json:"product"`
	OwnerID            string           `json:"se_id"`
	PrepStartDate      *time.Time       `json:"prep_start_date,omitempty"`
	StartDate          *time.Time       `json:"poc_start_date,omitempty"`
	PlannedEndDate     *time.Time       `json:"poc_end_date_plan,omitempty"`
	ActualEndDate      *time.Time       `json:"poc_end_date_actual,omitempty"`
	LastActivityAt     *time.Time       `json:"last_daily_update_at,omitempty"`
	CompletionDateAuto *time.Time       `json:"completion_date_auto,omitempty"`
	RiskStatus         string           `json:"risk_status,omitempty"`
	TechnicalResult    TechnicalResult  `json:"technical_result"`
	CommercialResult   CommercialResult `json:"commercial_result"`
	SEComment          string           `json:"se_comment,omitempty"`
	AEB                string           `json:"aeb,omitempty"`
	MonetaryValue      *float64         `json:"monetary_value,omitempty"`
	DeregisteredAt     *time.Time       `json:"deregistered_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsDeregistered reports whether the POC carries the soft-delete marker.
func (p POC) IsDeregistered() bool {
	return p.DeregisteredAt != nil
}

// CommentKind distinguishes feedback from questions on a use case.
type CommentKind string

const (
	CommentFeedback CommentKind = "feedback"
	CommentQuestion CommentKind = "question"
)

// Comment is free text attached to a POC use case.
type Comment struct {
	ID           string      `json:"id"`
	POCID        string      `json:"poc_id"`
	AssignmentID string      `json:"poc_use_case_id"`
	AuthorID     string      `json:"author_id,omitempty"`
	Kind         CommentKind `json:"kind"`
	Text         string      `json:"text"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Snapshot is a read-only copy of everything the dashboard needs for one
// evaluation: POCs, their assignments keyed by POC ID, and users keyed by ID.
type Snapshot struct {
	POCs        []POC                   `json:"pocs"`
	Assignments map[string][]Assignment `json:"assignments"`
	Users       map[string]User         `json:"users"`
}

// --- Public API requests and responses ---

// RegisterRequest registers or looks up a POC by SE email, prospect and product.
type RegisterRequest struct {
	SAName       string `json:"sa_name,omitempty"`
	SAEmail      string `json:"sa_email"`
	Prospect     string `json:"prospect"`
	Product      string `json:"product"`
	Partner      string `json:"partner,omitempty"`
	POCStartDate string `json:"poc_start_date,omitempty"`
	POCEndDate   string `json:"poc_end_date,omitempty"`
}

// RegisterResult is the store outcome of a registration.
type RegisterResult struct {
	POCUID      string `json:"poc_uid"`
	IsNew       bool   `json:"is_new"`
	UserCreated bool   `json:"user_created,omitempty"`
	UserEmail   string `json:"user_email,omitempty"`
}

// RegisterResponse is returned by POST /api/v1/register.
type RegisterResponse struct {
	Status      string `json:"status"`
	POCUID      string `json:"poc_uid"`
	IsNew       bool   `json:"is_new"`
	UserCreated bool   `json:"user_created,omitempty"`
	UserEmail   string `json:"user_email,omitempty"`
	Message     string `json:"message,omitempty"`
}

// DeregisterRequest soft-deletes a POC.
type DeregisterRequest struct {
	POCUID string `json:"poc_uid"`
}

// DeregisterResponse is returned by POST /api/v1/deregister.
type DeregisterResponse struct {
	Status  string `json:"status"`
	POCUID  string `json:"poc_uid"`
	Message string `json:"message"`
}

// HeartbeatUseCase is one use case reported in a daily heartbeat, carrying
// catalog metadata alongside the assignment flags.
type HeartbeatUseCase struct {
	Code           string   `json:"code"`
	IsActive       *bool    `json:"is_active,omitempty"`
	IsCompleted    *bool    `json:"is_completed,omitempty"`
	Order          *int     `json:"order,omitempty"`
	Title          string   `json:"title,omitempty"`
	Version        int      `json:"version,omitempty"`
	Author         *string  `json:"author,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Product        *string  `json:"product,omitempty"`
	ProductFamily  *string  `json:"product_family,omitempty"`
	Category       *string  `json:"category,omitempty"`
	EstimateHours  *float64 `json:"estimate_hours,omitempty"`
	IsCustomerPrep *bool    `json:"is_customer_prep,omitempty"`
}

// HeartbeatRequest is the daily status update for a POC.
type HeartbeatRequest struct {
	POCUID   string             `json:"poc_uid"`
	UseCases []HeartbeatUseCase `json:"use_cases"`
}

// HeartbeatResponse is returned by POST /api/v1/heartbeat.
type HeartbeatResponse struct {
	Status            string `json:"status"`
	POCUID            string `json:"poc_uid"`
	UseCasesProcessed int    `json:"use_cases_processed"`
}

// CompleteUseCaseRequest toggles completion of one use case.
type CompleteUseCaseRequest struct {
	POCUID      string `json:"poc_uid"`
	UseCaseCode string `json:"use_case_code"`
	Completed   *bool  `json:"completed"`
}

// CompleteUseCaseResponse is returned by POST /api/v1/complete_use_case.
type CompleteUseCaseResponse struct {
	Status      string `json:"status"`
	POCUID      string `json:"poc_uid"`
	UseCaseCode string `json:"use_case_code"`
	Completed   bool   `json:"completed"`
}

// RatingRequest sets a 1-5 star rating on a use case.
type RatingRequest struct {
	POCUID      string `json:"poc_uid"`
	UseCaseCode string `json:"use_case_code"`
	Rating      *int   `json:"rating"`
}

// RatingResponse is returned by POST /api/v1/rating.
type RatingResponse struct {
	Status      string `json:"status"`
	POCUID      string `json:"poc_uid"`
	UseCaseCode string `json:"use_case_code"`
	Rating      int    `json:"rating"`
}

// FeedbackRequest attaches text feedback (or a question) to a use case.
type FeedbackRequest struct {
	POCUID      string      `json:"poc_uid"`
	UseCaseCode string      `json:"use_case_code"`
	Text        string      `json:"text"`
	Kind        CommentKind `json:"kind,omitempty"`
}

// FeedbackResponse is returned by POST /api/v1/feedback.
type FeedbackResponse struct {
	Status      string `json:"status"`
	POCUID      string `json:"poc_uid"`
	UseCaseCode string `json:"use_case_code"`
	CommentID   string `json:"comment_id"`
}

// OutcomeUpdate is an explicit patch of the mutable POC outcome fields.
// Nil fields are left unchanged; an empty date string clears the date.
type OutcomeUpdate struct {
	CommercialResult *string  `json:"commercial_result,omitempty"`
	TechnicalResult  *string  `json:"technical_result,omitempty"`
	PlannedEndDate   *string  `json:"poc_end_date_plan,omitempty"`
	ActualEndDate    *string  `json:"poc_end_date_actual,omitempty"`
	MonetaryValue    *float64 `json:"monetary_value,omitempty"`
	SEComment        *string  `json:"se_comment,omitempty"`
}

// RiskStatusUpdate persists derived classification columns for one POC.
type RiskStatusUpdate struct {
	POCID              string
	RiskStatus         string
	CompletionDateAuto *time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	POCCount       int64  `json:"poc_count"`
	ActivePOCCount int64  `json:"active_poc_count"`
	Timestamp      string `json:"timestamp"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	POCCount       int64 `json:"poc_count"`
	ActivePOCCount int64 `json:"active_poc_count"`
}

// MarshalJSON ensures nil maps and slices in Snapshot marshal as empty values.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.POCs == nil {
		s.POCs = []POC{}
	}
	if s.Assignments == nil {
		s.Assignments = map[string][]Assignment{}
	}
	if s.Users == nil {
		s.Users = map[string]User{}
	}
	type Alias Snapshot
	return json.Marshal(Alias(s))
}
