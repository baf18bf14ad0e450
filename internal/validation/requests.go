package validation

import (
	"fmt"
	"strings"

	"github.com/hyperengineering/pocportal/internal/dashboard"
	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/types"
)

const (
	MaxNameLength     = 200
	MaxCodeLength     = 200
	MaxTextLength     = 10000
	MaxHeartbeatItems = 500
)

// text runs the checks every free-text field shares.
func text(c *Collector, field, value string, max int) {
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, max))
}

func textPtr(c *Collector, field string, value *string, max int) {
	if value != nil {
		text(c, field, *value, max)
	}
}

// ValidateRegisterRequest checks a registration. SE email, prospect and
// product form the composite key and are required.
func ValidateRegisterRequest(req types.RegisterRequest) []ValidationError {
	c := &Collector{}

	c.Add(ValidateRequired("sa_email", req.SAEmail))
	if strings.TrimSpace(req.SAEmail) != "" {
		c.Add(ValidateEmail("sa_email", strings.TrimSpace(req.SAEmail)))
	}
	c.Add(ValidateRequired("prospect", req.Prospect))
	c.Add(ValidateRequired("product", req.Product))

	text(c, "sa_name", req.SAName, MaxNameLength)
	text(c, "prospect", req.Prospect, MaxNameLength)
	text(c, "product", req.Product, MaxNameLength)
	text(c, "partner", req.Partner, MaxNameLength)

	c.Add(ValidateDate("poc_start_date", req.POCStartDate))
	c.Add(ValidateDate("poc_end_date", req.POCEndDate))
	if start, ok := types.ParseDate(req.POCStartDate); ok {
		if end, ok := types.ParseDate(req.POCEndDate); ok && end.Before(start) {
			c.Add(&ValidationError{Field: "poc_end_date", Message: "must not be before poc_start_date"})
		}
	}

	return c.Errors()
}

// ValidateDeregisterRequest checks a deregistration.
func ValidateDeregisterRequest(req types.DeregisterRequest) []ValidationError {
	c := &Collector{}
	c.Add(ValidatePOCUID("poc_uid", req.POCUID))
	return c.Errors()
}

// ValidateHeartbeatRequest checks a daily heartbeat. Use cases without a
// code are tolerated here and skipped by the store.
func ValidateHeartbeatRequest(req types.HeartbeatRequest) []ValidationError {
	c := &Collector{}
	c.Add(ValidatePOCUID("poc_uid", req.POCUID))

	switch {
	case len(req.UseCases) == 0:
		c.Add(&ValidationError{Field: "use_cases", Message: "must contain at least one use case"})
	case len(req.UseCases) > MaxHeartbeatItems:
		c.Add(&ValidationError{Field: "use_cases", Message: fmt.Sprintf("exceeds maximum of %d use cases", MaxHeartbeatItems)})
	}

	for i, uc := range req.UseCases {
		prefix := fmt.Sprintf("use_cases[%d].", i)
		text(c, prefix+"code", uc.Code, MaxCodeLength)
		text(c, prefix+"title", uc.Title, MaxNameLength)
		textPtr(c, prefix+"author", uc.Author, MaxNameLength)
		textPtr(c, prefix+"description", uc.Description, MaxTextLength)
		textPtr(c, prefix+"product", uc.Product, MaxNameLength)
		textPtr(c, prefix+"product_family", uc.ProductFamily, MaxNameLength)
		textPtr(c, prefix+"category", uc.Category, MaxNameLength)
		if uc.Version < 0 {
			c.Add(&ValidationError{Field: prefix + "version", Message: "must not be negative"})
		}
		if uc.Order != nil && *uc.Order < 0 {
			c.Add(&ValidationError{Field: prefix + "order", Message: "must not be negative"})
		}
		if uc.EstimateHours != nil {
			c.Add(ValidateRange(prefix+"estimate_hours", *uc.EstimateHours, 0, 1000))
		}
	}

	return c.Errors()
}

// useCaseRef checks the poc_uid and use_case_code pair shared by the
// per-use-case endpoints.
func useCaseRef(c *Collector, uid, code string) {
	c.Add(ValidatePOCUID("poc_uid", uid))
	c.Add(ValidateRequired("use_case_code", code))
	text(c, "use_case_code", code, MaxCodeLength)
}

// ValidateCompleteUseCaseRequest checks a completion toggle.
func ValidateCompleteUseCaseRequest(req types.CompleteUseCaseRequest) []ValidationError {
	c := &Collector{}
	useCaseRef(c, req.POCUID, req.UseCaseCode)
	if req.Completed == nil {
		c.Add(&ValidationError{Field: "completed", Message: "is required"})
	}
	return c.Errors()
}

// ValidateRatingRequest checks a 1-5 star rating.
func ValidateRatingRequest(req types.RatingRequest) []ValidationError {
	c := &Collector{}
	useCaseRef(c, req.POCUID, req.UseCaseCode)
	if req.Rating == nil {
		c.Add(&ValidationError{Field: "rating", Message: "is required"})
	} else if *req.Rating < 1 || *req.Rating > 5 {
		c.Add(&ValidationError{Field: "rating", Message: "must be between 1 and 5"})
	}
	return c.Errors()
}

// ValidateFeedbackRequest checks free-text feedback.
func ValidateFeedbackRequest(req types.FeedbackRequest) []ValidationError {
	c := &Collector{}
	useCaseRef(c, req.POCUID, req.UseCaseCode)
	c.Add(ValidateRequired("text", req.Text))
	text(c, "text", req.Text, MaxTextLength)
	if req.Kind != "" {
		c.Add(ValidateEnum("kind", string(req.Kind), []string{string(types.CommentFeedback), string(types.CommentQuestion)}))
	}
	return c.Errors()
}

// ValidateOutcomeUpdate checks an outcome patch. Result values accept the
// legacy spellings the parsers understand; anything else is rejected here
// rather than silently stored as "other".
func ValidateOutcomeUpdate(patch types.OutcomeUpdate) []ValidationError {
	c := &Collector{}

	if v := patch.CommercialResult; v != nil && types.ParseCommercialResult(*v) == types.CommercialOther && normalize(*v) != "other" {
		c.Add(&ValidationError{Field: "commercial_result", Message: "must be one of: unknown, won, lost, no_decision, disqualified, other"})
	}
	if v := patch.TechnicalResult; v != nil && types.ParseTechnicalResult(*v) == types.TechnicalOther && normalize(*v) != "other" {
		c.Add(&ValidationError{Field: "technical_result", Message: "must be one of: unknown, win, loss, other"})
	}
	if patch.PlannedEndDate != nil {
		c.Add(ValidateDate("poc_end_date_plan", *patch.PlannedEndDate))
	}
	if patch.ActualEndDate != nil {
		c.Add(ValidateDate("poc_end_date_actual", *patch.ActualEndDate))
	}
	if patch.MonetaryValue != nil && *patch.MonetaryValue < 0 {
		c.Add(&ValidationError{Field: "monetary_value", Message: "must not be negative"})
	}
	textPtr(c, "se_comment", patch.SEComment, MaxTextLength)

	return c.Errors()
}

// ValidateDashboardFilter checks a dashboard selection. Only the three
// visible tabs are valid categories.
func ValidateDashboardFilter(fs dashboard.FilterState) []ValidationError {
	c := &Collector{}

	if fs.Category != "" {
		c.Add(ValidateEnum("category", string(fs.Category), []string{
			string(lifecycle.StateActive), string(lifecycle.StateInReview), string(lifecycle.StateCompleted),
		}))
	}
	for _, r := range fs.Risks {
		c.Add(ValidateEnum("risk", string(r), []string{
			string(lifecycle.RiskOnTrack), string(lifecycle.RiskAtRisk), string(lifecycle.RiskAtRiskPrep),
			string(lifecycle.RiskAtRiskStalled), string(lifecycle.RiskOverdue),
		}))
	}
	text(c, "q", fs.Query, MaxNameLength)

	return c.Errors()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
