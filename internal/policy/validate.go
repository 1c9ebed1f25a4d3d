package policy

import (
	"fmt"

	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// Validate checks a policy's internal consistency before it is persisted.
//
// Leave policies must use day bounds only; purchase/asset policies must use
// amount bounds only. A policy needs 1..5 levels with unique levelOrder
// values in 1..5 and known approver roles. Violations surface as
// POLICY_CONFIG_INVALID with field-level detail.
func Validate(p *domain.ApprovalPolicy) error {
	var fields []apperrors.FieldError

	if p.Name == "" {
		fields = append(fields, apperrors.FieldError{Field: "name", Code: "required"})
	}
	if !p.Module.Valid() {
		fields = append(fields, apperrors.FieldError{Field: "module", Code: "unknown"})
	}

	fields = append(fields, validateRange(p)...)
	fields = append(fields, validateLevels(p.Levels)...)

	if len(fields) > 0 {
		return apperrors.BadRequest(apperrors.CodePolicyConfigInvalid, "approval policy configuration is invalid").
			WithFieldErrors(fields)
	}
	return nil
}

func validateRange(p *domain.ApprovalPolicy) []apperrors.FieldError {
	var fields []apperrors.FieldError

	if p.Module.UsesDays() {
		if p.MinAmount != nil || p.MaxAmount != nil {
			fields = append(fields, apperrors.FieldError{
				Field: "minAmount", Code: "not_allowed",
				Message: "leave policies use day bounds, not amounts",
			})
		}
		if p.MinDays != nil && *p.MinDays < 0 {
			fields = append(fields, apperrors.FieldError{Field: "minDays", Code: "negative"})
		}
		if p.MinDays != nil && p.MaxDays != nil && *p.MaxDays < *p.MinDays {
			fields = append(fields, apperrors.FieldError{Field: "maxDays", Code: "below_min"})
		}
		return fields
	}

	if p.MinDays != nil || p.MaxDays != nil {
		fields = append(fields, apperrors.FieldError{
			Field: "minDays", Code: "not_allowed",
			Message: fmt.Sprintf("%s policies use amount bounds, not days", p.Module),
		})
	}
	if p.MinAmount != nil && p.MinAmount.IsNegative() {
		fields = append(fields, apperrors.FieldError{Field: "minAmount", Code: "negative"})
	}
	if p.MinAmount != nil && p.MaxAmount != nil && p.MaxAmount.Cmp(*p.MinAmount) < 0 {
		fields = append(fields, apperrors.FieldError{Field: "maxAmount", Code: "below_min"})
	}
	return fields
}

func validateLevels(levels []domain.ApprovalLevel) []apperrors.FieldError {
	var fields []apperrors.FieldError

	if len(levels) == 0 {
		return append(fields, apperrors.FieldError{Field: "levels", Code: "required", Message: "at least one approval level is required"})
	}
	if len(levels) > domain.MaxLevels {
		fields = append(fields, apperrors.FieldError{
			Field: "levels", Code: "too_many",
			Message: fmt.Sprintf("at most %d levels are allowed", domain.MaxLevels),
		})
	}

	seen := make(map[int]bool, len(levels))
	for _, lvl := range levels {
		if lvl.LevelOrder < 1 || lvl.LevelOrder > domain.MaxLevels {
			fields = append(fields, apperrors.FieldError{
				Field: "levels", Code: "order_out_of_range",
				Message: fmt.Sprintf("levelOrder %d must be within 1..%d", lvl.LevelOrder, domain.MaxLevels),
			})
		}
		if seen[lvl.LevelOrder] {
			fields = append(fields, apperrors.FieldError{
				Field: "levels", Code: "duplicate_order",
				Message: fmt.Sprintf("levelOrder %d appears more than once", lvl.LevelOrder),
			})
		}
		seen[lvl.LevelOrder] = true

		if !lvl.ApproverRole.Valid() {
			fields = append(fields, apperrors.FieldError{
				Field: "levels", Code: "unknown_role",
				Message: fmt.Sprintf("unknown approver role %q", lvl.ApproverRole),
			})
		}
	}
	return fields
}
