package errors

import "net/http"

// Error code constants. Errors carry code + message; handlers never leak
// stack traces to clients. Backend logs always in English.

// Validation error codes.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
)

// Approval workflow error codes.
const (
	CodePolicyNotFound      = "POLICY_NOT_FOUND"
	CodePolicyConfigInvalid = "POLICY_CONFIG_INVALID"
	CodeStepNotFound        = "STEP_NOT_FOUND"
	CodeStepNotActive       = "STEP_NOT_ACTIVE"
	CodeStepAlreadyDecided  = "STEP_ALREADY_DECIDED"
	CodeApproverMismatch    = "APPROVER_MISMATCH"
	CodeRequestNotFound     = "REQUEST_NOT_FOUND"
)

// Delegation error codes.
const (
	CodeDelegationNotFound = "DELEGATION_NOT_FOUND"
	CodeDelegationOverlap  = "DELEGATION_OVERLAP"
)

// Remote action token error codes.
const (
	CodeTokenNotFound    = "TOKEN_NOT_FOUND"
	CodeTokenInvalid     = "TOKEN_INVALID"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenAlreadyUsed = "TOKEN_ALREADY_USED"
	CodeTokenRaceLost    = "TOKEN_RACE_LOST"
)

// Auth error codes.
const (
	CodeAuthFailed       = "AUTH_FAILED"
	CodePermissionDenied = "PERMISSION_DENIED"
)

// Convenience constructors using predefined codes.

// ErrStepNotFoundf creates a step not found error.
func ErrStepNotFoundf(stepID string) *AppError {
	return &AppError{
		Code:       CodeStepNotFound,
		Message:    "approval step not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// ErrStepAlreadyDecidedf creates an invalid-state error for a decided step.
func ErrStepAlreadyDecidedf(status string) *AppError {
	return &AppError{
		Code:       CodeStepAlreadyDecided,
		Message:    "approval step has already been decided (current: " + status + ")",
		HTTPStatus: http.StatusConflict,
	}
}

// ErrStepNotActivef creates an invalid-state error for an out-of-order decision.
func ErrStepNotActivef() *AppError {
	return &AppError{
		Code:       CodeStepNotActive,
		Message:    "approval step is not the current active step",
		HTTPStatus: http.StatusConflict,
	}
}

// ErrApproverMismatchf creates a forbidden error for an unauthorized actor.
func ErrApproverMismatchf() *AppError {
	return &AppError{
		Code:       CodeApproverMismatch,
		Message:    "actor is not the effective approver for this step",
		HTTPStatus: http.StatusForbidden,
	}
}
