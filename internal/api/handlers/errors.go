package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationError    = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	ErrCodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	ErrCodeUnsupportedToken     = "UNSUPPORTED_TOKEN"
	ErrCodeWithdrawalInProgress = "WITHDRAWAL_IN_PROGRESS"
	ErrCodeChainSubmission      = "CHAIN_SUBMISSION_FAILED"
	ErrCodeChainExecution       = "CHAIN_EXECUTION_FAILED"
	ErrCodeReferralNotFound     = "REFERRAL_CODE_NOT_FOUND"
	ErrCodeSelfReferral         = "SELF_REFERRAL"
	ErrCodeReferralApplied      = "REFERRAL_ALREADY_APPLIED"
)

// respondServiceError maps domain sentinels to HTTP responses. A coded
// DomainError refines the code and message with service-written text.
// Anything unmapped reports a generic 500 so internals never leak into the
// body.
func respondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := ErrCodeInternalError
	message := "internal server error"
	details := ""

	switch {
	case errors.Is(err, domainerrors.ErrInsufficientBalance):
		status, code = http.StatusBadRequest, ErrCodeInsufficientBalance
		message, details = "insufficient balance for withdrawal", err.Error()
	case errors.Is(err, domainerrors.ErrUnsupportedToken):
		status, code = http.StatusBadRequest, ErrCodeUnsupportedToken
		message = "unsupported token type"
	case errors.Is(err, domainerrors.ErrInvalidInput):
		status, code = http.StatusBadRequest, ErrCodeValidationError
		message = err.Error()
	case errors.Is(err, domainerrors.ErrWithdrawalInProgress):
		status, code = http.StatusConflict, ErrCodeWithdrawalInProgress
		message = "a withdrawal is already in progress for this wallet"
	case errors.Is(err, domainerrors.ErrReferralCodeNotFound):
		status, code = http.StatusNotFound, ErrCodeReferralNotFound
		message = "referral code not found"
	case errors.Is(err, domainerrors.ErrSelfReferral):
		status, code = http.StatusBadRequest, ErrCodeSelfReferral
		message = "cannot apply your own referral code"
	case errors.Is(err, domainerrors.ErrReferralAlreadyApplied):
		status, code = http.StatusBadRequest, ErrCodeReferralApplied
		message = "a referral was already applied for this wallet"
	case errors.Is(err, domainerrors.ErrChainSubmission):
		status, code = http.StatusInternalServerError, ErrCodeChainSubmission
		message = "transfer could not be submitted; no funds moved"
	case errors.Is(err, domainerrors.ErrChainExecution):
		status, code = http.StatusInternalServerError, ErrCodeChainExecution
		message = "transfer was rejected on-chain; no funds moved"
	case errors.Is(err, domainerrors.ErrNotFound):
		status, code = http.StatusNotFound, ErrCodeNotFound
		message = "resource not found"
	case errors.Is(err, domainerrors.ErrServiceUnavailable):
		status, code = http.StatusServiceUnavailable, ErrCodeServiceUnavailable
		message = "service temporarily unavailable"
	}

	var de *domainerrors.DomainError
	if errors.As(err, &de) && de.Code != "" {
		code, message = de.Code, de.Message
	}

	respondError(c, status, code, message, details)
}
