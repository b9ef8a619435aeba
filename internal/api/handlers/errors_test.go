package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"insufficient_balance", domainerrors.ErrInsufficientBalance, http.StatusBadRequest, ErrCodeInsufficientBalance},
		{"wrapped_insufficient_balance", fmt.Errorf("withdraw: %w", domainerrors.ErrInsufficientBalance), http.StatusBadRequest, ErrCodeInsufficientBalance},
		{"unsupported_token", domainerrors.ErrUnsupportedToken, http.StatusBadRequest, ErrCodeUnsupportedToken},
		{"invalid_input", domainerrors.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidationError},
		{"withdrawal_in_progress", domainerrors.ErrWithdrawalInProgress, http.StatusConflict, ErrCodeWithdrawalInProgress},
		{"referral_not_found", domainerrors.ErrReferralCodeNotFound, http.StatusNotFound, ErrCodeReferralNotFound},
		{"self_referral", domainerrors.ErrSelfReferral, http.StatusBadRequest, ErrCodeSelfReferral},
		{"referral_applied", domainerrors.ErrReferralAlreadyApplied, http.StatusBadRequest, ErrCodeReferralApplied},
		{"chain_submission", domainerrors.ErrChainSubmission, http.StatusInternalServerError, ErrCodeChainSubmission},
		{"chain_execution", domainerrors.ErrChainExecution, http.StatusInternalServerError, ErrCodeChainExecution},
		{"not_found", domainerrors.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"service_unavailable", domainerrors.ErrServiceUnavailable, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"unmapped", fmt.Errorf("some driver error"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			respondServiceError(c, tc.err)

			assert.Equal(t, tc.expectedStatus, recorder.Code)

			var body entities.ErrorResponse
			assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.expectedCode, body.Code)
		})
	}
}

func TestCodedDomainErrorRefinesResponse(t *testing.T) {
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	respondServiceError(c, domainerrors.ValidationError("deltas", "must be non-negative"))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var body entities.ErrorResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "deltas: must be non-negative", body.Error)

	recorder = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(recorder)

	respondServiceError(c, domainerrors.ServiceUnavailableError("escrow balance lookup"))

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Code)
	assert.Contains(t, body.Error, "escrow balance lookup")
}

func TestUnmappedErrorNeverLeaksDetails(t *testing.T) {
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	respondServiceError(c, fmt.Errorf("pq: duplicate key value violates unique constraint"))

	assert.NotContains(t, recorder.Body.String(), "pq:")
	assert.NotContains(t, recorder.Body.String(), "unique constraint")
}
