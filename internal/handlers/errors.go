package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"walletd/internal/apperrors"
	"walletd/internal/dto"
	"walletd/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation:        http.StatusBadRequest,
	apperrors.KindAuth:              http.StatusUnauthorized,
	apperrors.KindSession:           http.StatusLocked,
	apperrors.KindInsufficientFunds: http.StatusPaymentRequired,
	apperrors.KindRateLimited:       http.StatusTooManyRequests,
	apperrors.KindNetwork:           http.StatusBadGateway,
	apperrors.KindStorage:           http.StatusInternalServerError,
	apperrors.KindSigning:           http.StatusInternalServerError,
	apperrors.KindAlreadySubmitting: http.StatusConflict,
	apperrors.KindSuperseded:        http.StatusConflict,
}

// respondWithError unified error response function
func respondWithError(c *gin.Context, logger *logrus.Logger, err error) {
	if errors.Is(err, repository.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: "not_found"})
		return
	}

	appErr, ok := apperrors.As(err)
	if !ok {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"error": err,
		}).Error("❌ unclassified error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: "internal_error"})
		return
	}

	status, known := kindStatus[appErr.Kind]
	if !known {
		status = http.StatusInternalServerError
	}
	resp := dto.ErrorResponse{
		Error: appErr.Message,
		Code:  string(appErr.Kind),
		Field: appErr.Field,
	}

	switch appErr.Kind {
	case apperrors.KindInsufficientFunds:
		resp.Required = appErr.Required.String()
		resp.Balance = appErr.Balance.String()
		resp.Shortfall = appErr.Shortfall.String()
	case apperrors.KindRateLimited:
		seconds := int(math.Ceil(appErr.RetryAfter.Seconds()))
		resp.RetryAfterSeconds = seconds
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	if status >= http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"kind":  appErr.Kind,
			"error": err,
		}).Error("❌ request failed")
	}
	c.JSON(status, resp)
}

// badRequest malformed JSON body
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: string(apperrors.KindValidation)})
}
