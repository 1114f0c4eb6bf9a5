package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/logger"
	"aktieskat/internal/middleware"
)

// ErrorBody is the error payload.
type ErrorBody struct {
	Code    string `json:"code" example:"INVALID_INPUT"`
	Message string `json:"message" example:"Invalid input"`
}

// ErrorResponse is the envelope of every error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// getActor returns the authenticated subject set by the auth middleware.
// Requests that reached a handler without one came through the pipeline.
func getActor(c *gin.Context) string {
	if actor := c.GetString(middleware.ActorKey); actor != "" {
		return actor
	}
	return middleware.PipelineActor
}

// parseYear parses the :year path parameter.
func parseYear(c *gin.Context) (int, error) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidYear, "Invalid year "+c.Param("year"))
	}
	return year, nil
}

// parseDate parses a YYYY-MM-DD value as a UTC calendar day.
func parseDate(name, value string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+name+", expected YYYY-MM-DD")
	}
	return d, nil
}

// parseOptionalDate parses a query parameter if present.
func parseOptionalDate(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	d, err := parseDate(name, v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseOptionalDecimal parses a decimal query parameter if present.
func parseOptionalDecimal(c *gin.Context, name string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+name)
	}
	return &d, nil
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
				"request_id", c.GetString(middleware.RequestIDKey),
			)
		}
		c.JSON(appErr.StatusCode, ErrorResponse{Error: ErrorBody{Code: appErr.Code, Message: appErr.Message}})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", c.GetString(middleware.RequestIDKey),
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, ErrorResponse{Error: ErrorBody{
		Code:    apperrors.ErrInternalServer.Code,
		Message: apperrors.ErrInternalServer.Message,
	}})
}

// bindError converts a binding failure into INVALID_INPUT.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}
