package middleware

import (
	"context"
	stderrors "errors"
	"net/http"

	"reelhub/internal/core/domain"
	"reelhub/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error attached to the request.
// Domain errors are mapped to their HTTP equivalents.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = FromDomainError(err)
		}

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("application error",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err,
			)
		} else {
			logger.Debugw("request rejected",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"error", err,
			)
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// FromDomainError maps the service error kinds onto application errors.
func FromDomainError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, domain.ErrUnauthorized):
		return errors.NewForbiddenError("not allowed to access this profile").WithCause(err)
	case stderrors.Is(err, domain.ErrNotFound):
		return errors.NewAppError(errors.ErrCodeNotFound, err.Error(), http.StatusNotFound).WithCause(err)
	case stderrors.Is(err, domain.ErrConflict):
		return errors.NewConflictError(err.Error()).WithCause(err)
	case stderrors.Is(err, domain.ErrInvalidInput):
		return errors.NewInvalidInputError(err.Error()).WithCause(err)
	case stderrors.Is(err, domain.ErrStoreUnavailable):
		return errors.NewServiceUnavailableError("profile store unavailable").WithCause(err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewServiceUnavailableError("request canceled").WithCause(err)
	default:
		return errors.WrapError(err, errors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
