package response

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Classify maps a service error to an HTTP status and error code. Unrecognized errors
// are 500 with code "internal_error".
func Classify(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	if e, ok := apierr.As(err); ok {
		status := e.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, e.Code
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, "conflict"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return http.StatusUnprocessableEntity, "invalid_reference"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return http.StatusConflict, "conflict"
		case pgForeignKeyViolation:
			return http.StatusUnprocessableEntity, "invalid_reference"
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return http.StatusConflict, "conflict"
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return http.StatusUnprocessableEntity, "invalid_reference"
	}
	return http.StatusInternalServerError, "internal_error"
}

// RespondServiceError writes the error envelope for err. Internal details of 5xx errors
// are logged, never returned.
func RespondServiceError(c *gin.Context, log *logger.Logger, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("Request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", status,
				"error", err,
			)
		}
		if _, typed := apierr.As(err); !typed {
			err = errors.New("internal server error")
		}
	}
	switch status {
	case http.StatusNotFound:
		if _, typed := apierr.As(err); !typed {
			err = errors.New("not found")
		}
	case http.StatusConflict, http.StatusUnprocessableEntity:
		if _, typed := apierr.As(err); !typed {
			err = errors.New(strings.ReplaceAll(code, "_", " "))
		}
	}
	RespondError(c, status, code, err)
}
