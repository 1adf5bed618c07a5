package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
)

// Clock is swapped in tests.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func orClock(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

var errUnauthenticated = apierr.Unauthorized("unauthenticated", "not authenticated")

func requestUserID(ctx context.Context) (uuid.UUID, error) {
	id := ctxutil.UserID(ctx)
	if id == uuid.Nil {
		return uuid.Nil, errUnauthenticated
	}
	return id, nil
}

// notFound maps a missing or foreign row to a 404. Other errors pass through.
func notFound(err error, code, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound(code, msg)
	}
	return err
}

// inTx runs fn inside dbc.Tx when one is open, otherwise in a new transaction.
func inTx(db *gorm.DB, dbc dbctx.Context, fn func(inner dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	return db.WithContext(dbc.Context()).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Context(), Tx: tx})
	})
}

func clean(s string) string { return strings.TrimSpace(s) }

func requireLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		if min > 0 && n == 0 {
			return apierr.BadRequest("invalid_"+field, field+" is required")
		}
		return apierr.BadRequest("invalid_"+field, fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}
	return nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
