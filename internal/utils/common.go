package utils

import (
	"context"
	"log"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func ToPointer[T any](value T) *T {
	return &value
}

// DBOption mutates a gorm query before a repository executes it, typically to
// run it inside an existing transaction.
type DBOption func(*gorm.DB) *gorm.DB

func WithTx(tx *gorm.DB) DBOption {
	return func(*gorm.DB) *gorm.DB {
		return tx
	}
}

func ApplyOptions(db *gorm.DB, opts ...DBOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

func ShouldStopCtx(ctx context.Context, log *logrus.Logger) (bool, error) {
	select {
	case <-ctx.Done():
		pc, _, _, ok := runtime.Caller(1)
		funcName := "unknown"
		if ok {
			fn := runtime.FuncForPC(pc)
			if fn != nil {
				parts := strings.Split(fn.Name(), "/")
				funcName = parts[len(parts)-1]
			}
		}

		log.WithFields(logrus.Fields{
			"caller": funcName,
			"error":  ctx.Err(),
		}).Debug("Context done signal received")
		return true, ctx.Err()
	default:
		return false, nil
	}
}

func TruncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
