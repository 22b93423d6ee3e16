// Package invalidation decides which cached reads become stale when an
// operation succeeds and drops them from the cache.
package invalidation

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mohitkumar/txflow/cache"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/metrics"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/util"
	"go.uber.org/zap"
)

var placeholderRegex = regexp.MustCompile(`{(\w+)}`)

type Contract struct {
	table       map[model.OperationKind][]string
	invalidator cache.Invalidator
}

func NewContract(invalidator cache.Invalidator, table map[model.OperationKind][]string) *Contract {
	if table == nil {
		table = DefaultTable
	}
	return &Contract{
		table:       table,
		invalidator: invalidator,
	}
}

// Patterns resolves the kind's patterns against params. A placeholder without a
// value widens to *. The result has no duplicates.
func (c *Contract) Patterns(kind model.OperationKind, params map[string]string) []string {
	raw := c.table[kind]
	resolved := make([]string, 0, len(raw))
	for _, p := range raw {
		resolved = append(resolved, placeholderRegex.ReplaceAllStringFunc(p, func(token string) string {
			name := token[1 : len(token)-1]
			if v, ok := params[name]; ok && v != "" {
				return v
			}
			return "*"
		}))
	}
	return util.Dedup(resolved)
}

// OnOutcome invalidates the kind's patterns when outcome is a success and does
// nothing otherwise. Callers invoke it once per terminal outcome.
func (c *Contract) OnOutcome(ctx context.Context, kind model.OperationKind, outcome model.Outcome, params map[string]string) error {
	if !outcome.IsSuccess() {
		return nil
	}
	var errs []error
	for _, pattern := range c.Patterns(kind, params) {
		if err := c.invalidator.Invalidate(ctx, pattern); err != nil {
			logger.Error("error invalidating cache", zap.String("kind", string(kind)), zap.String("pattern", pattern), zap.Error(err))
			errs = append(errs, fmt.Errorf("invalidate %s: %w", pattern, err))
			continue
		}
		metrics.RecordInvalidation(ctx, kind)
	}
	return errors.Join(errs...)
}
