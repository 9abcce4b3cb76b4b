package commentsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/tordrt/commentsync/internal/db"
	"github.com/tordrt/commentsync/internal/formatter"
	"github.com/tordrt/commentsync/internal/reconcile"
	"github.com/tordrt/commentsync/internal/schema"
)

// UpdateError reports an update in which some or all column writes failed.
// Err aggregates the individual failures and supports errors.Is and
// errors.As against each of them.
type UpdateError struct {
	Table     string
	Succeeded []string
	Failed    []string
	Skipped   []string
	Err       error
}

func (e *UpdateError) Error() string {
	total := len(e.Succeeded) + len(e.Failed) + len(e.Skipped)
	msg := fmt.Sprintf("failed to update %d of %d column comments of %s", len(e.Failed)+len(e.Skipped), total, e.Table)
	if len(e.Skipped) > 0 {
		msg += fmt.Sprintf(" (%d skipped)", len(e.Skipped))
	}
	return msg + ": " + e.Err.Error()
}

func (e *UpdateError) Unwrap() error { return e.Err }

// applyChanges writes changes to the catalog, in one batch when the catalog
// supports it and atomic is set, otherwise column by column
func applyChanges(ctx context.Context, cat db.Catalog, table schema.Table, changes []reconcile.Change, atomic bool, logger *zap.Logger) ([]formatter.ChangeResult, error) {
	results := make([]formatter.ChangeResult, len(changes))
	for i, c := range changes {
		results[i] = formatter.ChangeResult{Change: c, Status: formatter.StatusPlanned}
	}
	if len(changes) == 0 {
		logger.Info("no comment changes to apply")
		return results, nil
	}

	if batcher, ok := cat.(db.BatchUpdater); ok && atomic {
		logger.Info("applying comment changes", zap.Int("changes", len(changes)), zap.Bool("atomic", true))
		err := batcher.UpdateColumnComments(ctx, table.Database, table.Name, reconcile.Comments(changes))
		if err != nil {
			logger.Error("batch update failed, no comments were changed", zap.Error(err))
			for i := range results {
				results[i].Status = formatter.StatusFailed
				results[i].Error = err.Error()
			}
			return results, newUpdateError(table, results, err)
		}
		for i := range results {
			results[i].Status = formatter.StatusApplied
		}
		logger.Info("update complete", zap.Int("applied", len(results)))
		return results, nil
	}

	logger.Info("applying comment changes", zap.Int("changes", len(changes)), zap.Bool("atomic", false))

	var errs *multierror.Error
	aborted := false
	for i := range results {
		if aborted {
			results[i].Status = formatter.StatusSkipped
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			aborted = true
			results[i].Status = formatter.StatusSkipped
			continue
		}

		c := results[i]
		err := cat.UpdateColumnComment(ctx, table.Database, table.Name, c.Column, c.New)
		if err != nil {
			logger.Error("failed to update column comment", zap.String("column", c.Column), zap.Error(err))
			results[i].Status = formatter.StatusFailed
			results[i].Error = err.Error()
			errs = multierror.Append(errs, fmt.Errorf("column %s: %w", c.Column, err))
			if errors.Is(err, db.ErrAuth) {
				aborted = true
			}
			continue
		}
		results[i].Status = formatter.StatusApplied
		logger.Debug("updated column comment", zap.String("column", c.Column))
	}

	if errs == nil {
		logger.Info("update complete", zap.Int("applied", len(results)))
		return results, nil
	}
	return results, newUpdateError(table, results, errs)
}

func newUpdateError(table schema.Table, results []formatter.ChangeResult, err error) *UpdateError {
	e := &UpdateError{Table: table.QualifiedName(), Err: err}
	if merr, ok := err.(*multierror.Error); ok {
		merr.ErrorFormat = joinErrors
	}
	for _, r := range results {
		switch r.Status {
		case formatter.StatusApplied:
			e.Succeeded = append(e.Succeeded, r.Column)
		case formatter.StatusFailed:
			e.Failed = append(e.Failed, r.Column)
		case formatter.StatusSkipped:
			e.Skipped = append(e.Skipped, r.Column)
		}
	}
	return e
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
