package driven

import (
	"context"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// ResultStore defines the driven port for action history persistence.
type ResultStore interface {
	// Record appends rec to the history and returns its assigned ID.
	Record(ctx context.Context, rec model.ActionRecord) (int64, error)
	// ListByPR returns the history of a pull request, newest first.
	ListByPR(ctx context.Context, repoFullName string, prNumber int) ([]model.ActionRecord, error)
	// HasRun reports whether action already ran for rule on headSHA.
	HasRun(ctx context.Context, repoFullName string, prNumber int, rule, action, headSHA string) (bool, error)
}
