package plan

import (
	"context"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/status"
)

// Check is one precondition. It records findings into st; a returned error is
// an index or model failure and terminates the session.
type Check func(ctx context.Context, st *status.Status) error

// RunChecks runs checks in order and stops at the first fatal condition.
// Errors returned by a check are recorded as fatal and returned.
func RunChecks(ctx context.Context, st *status.Status, checks ...Check) error {
	for _, check := range checks {
		select {
		case <-ctx.Done():
			st.Fatalf(model.Location{}, "refactoring canceled")
			return ctx.Err()
		default:
		}
		if err := check(ctx, st); err != nil {
			st.Fatalf(model.Location{}, "%v", err)
			return err
		}
		if st.HasFatal() {
			return nil
		}
	}
	return nil
}
