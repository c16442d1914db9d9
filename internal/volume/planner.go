package volume

import (
	"context"
	"strings"

	"github.com/aqxion/keyword-cli/internal/resilience"
	"github.com/aqxion/keyword-cli/pkg/planner"
)

// plannerAdapter bridges the planner API client to the provider's
// PlannerClient contract and marks its transient failures retryable.
type plannerAdapter struct {
	client planner.Client
}

// NewPlannerClient wraps a planner API client for use with a Provider.
func NewPlannerClient(client planner.Client) PlannerClient {
	return &plannerAdapter{client: client}
}

func (a *plannerAdapter) KeywordMetrics(ctx context.Context, keyword, geo, language string) (PlannerMetrics, error) {
	m, err := a.client.KeywordMetrics(ctx, keyword, geo, language)
	if err != nil {
		if strings.Contains(err.Error(), "transient status") {
			return PlannerMetrics{}, resilience.NewTransientError(err, 0)
		}
		return PlannerMetrics{}, err
	}
	return PlannerMetrics{Volume: m.AvgMonthlySearches, Competition: m.Competition}, nil
}
