package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bogusRequest is an out-of-package-style request the dispatcher must
// reject as an unknown action.
type bogusRequest struct{}

func (*bogusRequest) isRequest() {}

func TestService_Dispatch(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec := svc.Dispatch(ctx, &RecordFailureRequest{ErrorMessage: "Duplicate element found: Get_Records"})
	require.True(t, rec.Success)
	assert.Equal(t, "duplicate_error", rec.Category)

	cat := svc.Dispatch(ctx, &CategorizeRequest{ErrorMessage: "Permission denied"})
	require.True(t, cat.Success)
	assert.Equal(t, "permission_error", cat.Category)

	stats := svc.Dispatch(ctx, &StatsRequest{})
	require.True(t, stats.Success)
	require.NotNil(t, stats.Stats)
	assert.Equal(t, 1, stats.Stats.TotalFailures)
}

func TestService_DispatchUnknownAction(t *testing.T) {
	svc, _ := newTestService(t, nil)

	t.Run("nil request", func(t *testing.T) {
		res := svc.Dispatch(context.Background(), nil)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "unknown action")
	})

	t.Run("unrecognized type", func(t *testing.T) {
		res := svc.Dispatch(context.Background(), &bogusRequest{})
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "unknown action")
	})
}
