package tenant

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifierRoundTrip(t *testing.T) {
	t.Parallel()

	_, ok := IdentifierFromContext(context.Background())
	require.False(t, ok)

	ctx := WithIdentifier(context.Background(), " acme_corp ")
	id, ok := IdentifierFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "acme_corp", id)

	cleared := WithoutIdentifier(ctx)
	_, ok = IdentifierFromContext(cleared)
	require.False(t, ok)

	// The parent keeps its value; clearing only affects the derived context.
	id, ok = IdentifierFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "acme_corp", id)
}

func TestOperationRoundTrip(t *testing.T) {
	t.Parallel()

	_, ok := OperationFromContext(context.Background())
	require.False(t, ok)

	op := Operation{Name: "GET /api/v1/recipients", Path: "/api/v1/recipients"}
	got, ok := OperationFromContext(WithOperation(context.Background(), op))
	require.True(t, ok)
	require.Equal(t, op, got)
}

func TestScopeDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	parent := context.Background()
	err := Scope(parent, "job", "acme_corp", func(ctx context.Context) error {
		id, ok := IdentifierFromContext(ctx)
		require.True(t, ok)
		require.Equal(t, "acme_corp", id)
		_, inOp := OperationFromContext(ctx)
		require.True(t, inOp)
		return nil
	})
	require.NoError(t, err)

	_, ok := IdentifierFromContext(parent)
	require.False(t, ok)
}

func TestConcurrentOperationsNeverObserveEachOther(t *testing.T) {
	t.Parallel()

	const workers = 64
	base := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := fmt.Sprintf("tenant_%03d", i)
			_ = Scope(base, "worker", want, func(ctx context.Context) error {
				for range 100 {
					got, ok := IdentifierFromContext(ctx)
					if !ok || got != want {
						errs <- fmt.Errorf("worker %d observed %q", i, got)
						return nil
					}
				}
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
