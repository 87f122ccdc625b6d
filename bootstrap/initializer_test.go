//go:build unit

package bootstrap_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Tar-2005/Workflowgenie/bootstrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, init *bootstrap.Initializer) {
	t.Helper()

	select {
	case <-init.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("initializer did not finish in time")
	}
}

func TestInitializer_NoStepsBecomesReady(t *testing.T) {
	init := bootstrap.New(nil)

	assert.Equal(t, bootstrap.StatusPending, init.Status())

	init.Start(context.Background())
	waitDone(t, init)

	assert.True(t, init.Ready())
	assert.NoError(t, init.Err())
	assert.Empty(t, init.Tail(10))
}

func TestInitializer_RunsStepsInOrder(t *testing.T) {
	var order []string

	init := bootstrap.New(nil,
		bootstrap.Step{Name: "first", Run: func(_ context.Context) error {
			order = append(order, "first")

			return nil
		}},
		bootstrap.Step{Name: "second", Run: func(_ context.Context) error {
			order = append(order, "second")

			return nil
		}},
	)

	init.Start(context.Background())
	waitDone(t, init)

	require.True(t, init.Ready())
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestInitializer_FailureStopsRemainingSteps(t *testing.T) {
	secondRan := false
	bootErr := errors.New("no credentials")

	init := bootstrap.New(nil,
		bootstrap.Step{Name: "llm", Run: func(_ context.Context) error {
			return bootErr
		}},
		bootstrap.Step{Name: "workflow", Run: func(_ context.Context) error {
			secondRan = true

			return nil
		}},
	)

	init.Start(context.Background())
	waitDone(t, init)

	assert.Equal(t, bootstrap.StatusFailed, init.Status())
	assert.False(t, init.Ready())
	assert.False(t, secondRan, "steps after a failure must not run")

	require.Error(t, init.Err())
	assert.ErrorIs(t, init.Err(), bootErr)

	tail := init.Tail(10)
	require.NotEmpty(t, tail)
	assert.Contains(t, tail[len(tail)-1], "llm")
}

func TestInitializer_PanickingStepIsContained(t *testing.T) {
	init := bootstrap.New(nil,
		bootstrap.Step{Name: "tools", Run: func(_ context.Context) error {
			panic("tool import exploded")
		}},
	)

	init.Start(context.Background())
	waitDone(t, init)

	assert.Equal(t, bootstrap.StatusFailed, init.Status())
	require.Error(t, init.Err())
	assert.Contains(t, init.Err().Error(), "panicked")

	tail := init.Tail(10)
	require.NotEmpty(t, tail, "panic must leave a journal entry with the stack")
}

func TestInitializer_StartIsIdempotent(t *testing.T) {
	runs := 0

	init := bootstrap.New(nil,
		bootstrap.Step{Name: "count", Run: func(_ context.Context) error {
			runs++

			return nil
		}},
	)

	init.Start(context.Background())
	init.Start(context.Background())
	waitDone(t, init)

	assert.Equal(t, 1, runs)
}

func TestInitializer_TailBounds(t *testing.T) {
	init := bootstrap.New(nil,
		bootstrap.Step{Name: "fail", Run: func(_ context.Context) error {
			return fmt.Errorf("always fails")
		}},
	)

	init.Start(context.Background())
	waitDone(t, init)

	assert.Nil(t, init.Tail(0))
	assert.Len(t, init.Tail(1), 1)
	assert.Len(t, init.Tail(500), len(init.Tail(500)), "tail never exceeds recorded entries")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", bootstrap.StatusPending.String())
	assert.Equal(t, "in_progress", bootstrap.StatusInProgress.String())
	assert.Equal(t, "ready", bootstrap.StatusReady.String())
	assert.Equal(t, "failed", bootstrap.StatusFailed.String())
}
