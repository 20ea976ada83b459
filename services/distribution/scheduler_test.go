package distribution

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"setledger/pkg/taskname"
)

type enqueuerStub struct {
	tasks []*asynq.Task
	err   error
}

func (s *enqueuerStub) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestNextRunTime(t *testing.T) {
	loc := time.UTC

	// Before today's slot: fires later the same day.
	now := time.Date(2025, 3, 10, 0, 30, 0, 0, loc)
	next := nextRunTime(now, 1, 0)
	require.Equal(t, time.Date(2025, 3, 10, 1, 0, 0, 0, loc), next)

	// After today's slot: rolls to tomorrow.
	now = time.Date(2025, 3, 10, 1, 30, 0, 0, loc)
	next = nextRunTime(now, 1, 0)
	require.Equal(t, time.Date(2025, 3, 11, 1, 0, 0, 0, loc), next)

	// Exactly on the slot: fires immediately.
	now = time.Date(2025, 3, 10, 1, 0, 0, 0, loc)
	next = nextRunTime(now, 1, 0)
	require.Equal(t, now, next)
}

func TestFireEnqueuesPreviousDay(t *testing.T) {
	stub := &enqueuerStub{}
	s := &Scheduler{enqueuer: stub, hour: 1, location: time.UTC}

	s.fire()

	require.Len(t, stub.tasks, 1)
	require.Equal(t, taskname.DistributionSettleDay, stub.tasks[0].Type())

	var payload SettleDayPayload
	require.NoError(t, json.Unmarshal(stub.tasks[0].Payload(), &payload))

	wantDay := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	require.Equal(t, wantDay, payload.Day)
}

func TestSchedulerStatusDefaults(t *testing.T) {
	s := &Scheduler{location: time.UTC}

	status := s.Status()
	require.False(t, status.Running)
	require.True(t, status.NextRun.IsZero())
}
