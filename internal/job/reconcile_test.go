package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"wanderfeed/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	calls atomic.Int32
	block chan struct{}
	err   error
}

func (f *fakeReconciler) ReconcileCounters(context.Context) (*service.ReconcileReport, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &service.ReconcileReport{Fixed: map[string]int64{"likes": 2}, Total: 2}, nil
}

func TestReconcileJob_Run(t *testing.T) {
	r := &fakeReconciler{}
	NewReconcileJob(r, time.Second).Run()
	assert.Equal(t, int32(1), r.calls.Load())

	failing := &fakeReconciler{err: errors.New("db down")}
	NewReconcileJob(failing, 0).Run()
	assert.Equal(t, int32(1), failing.calls.Load())
}

func TestReconcileJob_SkipsOverlappingTicks(t *testing.T) {
	r := &fakeReconciler{block: make(chan struct{})}
	j := NewReconcileJob(r, time.Second)

	done := make(chan struct{})
	go func() {
		j.Run()
		close(done)
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	j.Run()
	assert.Equal(t, int32(1), r.calls.Load())

	close(r.block)
	<-done
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler()
	assert.NoError(t, s.Register("@every 1h", NewReconcileJob(&fakeReconciler{}, 0)))
	assert.Error(t, s.Register("not a schedule", NewReconcileJob(&fakeReconciler{}, 0)))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
