package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/usecase/importer"
)

type mockStarter struct {
	reqs []importer.Request
	busy map[string]bool
}

func (m *mockStarter) Start(_ context.Context, req importer.Request) (string, error) {
	m.reqs = append(m.reqs, req)
	if m.busy[req.Entity] {
		return "", domain.ErrBusy
	}
	return "id-" + req.Entity, nil
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(context.Background(), "every tuesday", &mockStarter{}, nil, zap.NewNop())
	require.ErrorIs(t, err, domain.ErrFatal)
}

func TestTick_StartsDeltaForEachEntity(t *testing.T) {
	st := &mockStarter{busy: map[string]bool{"b": true}}
	s, err := New(context.Background(), "@every 1h", st, []string{"a", "b", "c"}, zap.NewNop())
	require.NoError(t, err)

	s.Tick(context.Background())

	require.Len(t, st.reqs, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, st.reqs[i].Entity)
		assert.Equal(t, importer.CommandDeltaImport, st.reqs[i].Command)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(context.Background(), "*/5 * * * *", &mockStarter{}, []string{"a"}, zap.NewNop())
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
