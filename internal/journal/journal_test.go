package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/models"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(ctx, events.Event{Portfolio: "Alpha", Time: base, Type: models.ActivityTrade, Message: "buy 2 AAPL"}))
	require.NoError(t, j.Append(ctx, events.Event{Portfolio: "Beta", Time: base.Add(time.Minute), Type: models.ActivityAlert, Message: "drawdown"}))
	require.NoError(t, j.Append(ctx, events.Event{Portfolio: "Alpha", Time: base.Add(2 * time.Minute), Type: models.ActivityDecision, Message: "hold"}))

	got, err := j.Recent(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hold", got[0].Message)
	assert.Equal(t, models.ActivityTrade, got[1].Type)
	assert.True(t, got[1].Time.Equal(base))

	all, err := j.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Beta", all[1].Portfolio)
}

func TestRecent_EmptyJournal(t *testing.T) {
	j := openTest(t)
	got, err := j.Recent(context.Background(), "Alpha", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRun_DrainsUntilClosed(t *testing.T) {
	j := openTest(t)
	bus := events.NewBus(zerolog.Nop())
	ch, cancel := bus.Subscribe(16)

	done := make(chan struct{})
	go func() {
		j.Run(context.Background(), ch)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		bus.Publish(events.Event{Portfolio: "Alpha", Type: models.ActivityTrade, Message: "fill"})
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("journal did not stop after channel close")
	}

	got, err := j.Recent(context.Background(), "Alpha", 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), events.Event{Portfolio: "Alpha", Type: models.ActivityConfig, Message: "x"}))
	require.NoError(t, j.Close())

	j, err = Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Recent(context.Background(), "Alpha", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
