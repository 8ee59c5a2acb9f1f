package history

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjack/internal/game"
)

func settledRecord(t *testing.T, id string) Record {
	t.Helper()
	shoe := game.NewStackedShoe(game.MustParseCards("As", "5h", "Kd", "9c", "8s")...)
	r, err := game.NewRound(id, 100, 1000, game.WithShoe(shoe))
	require.NoError(t, err)
	s, ok := r.Settlement()
	require.True(t, ok)
	return Record{
		RoundID:  id,
		Account:  "alice",
		Phase:    r.Phase(),
		Stake:    s.TotalStake,
		Payout:   s.Payout,
		Delta:    s.Delta,
		Snapshot: r.Snapshot(),
	}
}

func newTestRecorder(t *testing.T, dir string, clock quartz.Clock, flushRecords int) *Recorder {
	t.Helper()
	rec, err := NewRecorder(Config{
		Dir:           dir,
		FlushRecords:  flushRecords,
		FlushInterval: time.Minute,
		Clock:         clock,
	}, log.New(io.Discard))
	require.NoError(t, err)
	return rec
}

func TestRecorderFlushOnClose(t *testing.T) {
	t.Parallel()
	clock := quartz.NewMock(t)
	dir := t.TempDir()
	rec := newTestRecorder(t, dir, clock, 100)

	rec.Record(settledRecord(t, "r1"))
	rec.Record(settledRecord(t, "r2"))
	assert.Equal(t, 2, rec.Pending())
	require.NoError(t, rec.Close())

	records, err := Load(rec.Path())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Seq)
	assert.Equal(t, "r2", records[1].RoundID)
	assert.Equal(t, int64(150), records[0].Delta)
	assert.Equal(t, game.PhaseSettled, records[0].Snapshot.Phase)
	assert.Equal(t, game.OutcomeBlackjack, records[0].Snapshot.Settlement.Hands[0].Outcome)
	assert.True(t, clock.Now().Equal(records[0].Time))
}

func TestRecorderContinuesSequence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	first := newTestRecorder(t, dir, quartz.NewMock(t), 100)
	first.Record(settledRecord(t, "r1"))
	require.NoError(t, first.Close())

	second := newTestRecorder(t, dir, quartz.NewMock(t), 100)
	second.Record(settledRecord(t, "r2"))
	require.NoError(t, second.Close())

	records, err := Load(second.Path())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[1].Seq)
}

func TestRecorderFlushesOnThreshold(t *testing.T) {
	t.Parallel()
	rec := newTestRecorder(t, t.TempDir(), quartz.NewMock(t), 2)
	defer rec.Close()

	rec.Record(settledRecord(t, "r1"))
	rec.Record(settledRecord(t, "r2"))

	require.Eventually(t, func() bool {
		return rec.Pending() == 0
	}, time.Second, 5*time.Millisecond)

	records, err := Load(rec.Path())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecorderFlushesOnTicker(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	rec := newTestRecorder(t, t.TempDir(), clock, 100)
	defer rec.Close()

	rec.Record(settledRecord(t, "r1"))
	clock.Advance(time.Minute).MustWait(ctx)

	assert.Zero(t, rec.Pending())
	records, err := Load(rec.Path())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecorderDisablesAfterFailures(t *testing.T) {
	t.Parallel()
	rec := newTestRecorder(t, t.TempDir(), quartz.NewMock(t), 100)
	defer rec.Close()

	// A directory where the archive should be makes every append fail.
	require.NoError(t, os.Mkdir(rec.Path(), 0o755))

	rec.Record(settledRecord(t, "r1"))
	for range maxFlushFailures {
		rec.flushAndReport()
	}
	assert.True(t, rec.Disabled())
	assert.Zero(t, rec.Pending())

	rec.Record(settledRecord(t, "r2"))
	assert.Zero(t, rec.Pending(), "disabled recorder drops records")
}

func TestRecorderRetriesFailedFlushOnce(t *testing.T) {
	t.Parallel()
	rec := newTestRecorder(t, t.TempDir(), quartz.NewMock(t), 100)

	require.NoError(t, os.Mkdir(rec.Path(), 0o755))
	rec.Record(settledRecord(t, "r1"))
	rec.Record(settledRecord(t, "r2"))
	require.Error(t, rec.Flush())
	assert.Equal(t, 2, rec.Pending())

	require.NoError(t, os.Remove(rec.Path()))
	require.NoError(t, rec.Flush())
	require.NoError(t, rec.Close())

	records, err := Load(rec.Path())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].RoundID)
	assert.Equal(t, "r2", records[1].RoundID)
}

func TestAppendArchive(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rounds.jsonl")

	require.NoError(t, appendArchive(path, []byte("one\n")))
	require.NoError(t, appendArchive(path, []byte("two\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))

	assert.Error(t, appendArchive(filepath.Join(path, "nested"), []byte("x")))
}
