package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fitingest/internal/decoder"
	"example.com/fitingest/internal/fields"
	"example.com/fitingest/internal/persistence"
	"example.com/fitingest/internal/persistence/memory"
)

func fullActivityFile(name string) *decoder.File {
	start := time.Date(2026, 4, 1, 6, 30, 0, 0, time.UTC)
	return activityFile(name,
		decoder.Message{Type: decoder.MessageSession, Fields: fields.Map{
			"sport":              "running",
			"sub_sport":          "trail",
			"start_time":         start,
			"timestamp":          start.Add(42 * time.Minute),
			"total_elapsed_time": 2520.0,
			"total_timer_time":   2480.0,
			"total_distance":     8200.0,
			"total_calories":     int64(512),
			"avg_heart_rate":     int64(148),
			"max_heart_rate":     int64(171),
			"num_laps":           int64(1),
			"total_steps":        int64(9120),
			"avg_speed":          3.25,
		}},
		decoder.Message{Type: decoder.MessageLap, Fields: fields.Map{
			"start_time":         start,
			"timestamp":          start.Add(42 * time.Minute),
			"total_distance":     8200.0,
			"avg_heart_rate":     int64(148),
			"total_elapsed_time": 2520.0,
		}},
		decoder.Message{Type: decoder.MessageRecord, Fields: fields.Map{
			"timestamp": start, "distance": 0.0, "heart_rate": int64(101), "speed": 2.9,
		}},
		decoder.Message{Type: decoder.MessageRecord, Fields: fields.Map{
			"timestamp": start.Add(time.Minute), "distance": 195.0, "heart_rate": int64(139), "speed": 3.2,
		}},
		decoder.Message{Type: decoder.MessageRecord, Fields: fields.Map{
			"timestamp": start.Add(2 * time.Minute), "distance": 390.0, "heart_rate": int64(151), "speed": 3.3,
		}},
	)
}

func TestIngestFileEndToEnd(t *testing.T) {
	ing, store := newTestIngestor()

	res, err := ing.IngestFile(context.Background(), fullActivityFile("200001_ACTIVITY.fit"))
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Equal(t, "200001", res.ActivityID)
	require.Equal(t, 5, res.Messages)

	activities := store.Rows(persistence.Activities)
	require.Len(t, activities, 1)
	act := activities[0]
	require.Equal(t, "200001", act["activity_id"])
	require.Equal(t, "running", act["sport"])
	require.Equal(t, "trail", act["sub_sport"])
	require.Equal(t, 8200.0, act["distance"])
	require.Equal(t, int64(512), act["calories"])
	require.Equal(t, 2520.0, act["elapsed_time"])

	require.Len(t, store.Rows(persistence.StepsActivities), 1)
	require.Len(t, store.Rows(persistence.ActivityLaps), 1)
	require.Len(t, store.Rows(persistence.ActivityRecords), 3)

	files := store.Rows(persistence.Files)
	require.Len(t, files, 1)
	require.Equal(t, "activity", files[0]["type"])
	require.Equal(t, int64(987654), files[0]["serial_number"])
}

func TestIngestFileIsIdempotent(t *testing.T) {
	ing, store := newTestIngestor()
	ctx := context.Background()

	_, err := ing.IngestFile(ctx, fullActivityFile("200002_ACTIVITY.fit"))
	require.NoError(t, err)
	first := store.Rows(persistence.Activities)

	_, err = ing.IngestFile(ctx, fullActivityFile("200002_ACTIVITY.fit"))
	require.NoError(t, err)

	require.Equal(t, first, store.Rows(persistence.Activities))
	require.Len(t, store.Rows(persistence.ActivityLaps), 1)
	require.Len(t, store.Rows(persistence.ActivityRecords), 3)
	require.Len(t, store.Rows(persistence.StepsActivities), 1)
}

func TestLaterFileDoesNotClearExistingValues(t *testing.T) {
	ing, store := newTestIngestor()
	ctx := context.Background()

	_, err := ing.IngestFile(ctx, activityFile("200003.fit",
		sessionMsg(fields.Map{
			"sport":          "running",
			"total_distance": 8200.0,
			"total_calories": int64(512),
		})))
	require.NoError(t, err)

	// A companion file for the same activity carries zeros and gaps where
	// the device already reported real values.
	_, err = ing.IngestFile(ctx, activityFile("200003_metadata.fit",
		sessionMsg(fields.Map{
			"sport":          "running",
			"total_distance": 0.0,
			"name":           "Morning Run",
		})))
	require.NoError(t, err)

	rows := store.Rows(persistence.Activities)
	require.Len(t, rows, 1)
	require.Equal(t, 8200.0, rows[0]["distance"])
	require.Equal(t, int64(512), rows[0]["calories"])
}

type titlePlugin struct {
	NoopPlugin
	title string
}

func (p titlePlugin) Name() string                   { return "title" }
func (p titlePlugin) MatchesFile(*decoder.File) bool { return true }
func (p titlePlugin) SessionEntry(_ *decoder.File, _ string, _ fields.Map) persistence.Record {
	return persistence.Record{"name": p.title, "description": "from plugin"}
}

func TestPluginContributesSessionColumns(t *testing.T) {
	ing, store := newTestIngestor(WithPlugins(titlePlugin{title: "Hill Repeats"}))

	_, err := ing.IngestFile(context.Background(), activityFile("200004.fit",
		sessionMsg(fields.Map{"sport": "running"})))
	require.NoError(t, err)

	rows := store.Rows(persistence.Activities)
	require.Len(t, rows, 1)
	require.Equal(t, "Hill Repeats", rows[0]["name"])
	require.Equal(t, "from plugin", rows[0]["description"])
}

func TestLaterPluginWinsOnSameColumn(t *testing.T) {
	ing, store := newTestIngestor(WithPlugins(
		titlePlugin{title: "First"},
		titlePlugin{title: "Second"},
	))

	_, err := ing.IngestFile(context.Background(), activityFile("200005.fit",
		sessionMsg(fields.Map{"sport": "running"})))
	require.NoError(t, err)

	rows := store.Rows(persistence.Activities)
	require.Len(t, rows, 1)
	require.Equal(t, "Second", rows[0]["name"])
}

type brokenStore struct{ err error }

func (s brokenStore) Begin(context.Context) (persistence.Session, error) {
	return brokenSession{err: s.err}, nil
}

type brokenSession struct{ err error }

func (se brokenSession) Exists(context.Context, persistence.Table, persistence.Record) (bool, error) {
	return false, se.err
}

func (se brokenSession) Upsert(context.Context, persistence.Table, persistence.Record) error {
	return se.err
}

func (se brokenSession) GetByID(context.Context, persistence.Table, persistence.Record) (persistence.Record, error) {
	return nil, se.err
}

func (se brokenSession) Commit(context.Context) error   { return se.err }
func (se brokenSession) Rollback(context.Context) error { return nil }

func TestStoreFailureIsFatalAndRollsBack(t *testing.T) {
	boom := errors.New("connection reset")
	device := memory.New()
	ing := NewIngestor(brokenStore{err: boom}, brokenStore{err: boom}, device)

	_, err := ing.IngestFile(context.Background(), fullActivityFile("200006_ACTIVITY.fit"))
	require.Error(t, err)

	var fatal *FatalFileError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, "200006_ACTIVITY.fit", fatal.FileID)
	require.ErrorIs(t, err, boom)

	// The shared file registry rolls back with the data scope.
	require.Empty(t, device.Rows(persistence.Files))
}

func TestConflictExhaustionIsFatalAndRollsBack(t *testing.T) {
	// A store that burns through its conflict-retry budget reports an error
	// wrapping persistence.ErrConflict; the whole file must abort on it.
	conflict := fmt.Errorf("upsert activities: %w", persistence.ErrConflict)
	device := memory.New()
	ing := NewIngestor(brokenStore{err: conflict}, brokenStore{err: conflict}, device)

	_, err := ing.IngestFile(context.Background(), fullActivityFile("200008_ACTIVITY.fit"))
	require.Error(t, err)

	var fatal *FatalFileError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, "200008_ACTIVITY.fit", fatal.FileID)
	require.ErrorIs(t, err, persistence.ErrConflict)
	require.Empty(t, device.Rows(persistence.Files))
}

func TestCancelledContextAbortsFile(t *testing.T) {
	ing, store := newTestIngestor()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ing.IngestFile(ctx, fullActivityFile("200007_ACTIVITY.fit"))
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, store.Rows(persistence.Activities))
}
