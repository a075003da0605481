package fields

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetFallsBackToDefault(t *testing.T) {
	m := Map{"distance": 1000.0, "cadence": nil}

	require.Equal(t, 1000.0, m.Get("distance", nil))
	require.Nil(t, m.Get("cadence", nil), "unset sentinel should read as default")
	require.Equal(t, 42, m.Get("missing", 42))
}

func TestFloatCoercesNumericKinds(t *testing.T) {
	m := Map{
		"a": uint8(57),
		"b": int32(-3),
		"c": float64(1.5),
	}

	for name, want := range map[string]float64{"a": 57, "b": -3, "c": 1.5} {
		got, ok, err := m.Float(name)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok, err := m.Float("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasAndIntTreatNilAsAbsent(t *testing.T) {
	m := Map{"resting_metabolic_rate": uint16(1650), "cadence": nil}

	require.True(t, m.Has("resting_metabolic_rate"))
	require.False(t, m.Has("cadence"), "unset sentinel should read as absent")
	require.False(t, m.Has("missing"))

	got, ok, err := m.Int("resting_metabolic_rate")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1650), got)

	_, ok, err = m.Int("cadence")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTypeMismatchIsReportedNotPanicked(t *testing.T) {
	m := Map{"heart_rate": "not-a-number"}

	_, _, err := m.Float("heart_rate")
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, "heart_rate", mismatch.Field)
}

func TestTimeAcceptsRFC3339Strings(t *testing.T) {
	ts := time.Date(2023, 4, 1, 6, 30, 0, 0, time.UTC)
	m := Map{"start_time": ts.Format(time.RFC3339), "stop_time": ts}

	got, err := m.Time("start_time")
	require.NoError(t, err)
	require.True(t, got.Equal(ts))

	got, err = m.Time("stop_time")
	require.NoError(t, err)
	require.True(t, got.Equal(ts))

	got, err = m.Time("missing")
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestList(t *testing.T) {
	m := Map{"activity_type": []any{"walking", "running"}}

	l, err := m.List("activity_type")
	require.NoError(t, err)
	require.Len(t, l, 2)

	_, err = m.List("activity_type")
	require.NoError(t, err)

	m["activity_type"] = "walking"
	_, err = m.List("activity_type")
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
}
