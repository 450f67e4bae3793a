package performance

import (
	"io"
	"testing"

	"github.com/flybeeper/efb-backend/internal/metar"
	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(NewCalculator(), utils.NewLoggerWithOutput("error", "text", io.Discard))
	require.NoError(t, err)
	return store
}

func fillExample(st *LandingState) {
	st.ICAO = "LFPG"
	st.Weight = floatPtr(65000)
	st.Flaps = FlapsFull
	st.RunwayCondition = RunwayDry
	st.ApproachSpeed = floatPtr(140)
	st.WindDirection = floatPtr(90)
	st.WindMagnitude = floatPtr(10)
	st.RunwayHeading = floatPtr(90)
	st.ReverseThrust = true
	st.Altitude = floatPtr(0)
	st.Temperature = floatPtr(15)
	st.Slope = floatPtr(0)
	st.Pressure = floatPtr(1013)
	st.RunwayLength = floatPtr(3000)
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(nil, utils.NewLoggerWithOutput("error", "text", io.Discard))
	assert.Error(t, err)

	_, err = NewStore(NewCalculator(), nil)
	assert.Error(t, err)
}

func TestStore_InitialState(t *testing.T) {
	store := newTestStore(t)
	st := store.Snapshot()

	assert.Equal(t, FlapsFull, st.Flaps)
	assert.Equal(t, RunwayDry, st.RunwayCondition)
	assert.Nil(t, st.Weight)
	assert.Empty(t, st.RunwayVisualizationLabels)
	assert.Zero(t, st.MaxAutobrakeLandingDist)
}

func TestStore_CalculateIncompleteIsNoop(t *testing.T) {
	store := newTestStore(t)

	notified := 0
	store.Subscribe(func(LandingState) { notified++ })

	store.SetValues(func(st *LandingState) {
		fillExample(st)
		st.Pressure = nil
	})
	notified = 0

	_, _, err := store.Calculate()
	assert.ErrorIs(t, err, ErrIncompleteInput)
	assert.Zero(t, notified)

	st := store.Snapshot()
	assert.Zero(t, st.MaxAutobrakeLandingDist)
	assert.Zero(t, st.DisplayedRunwayLength)
}

func TestStore_Calculate(t *testing.T) {
	store := newTestStore(t)
	store.SetValues(fillExample)

	var last LandingState
	store.Subscribe(func(st LandingState) { last = st })

	result, in, err := store.Calculate()
	require.NoError(t, err)

	assert.Equal(t, 65000.0, in.Weight)
	assert.Equal(t, 1124, result.MaxAutobrakeLandingDist)
	assert.GreaterOrEqual(t, result.LowAutobrakeLandingDist, result.MediumAutobrakeLandingDist)
	assert.GreaterOrEqual(t, result.MediumAutobrakeLandingDist, result.MaxAutobrakeLandingDist)
	assert.False(t, result.LowExceedsRunway)
	assert.Equal(t, 3000.0, result.DisplayedRunwayLength)

	st := store.Snapshot()
	assert.Equal(t, result, st.Result)
	assert.Equal(t, result, last.Result)
}

func TestStore_CalculateShortRunway(t *testing.T) {
	store := newTestStore(t)
	store.SetValues(func(st *LandingState) {
		fillExample(st)
		st.RunwayLength = floatPtr(1200)
	})

	result, _, err := store.Calculate()
	require.NoError(t, err)

	assert.False(t, result.MaxExceedsRunway)
	assert.True(t, result.MediumExceedsRunway)
	assert.True(t, result.LowExceedsRunway)
}

func TestStore_CalculateOutOfRange(t *testing.T) {
	store := newTestStore(t)
	store.SetValues(func(st *LandingState) {
		fillExample(st)
		st.Weight = floatPtr(20000)
	})

	_, _, err := store.Calculate()
	require.Error(t, err)

	var rangeErr *RangeError
	assert.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "weight", rangeErr.Field)
	assert.Zero(t, store.Snapshot().MaxAutobrakeLandingDist)
}

func TestStore_CalculateRunwayLengthOutOfRange(t *testing.T) {
	for _, length := range []float64{-500, 25000} {
		store := newTestStore(t)
		store.SetValues(func(st *LandingState) {
			fillExample(st)
			st.RunwayLength = floatPtr(length)
		})

		_, _, err := store.Calculate()
		var rangeErr *RangeError
		require.ErrorAs(t, err, &rangeErr, "runway length %v", length)
		assert.Equal(t, "runwayLength", rangeErr.Field)
		assert.Equal(t, length, rangeErr.Value)

		// Результат не пересчитан, флаги превышения не выставлены
		snapshot := store.Snapshot()
		assert.Zero(t, snapshot.MaxAutobrakeLandingDist)
		assert.False(t, snapshot.LowExceedsRunway)
	}

	assert.NoError(t, ValidateRunwayLength(MinRunwayLength))
	assert.NoError(t, ValidateRunwayLength(MaxRunwayLength))
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)
	store.SetValues(fillExample)
	_, _, err := store.Calculate()
	require.NoError(t, err)

	store.Clear()

	assert.Equal(t, InitialLandingState(), store.Snapshot())
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	store := newTestStore(t)
	store.SetValues(fillExample)

	st := store.Snapshot()
	*st.Weight = 1

	assert.Equal(t, 65000.0, *store.Snapshot().Weight)
}

func TestStore_Unsubscribe(t *testing.T) {
	store := newTestStore(t)

	calls := 0
	unsubscribe := store.Subscribe(func(LandingState) { calls++ })
	store.SetValues(func(st *LandingState) { st.ICAO = "EGLL" })
	unsubscribe()
	store.SetValues(func(st *LandingState) { st.ICAO = "LFPG" })

	assert.Equal(t, 1, calls)
}

func TestStore_ApplyMetarTouchesOnlyMetarFields(t *testing.T) {
	store := newTestStore(t)
	store.SetValues(fillExample)
	before := store.Snapshot()

	rec, err := metar.Parse("EGLL 181050Z 24012KT 9999 SCT030 12/08 Q1015")
	require.NoError(t, err)

	store.ApplyMetar(rec)
	after := store.Snapshot()

	assert.Equal(t, 240.0, *after.WindDirection)
	assert.Equal(t, 12.0, *after.WindMagnitude)
	assert.Equal(t, 12.0, *after.Temperature)
	assert.Equal(t, 1015.0, *after.Pressure)

	after.WindDirection = before.WindDirection
	after.WindMagnitude = before.WindMagnitude
	after.Temperature = before.Temperature
	after.Pressure = before.Pressure
	assert.Equal(t, before, after)
}
