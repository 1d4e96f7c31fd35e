package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erdemo.org/responder-simulator/internal/geo"
)

var (
	start = geo.Coordinate{Lat: 34.18323, Lon: -77.90999}
	stepA = NewMissionStep(34.1827, -77.9106, false, false)
	stepB = NewMissionStep(34.1842, -77.9125, true, false)
	stepC = NewMissionStep(34.1706, -77.949, false, true)
)

func newLocation(person bool, distanceUnit float64, steps ...MissionStep) *ResponderLocation {
	return NewResponderLocation("mission-1", "responder-1", "incident-1", steps, start, person, distanceUnit)
}

func tick(rl *ResponderLocation) Plan {
	plan := rl.CalculateNextLocation(DefaultOvershoot)
	rl.MoveToNextLocation()
	return plan
}

func TestNewResponderLocation(t *testing.T) {
	steps := []MissionStep{stepA, stepB, stepC}
	rl := NewResponderLocation("m", "r", "i", steps, start, true, 750)

	assert.Equal(t, StatusCreated, rl.Status)
	assert.Equal(t, "m", rl.Key())
	assert.Equal(t, start, rl.CurrentPosition)
	assert.False(t, rl.Waiting)
	assert.Equal(t, 750.0, rl.DistanceUnit)

	steps[0] = stepC
	assert.Equal(t, stepA, rl.Queue[0], "queue should not share the caller's slice")
}

func TestPickupScenario(t *testing.T) {
	rl := newLocation(true, 10000, stepA, stepB, stepC)

	plan := tick(rl)
	assert.Equal(t, 1, plan.Consumed)
	assert.Nil(t, plan.Intermediate)
	assert.Equal(t, StatusWaiting, rl.Status)
	assert.True(t, rl.Waiting)
	assert.Equal(t, stepB.Coordinates, rl.CurrentPosition)
	require.Len(t, rl.Queue, 1)

	// a waiting mission does not plan and does not move on its own
	plan = rl.CalculateNextLocation(DefaultOvershoot)
	assert.True(t, plan.Skipped)
	require.Len(t, rl.Queue, 1)

	require.True(t, rl.ContinueMoving())
	assert.Equal(t, StatusPickedUp, rl.Status)
	assert.False(t, rl.Waiting)

	tick(rl)
	assert.Equal(t, StatusDropped, rl.Status)
	assert.Equal(t, stepC.Coordinates, rl.CurrentPosition)
	assert.Empty(t, rl.Queue)
	assert.Equal(t, 10000.0, rl.DistanceUnit)
}

func TestVehicleNeverWaits(t *testing.T) {
	rl := newLocation(false, 10000, stepA, stepB, stepC)

	tick(rl)
	assert.Equal(t, StatusPickedUp, rl.Status)
	assert.False(t, rl.Waiting)
	assert.Equal(t, stepB.Coordinates, rl.CurrentPosition)

	tick(rl)
	assert.Equal(t, StatusDropped, rl.Status)
}

func TestPartialHopTowardsDistantStop(t *testing.T) {
	rl := newLocation(true, 20, stepC)

	plan := tick(rl)
	require.NotNil(t, plan.Intermediate)
	assert.Equal(t, StatusMoving, rl.Status)
	assert.Equal(t, *plan.Intermediate, rl.CurrentPosition)
	assert.NotEqual(t, stepC.Coordinates, rl.CurrentPosition)
	assert.Less(t, geo.Distance(rl.CurrentPosition, stepC.Coordinates), geo.Distance(start, stepC.Coordinates))
	assert.InDelta(t, 20, geo.Distance(start, rl.CurrentPosition), 15)

	require.Len(t, rl.Queue, 1, "the destination stays queued")
	assert.Equal(t, stepC, rl.Queue[0])
}

func TestConsumesIntermediateSteps(t *testing.T) {
	plainB := NewMissionStep(stepB.Coordinates.Lat, stepB.Coordinates.Lon, false, false)
	rl := newLocation(false, 1000, stepA, plainB, stepC)

	plan := tick(rl)
	assert.Equal(t, 2, plan.Consumed)
	require.NotNil(t, plan.Intermediate)
	assert.Equal(t, StatusMoving, rl.Status)

	travelled := geo.Distance(start, stepA.Coordinates) + geo.Distance(stepA.Coordinates, plainB.Coordinates)
	assert.InDelta(t, 1000-travelled, geo.Distance(plainB.Coordinates, rl.CurrentPosition), 15)
	require.Len(t, rl.Queue, 1)
	assert.Equal(t, stepC, rl.Queue[0])
}

func TestJumpsWithinOvershootTolerance(t *testing.T) {
	// 81 m away, distance unit 80: within tolerance, no synthetic step
	rl := newLocation(false, 80, stepA, stepC)

	plan := tick(rl)
	assert.Nil(t, plan.Intermediate)
	assert.Zero(t, plan.Consumed)
	assert.Equal(t, stepA.Coordinates, rl.CurrentPosition)
	assert.Equal(t, StatusMoving, rl.Status)
}

func TestLastPlainStepIsNotSkipped(t *testing.T) {
	rl := newLocation(false, 10000, stepA)

	plan := tick(rl)
	assert.Zero(t, plan.Consumed)
	assert.Equal(t, stepA.Coordinates, rl.CurrentPosition)
	assert.Equal(t, StatusMoving, rl.Status)
	assert.Empty(t, rl.Queue)
}

func TestEmptyQueue(t *testing.T) {
	rl := newLocation(false, 100)

	plan := rl.CalculateNextLocation(DefaultOvershoot)
	assert.True(t, plan.EmptyQueue)
	assert.False(t, rl.MoveToNextLocation())
	assert.Equal(t, StatusCreated, rl.Status)
	assert.Equal(t, start, rl.CurrentPosition)
}

func TestContinueMovingOnlyFromWaiting(t *testing.T) {
	for _, status := range []Status{StatusCreated, StatusMoving, StatusPickedUp, StatusDropped} {
		t.Run(string(status), func(t *testing.T) {
			rl := newLocation(true, 100, stepC)
			rl.Status = status

			before := *rl
			assert.False(t, rl.ContinueMoving())
			assert.Equal(t, before.Status, rl.Status)
			assert.Equal(t, before.Waiting, rl.Waiting)
		})
	}
}

func TestNonPositiveOvershootFallsBackToDefault(t *testing.T) {
	a := newLocation(false, 20, stepC)
	b := newLocation(false, 20, stepC)

	assert.Equal(t, a.CalculateNextLocation(0), b.CalculateNextLocation(DefaultOvershoot))
}

func TestRemainingRoute(t *testing.T) {
	rl := newLocation(false, 100, stepA, stepB, stepC)
	assert.Equal(t, []geo.Coordinate{stepA.Coordinates, stepB.Coordinates, stepC.Coordinates}, rl.RemainingRoute())
}
