package control

import (
	"github.com/golang/geo/r3"
)

// EstimationAdapter feeds raw samples to the external estimator and turns
// its output into a RobotState. Samples are normalised to the configured
// joint count so downstream slices always have fixed sizes.
type EstimationAdapter struct {
	est     StateEstimator
	joints  int
	current RobotState
}

func NewEstimationAdapter(est StateEstimator, joints int) *EstimationAdapter {
	return &EstimationAdapter{est: est, joints: joints}
}

// Update runs the estimator for one tick and atomically replaces the state.
func (a *EstimationAdapter) Update(tick int, sample SensorSample, gait GaitPattern, feet []r3.Vector, vref []float64) RobotState {
	sample.JointPositions = fitFloats(sample.JointPositions, a.joints)
	sample.JointVelocities = fitFloats(sample.JointVelocities, a.joints)

	a.est.Update(EstimatorInput{
		Sample:        sample,
		Gait:          gait,
		FeetPositions: feet,
		VRef:          fitFloats(vref, 6),
	})
	e := a.est.Estimate()

	n := 6 + a.joints
	st := RobotState{
		Tick:       tick,
		World:      GeneralizedState{Q: fitFloats(e.Q, n), V: fitFloats(e.V, n)},
		Horizontal: GeneralizedState{Q: fitFloats(e.HQ, n), V: fitFloats(e.HV, n)},
		HVWindowed: fitFloats(e.HVWindowed, 6),
		VRef:       fitFloats(e.VRef, 6),
		ARef:       fitFloats(e.ARef, 6),
		QFilt:      fitFloats(e.QFilt, n),
		VSecu:      fitFloats(e.VSecu, a.joints),
		Yaw:        e.Yaw,
		OTh:        e.OTh,
	}

	// Base frame: the floating base sits at its own origin.
	bq := make([]float64, n)
	copy(bq[6:], st.World.Q[6:])
	st.Base = GeneralizedState{Q: bq, V: fitFloats(e.BV, n)}

	roll, pitch, yaw := st.World.Q[3], st.World.Q[4], st.World.Q[5]
	st.ORb = RPYToMatrix(roll, pitch, yaw)
	st.ORh = YawRotation(e.Yaw)
	st.HRb = TiltRotation(roll, pitch)

	a.current = st
	return st
}

// State returns the last published state.
func (a *EstimationAdapter) State() RobotState { return a.current }

func (a *EstimationAdapter) SecurityCheck(tauFF []float64) FaultCode {
	return a.est.SecurityCheck(tauFF)
}

// fitFloats copies s into a slice of exactly n values, zero padded.
func fitFloats(s []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, s)
	return out
}
