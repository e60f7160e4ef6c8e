package nominal

import (
	"math"

	"legged-ctrl-core/legged_loop/control"
)

// maxJointSpeed bounds the desired joint velocity derived from consecutive
// inverse-kinematics solutions.
const maxJointSpeed = 10.0

// WBC tracks the foot targets by leg inverse kinematics and maps contact
// forces to joint torques through the leg Jacobian transpose.
type WBC struct {
	dt     float64
	weight float64
}

func NewWBC(cfg control.Config) *WBC {
	return &WBC{dt: cfg.DtWBC, weight: cfg.Mass * 9.81}
}

func (w *WBC) Compute(in control.WBCInput) control.WBCOutput {
	joints := len(in.Q) - 6
	out := control.WBCOutput{
		QDes:  make([]float64, joints),
		VDes:  make([]float64, joints),
		TauFF: make([]float64, joints),
		NLE:   []float64{0, 0, w.weight},
	}
	for leg := 0; leg < joints/3; leg++ {
		prev := legAngles(in.Q[6:], leg)
		q := prev
		if leg < len(in.FeetPos) {
			q = legIK(in.FeetPos[leg].Sub(shoulders[leg%len(shoulders)]))
		}
		jac := legJacobian(q)
		for j := 0; j < 3; j++ {
			i := 3*leg + j
			out.QDes[i] = q[j]
			out.VDes[i] = control.ClampFloat((q[j]-prev[j])/w.dt, -maxJointSpeed, maxJointSpeed)
			if len(in.Contact) > leg && in.Contact[leg] && len(in.Forces) >= 3*leg+3 {
				f := in.Forces[3*leg : 3*leg+3]
				out.TauFF[i] = -(jac[j].X*f[0] + jac[j].Y*f[1] + jac[j].Z*f[2])
			}
			if math.IsNaN(out.QDes[i]) {
				out.QDes[i] = prev[j]
			}
		}
	}
	return out
}
