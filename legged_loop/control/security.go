package control

import (
	"math"
	"sync"

	"legged-ctrl-core/utils"
)

type securityChecker interface {
	SecurityCheck(tauFF []float64) FaultCode
}

// SecurityMonitor is the fail-safe latch. NOMINAL -> FAULTED happens on the
// first nonzero verdict; there is no way back within a session.
type SecurityMonitor struct {
	checker securityChecker
	joints  int
	damping float64
	log     *utils.Logger

	mu     sync.RWMutex
	status SecurityStatus
}

func NewSecurityMonitor(session string, checker securityChecker, joints int, damping float64, log *utils.Logger) *SecurityMonitor {
	return &SecurityMonitor{
		checker: checker,
		joints:  joints,
		damping: damping,
		log:     log,
		status:  SecurityStatus{Session: session},
	}
}

// Check queries the estimator while nominal and not stopped. It returns
// true when the latch is set (now or earlier).
func (s *SecurityMonitor) Check(tick int, st RobotState, tauFF []float64, stopped bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Faulted {
		return true
	}
	if stopped {
		return false
	}
	code := s.checker.SecurityCheck(tauFF)
	if code == FaultNone {
		return false
	}

	s.status.Faulted = true
	s.status.Code = code
	s.status.Tick = tick
	s.status.Value = diagnosticValue(code, st, tauFF)
	s.log.Critical("tick %d: security fault %s (session %s), switching to safe command; value=%.3f",
		tick, code, s.status.Session, s.status.Value)
	return true
}

// Apply replaces cmd with the safe command when faulted or stopped.
func (s *SecurityMonitor) Apply(cmd ActuatorCommand, stopped bool) ActuatorCommand {
	if s.Faulted() || stopped {
		return SafeCommand(s.joints, s.damping)
	}
	return cmd
}

func (s *SecurityMonitor) Faulted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Faulted
}

// Status returns a copy of the latch state.
func (s *SecurityMonitor) Status() SecurityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.status
	out.Value = cloneFloats(s.status.Value)
	return out
}

// diagnosticValue is the quantity that tripped the check: joint angles in
// degrees, the security velocity, or the commanded torque.
func diagnosticValue(code FaultCode, st RobotState, tauFF []float64) []float64 {
	switch code {
	case FaultJointLimit:
		if len(st.QFilt) < 6 {
			return nil
		}
		out := cloneFloats(st.QFilt[6:])
		for i := range out {
			out[i] *= 180 / math.Pi
		}
		return out
	case FaultVelocityLimit:
		return cloneFloats(st.VSecu)
	case FaultTorqueLimit:
		return cloneFloats(tauFF)
	}
	return nil
}
