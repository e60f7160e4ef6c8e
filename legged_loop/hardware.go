package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"legged-ctrl-core/legged_loop/control"
	"legged-ctrl-core/utils"
)

// SensorSource delivers the latest sensor snapshot each fine tick.
type SensorSource interface {
	ReadSample(ctx context.Context) (control.SensorSample, error)
	Close() error
}

// ActuatorSink forwards one command to the motor drivers.
type ActuatorSink interface {
	SendCommand(ctx context.Context, cmd control.ActuatorCommand) error
	Close() error
}

// CANHardware decodes IMU and joint state frames into a sensor snapshot
// and encodes commands as one JOINT_CMD frame per joint.
type CANHardware struct {
	cmap   *utils.CANMap
	writer utils.CANWriter
	reader utils.CANReader
	log    *utils.Logger

	cmdFrames  []*utils.FrameDef
	stateIndex map[uint32]int

	mu       sync.Mutex
	latest   control.SensorSample
	received uint64
	lastRx   time.Time
	sent     uint64
}

func NewCANHardware(cmap *utils.CANMap, writer utils.CANWriter, reader utils.CANReader, joints int, log *utils.Logger) (*CANHardware, error) {
	h := &CANHardware{
		cmap:       cmap,
		writer:     writer,
		reader:     reader,
		log:        log,
		stateIndex: make(map[uint32]int, joints),
		latest: control.SensorSample{
			JointPositions:  make([]float64, joints),
			JointVelocities: make([]float64, joints),
		},
	}
	for j := 0; j < joints; j++ {
		cmd, err := cmap.FrameByName(fmt.Sprintf("JOINT_CMD_%d", j))
		if err != nil {
			return nil, fmt.Errorf("joint %d command: %w", j, err)
		}
		state, err := cmap.FrameByName(fmt.Sprintf("JOINT_STATE_%d", j))
		if err != nil {
			return nil, fmt.Errorf("joint %d state: %w", j, err)
		}
		h.cmdFrames = append(h.cmdFrames, cmd)
		h.stateIndex[state.ID] = j
	}
	for _, name := range []string{"IMU_ACCEL", "IMU_GYRO", "IMU_ATTITUDE"} {
		if _, err := cmap.FrameByName(name); err != nil {
			return nil, fmt.Errorf("imu: %w", err)
		}
	}
	return h, nil
}

// ReceiveLoop applies every decodable frame to the snapshot until ctx ends.
func (h *CANHardware) ReceiveLoop(ctx context.Context) error {
	h.log.Debug("RX loop started")
	defer h.log.Debug("RX loop stopped")

	for {
		frame, err := h.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("can rx: %w", err)
		}
		fd, values, err := h.cmap.DecodeEinrideFrame(frame)
		if err != nil {
			h.log.Trace("RX skip id=0x%X: %v", frame.ID, err)
			continue
		}
		if fd.Direction != "rx" {
			continue
		}
		h.apply(fd, values)
		h.log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
	}
}

func (h *CANHardware) apply(fd *utils.FrameDef, v map[string]float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received++
	h.lastRx = time.Now()

	switch fd.Name {
	case "IMU_ACCEL":
		h.latest.LinearAcceleration = [3]float64{v["accel_x"], v["accel_y"], v["accel_z"]}
	case "IMU_GYRO":
		h.latest.AngularRate = [3]float64{v["gyro_x"], v["gyro_y"], v["gyro_z"]}
	case "IMU_ATTITUDE":
		h.latest.Attitude = [3]float64{v["roll"], v["pitch"], v["yaw"]}
	default:
		if j, ok := h.stateIndex[fd.ID]; ok {
			h.latest.JointPositions[j] = v["q"]
			h.latest.JointVelocities[j] = v["v"]
		}
	}
}

// ReadSample returns a copy of the current snapshot.
func (h *CANHardware) ReadSample(ctx context.Context) (control.SensorSample, error) {
	if err := ctx.Err(); err != nil {
		return control.SensorSample{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.latest
	s.JointPositions = append([]float64(nil), h.latest.JointPositions...)
	s.JointVelocities = append([]float64(nil), h.latest.JointVelocities...)
	return s, nil
}

// RxAge is the time since the last decoded frame, zero before any.
func (h *CANHardware) RxAge() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastRx.IsZero() {
		return 0
	}
	return time.Since(h.lastRx)
}

func (h *CANHardware) SendCommand(ctx context.Context, cmd control.ActuatorCommand) error {
	for j, fd := range h.cmdFrames {
		if j >= cmd.Joints() {
			break
		}
		values := map[string]float64{
			"q_des":  cmd.QDes[j],
			"v_des":  cmd.VDes[j],
			"tau_ff": cmd.TauFF[j] * cmd.FF[j],
			"kp":     cmd.P[j],
			"kd":     cmd.D[j],
		}
		frame, err := h.cmap.EncodeEinrideFrame(fd.Name, values)
		if err != nil {
			return fmt.Errorf("encode %s: %w", fd.Name, err)
		}
		if err := h.writer.WriteFrame(ctx, frame); err != nil {
			return fmt.Errorf("transmit %s: %w", fd.Name, err)
		}
	}
	h.mu.Lock()
	h.sent++
	h.mu.Unlock()
	return nil
}

func (h *CANHardware) Close() error {
	var first error
	if h.reader != nil {
		first = h.reader.Close()
	}
	if h.writer != nil {
		if err := h.writer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
