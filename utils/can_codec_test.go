package utils

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDefaultCANMapLayout(t *testing.T) {
	m, err := DefaultCANMap()
	if err != nil {
		t.Fatalf("DefaultCANMap: %v", err)
	}

	if got := len(m.FramesByDirection("tx")); got != 12 {
		t.Errorf("tx frames = %d, want 12 joint command frames", got)
	}
	if got := len(m.FramesByDirection("rx")); got != 15 {
		t.Errorf("rx frames = %d, want 3 IMU + 12 joint state frames", got)
	}

	fd, err := m.FrameByName("JOINT_CMD_11")
	if err != nil {
		t.Fatalf("FrameByName: %v", err)
	}
	if fd.ID != 0x10B || fd.DLC != 8 || len(fd.Signals) != 5 {
		t.Fatalf("JOINT_CMD_11 = id 0x%X dlc %d signals %d", fd.ID, fd.DLC, len(fd.Signals))
	}
}

func TestEncodeJointCommandQuantization(t *testing.T) {
	m, err := DefaultCANMap()
	if err != nil {
		t.Fatal(err)
	}

	frame, err := m.EncodeEinrideFrame("JOINT_CMD_3", map[string]float64{
		"q_des":  0.7641,
		"v_des":  -1.25,
		"tau_ff": 0.4,
		"kp":     3.0,
		"kd":     0.1,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if frame.ID != 0x103 || frame.Length != 8 {
		t.Fatalf("frame id 0x%X len %d", frame.ID, frame.Length)
	}

	fd, got, err := m.DecodeEinrideFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fd.Name != "JOINT_CMD_3" {
		t.Fatalf("decoded frame %s", fd.Name)
	}

	want := map[string]float64{"q_des": 0.7641, "v_des": -1.25, "tau_ff": 0.4, "kp": 3.0, "kd": 0.1}
	for name, w := range want {
		s, _ := fd.Signal(name)
		if math.Abs(got[name]-w) > s.Resolution()/2+1e-12 {
			t.Errorf("%s = %v, want %v (resolution %v)", name, got[name], w, s.Resolution())
		}
	}
}

func TestEncodeClampsToSignalRange(t *testing.T) {
	m, err := DefaultCANMap()
	if err != nil {
		t.Fatal(err)
	}

	payload, _, err := m.EncodeFrame("JOINT_CMD_0", map[string]float64{
		"tau_ff": 500,  // above +32.767 Nm
		"kd":     -1.0, // below 0
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.DecodeFrame(0x100, payload)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got["tau_ff"]-32.767) > 1e-9 {
		t.Errorf("tau_ff = %v, want saturated 32.767", got["tau_ff"])
	}
	if got["kd"] != 0 {
		t.Errorf("kd = %v, want 0", got["kd"])
	}
	if got["q_des"] != 0 || got["v_des"] != 0 {
		t.Errorf("missing signals should take default 0, got q_des=%v v_des=%v", got["q_des"], got["v_des"])
	}
}

func TestSignExtend(t *testing.T) {
	tests := []struct {
		u      uint64
		bits   int
		signed bool
		want   int64
	}{
		{0xFFFF, 16, true, -1},
		{0x8000, 16, true, -32768},
		{0x7FFF, 16, true, 32767},
		{0xFFFF, 16, false, 65535},
		{0x80, 8, true, -128},
	}
	for _, tt := range tests {
		if got := signExtend(tt.u, tt.bits, tt.signed); got != tt.want {
			t.Errorf("signExtend(0x%X, %d, %v) = %d, want %d", tt.u, tt.bits, tt.signed, got, tt.want)
		}
	}
}

func TestParseCANMapRejectsOverlongSignal(t *testing.T) {
	csv := "direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment\n" +
		"tx,0x100,BAD,1,2,x,8,16,little,true,1,0,-10,10,0,u,c\n"
	if _, err := ParseCANMap(strings.NewReader(csv)); err == nil {
		t.Fatal("expected error for signal past DLC")
	}
}

func TestUnknownFrame(t *testing.T) {
	m, err := DefaultCANMap()
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.FrameByName("NOPE")
	if !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("err = %v, want ErrUnknownFrame", err)
	}
	_, err = m.FrameByID(0x7FF)
	if !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("err = %v, want ErrUnknownFrame", err)
	}
}

func TestParseCANMapRowErrors(t *testing.T) {
	const header = "direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment\n"
	tests := []struct {
		name string
		rows string
		want string
	}{
		{
			"bad number reports line",
			"tx,0x100,A,1,8,x,0,16,little,true,0.1,0,-1,1,0,u,c\n" +
				"tx,0x101,B,1,8,y,0,sixteen,little,true,0.1,0,-1,1,0,u,c\n",
			"line 3: invalid bit_length",
		},
		{
			"overlapping signals",
			"rx,0x200,A,1,4,x,0,16,little,true,0.1,0,-1,1,0,u,c\n" +
				"rx,0x200,A,1,4,y,8,16,little,true,0.1,0,-1,1,0,u,c\n",
			"overlap",
		},
		{
			"unknown direction",
			"both,0x200,A,1,4,x,0,16,little,true,0.1,0,-1,1,0,u,c\n",
			"must be tx or rx",
		},
		{
			"name reused by another id",
			"rx,0x200,A,1,4,x,0,16,little,true,0.1,0,-1,1,0,u,c\n" +
				"rx,0x201,A,1,4,x,0,16,little,true,0.1,0,-1,1,0,u,c\n",
			"used by 0x200 and 0x201",
		},
		{
			"duplicate signal",
			"rx,0x200,A,1,4,x,0,16,little,true,0.1,0,-1,1,0,u,c\n" +
				"rx,0x200,A,1,4,x,16,16,little,true,0.1,0,-1,1,0,u,c\n",
			"duplicate signal x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCANMap(strings.NewReader(header + tt.rows))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}
