package utils

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownFrame is returned when a frame name or ID is not in the map.
var ErrUnknownFrame = errors.New("unknown frame")

//go:embed legged_can_map.csv
var defaultCANMap []byte

// DefaultCANMap parses the embedded joint/IMU frame layout.
func DefaultCANMap() (*CANMap, error) {
	return ParseCANMap(bytes.NewReader(defaultCANMap))
}

func LoadCANMap(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseCANMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvPath, err)
	}
	return m, nil
}

var canMapColumns = []string{
	"direction", "frame_id", "frame_name", "cycle_ms", "dlc",
	"signal_name", "start_bit", "bit_length", "endianness",
	"signed", "factor", "offset", "min", "max", "default", "unit", "comment",
}

// ParseCANMap reads one signal per row; rows sharing a frame_id form a frame.
func ParseCANMap(src io.Reader) (*CANMap, error) {
	r := csv.NewReader(src)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("can map header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, k := range canMapColumns {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("can map missing required column: %q", k)
		}
	}

	m := &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := canRow{rec: rec, col: col}
		if err := m.addRow(&row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
		for i := 1; i < len(fd.Signals); i++ {
			prev, cur := fd.Signals[i-1], fd.Signals[i]
			if prev.StartBit+prev.BitLength > cur.StartBit {
				return nil, fmt.Errorf("frame %s: signals %s and %s overlap", fd.Name, prev.Name, cur.Name)
			}
		}
	}
	return m, nil
}

func (m *CANMap) addRow(row *canRow) error {
	frameID := row.uint32("frame_id")
	frameName := row.str("frame_name")
	direction := strings.ToLower(row.str("direction"))
	cycleMS := row.int("cycle_ms")
	dlc := row.int("dlc")
	sig := SignalDef{
		Name:       row.str("signal_name"),
		StartBit:   row.int("start_bit"),
		BitLength:  row.int("bit_length"),
		Endianness: row.str("endianness"),
		Signed:     row.bool("signed"),
		Factor:     row.float("factor"),
		Offset:     row.float("offset"),
		Min:        row.float("min"),
		Max:        row.float("max"),
		Default:    row.float("default"),
		Unit:       row.str("unit"),
		Comment:    row.str("comment"),
	}
	if row.err != nil {
		return row.err
	}

	switch {
	case frameName == "" || sig.Name == "":
		return errors.New("frame_name and signal_name are required")
	case direction != "tx" && direction != "rx":
		return fmt.Errorf("frame %s: direction %q must be tx or rx", frameName, direction)
	case dlc <= 0 || dlc > 8:
		return fmt.Errorf("frame %s (0x%X): invalid dlc %d", frameName, frameID, dlc)
	case sig.Endianness != "" && sig.Endianness != "little":
		return fmt.Errorf("frame %s signal %s: unsupported endianness %q (only little supported)",
			frameName, sig.Name, sig.Endianness)
	case sig.BitLength <= 0 || sig.BitLength > 64:
		return fmt.Errorf("frame %s signal %s: invalid bit_length %d", frameName, sig.Name, sig.BitLength)
	case sig.Factor == 0:
		return fmt.Errorf("frame %s signal %s: factor must be non-zero", frameName, sig.Name)
	case sig.StartBit < 0 || sig.StartBit+sig.BitLength > 8*dlc:
		return fmt.Errorf("frame %s signal %s: bits %d..%d exceed dlc %d",
			frameName, sig.Name, sig.StartBit, sig.StartBit+sig.BitLength-1, dlc)
	}

	fd, ok := m.ByID[frameID]
	if !ok {
		if other, dup := m.ByName[frameName]; dup {
			return fmt.Errorf("frame name %s used by 0x%X and 0x%X", frameName, other.ID, frameID)
		}
		fd = &FrameDef{ID: frameID, Name: frameName, DLC: dlc, Direction: direction, CycleMS: cycleMS}
		m.ByID[frameID] = fd
		m.ByName[frameName] = fd
	}
	if fd.Name != frameName || fd.DLC != dlc || fd.Direction != direction {
		return fmt.Errorf("frame 0x%X: rows disagree on name/dlc/direction (%s/%d/%s vs %s/%d/%s)",
			frameID, fd.Name, fd.DLC, fd.Direction, frameName, dlc, direction)
	}
	if _, dup := fd.Signal(sig.Name); dup {
		return fmt.Errorf("frame %s: duplicate signal %s", frameName, sig.Name)
	}
	fd.Signals = append(fd.Signals, sig)
	return nil
}

// canRow reads typed cells from one record and keeps the first parse error.
type canRow struct {
	rec []string
	col map[string]int
	err error
}

func (r *canRow) str(name string) string {
	i := r.col[name]
	if i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *canRow) fail(name, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
}

func (r *canRow) int(name string) int {
	v := r.str(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v, err)
	}
	return n
}

func (r *canRow) uint32(name string) uint32 {
	v := r.str(name)
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		r.fail(name, v, err)
	}
	return uint32(n)
}

func (r *canRow) float(name string) float64 {
	v := r.str(name)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(name, v, err)
	}
	return f
}

func (r *canRow) bool(name string) bool {
	switch strings.ToLower(r.str(name)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFrame, name)
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("%w id 0x%X", ErrUnknownFrame, id)
	}
	return fd, nil
}
