package pose

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// DatagramSize is the length of one pose datagram on the wire.
const DatagramSize = 188

// Datagram is the full little-endian pose record sent by the Locator.
type Datagram struct {
	Age        float64
	Timestamp  float64
	UniqueID   uint64
	State      int32
	ErrorFlags uint64
	InfoFlags  uint64
	X          float64
	Y          float64
	Yaw        float64
	Covariance [6]float64
	Z          float64
	Quaternion [4]float64
	Epoch      uint64
	OdoX       float64
	OdoY       float64
	OdoYaw     float64
}

// DecodeDatagram parses exactly DatagramSize bytes.
func DecodeDatagram(b []byte) (Datagram, error) {
	var d Datagram
	if len(b) != DatagramSize {
		return d, fmt.Errorf("invalid datagram length %d: want %d", len(b), DatagramSize)
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &d); err != nil {
		return d, fmt.Errorf("failed to decode datagram: %w", err)
	}
	return d, nil
}

// MarshalBinary encodes the datagram in wire format.
func (d Datagram) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, DatagramSize))
	if err := binary.Write(buf, binary.LittleEndian, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Pose extracts the planar pose.
func (d Datagram) Pose() Pose {
	return Pose{
		X:         d.X,
		Y:         d.Y,
		Yaw:       d.Yaw,
		State:     d.State,
		Timestamp: secondsToTime(d.Timestamp),
	}
}

func secondsToTime(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}
