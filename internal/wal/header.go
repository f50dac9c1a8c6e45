package wal

import (
	"math"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

// Record headers are encoded with the same manual binary style as internal/wire:
// a variant tag byte followed by fixed-width and length-prefixed fields. Kept
// independent of wire's Marshal/Unmarshal since a WAL header is a storage
// artifact, not a wire packet.

type headerTag byte

const (
	headerTagInput headerTag = iota
	headerTagOutput
)

// PlayerMetadata is the position/identity snapshot recorded alongside an
// Opus frame.
type PlayerMetadata struct {
	Name        string
	Coordinate  wire.Coordinate
	Orientation wire.Orientation
	Dimension   wire.Dimension
}

// InputHeader describes a frame captured locally by the recording player.
type InputHeader struct {
	SampleRate   uint32
	Channels     uint16
	RelativeTsMs int64
	Emitter      PlayerMetadata
}

// OutputHeader describes a frame received from a remote emitter and heard
// by the recording player.
type OutputHeader struct {
	SampleRate   uint32
	Channels     uint16
	RelativeTsMs int64
	Emitter      PlayerMetadata
	Listener     PlayerMetadata
	IsSpatial    bool
}

func putU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readU32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, b, errShortHeader
	}
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return v, b[4:], nil
}

func putU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func readU16(b []byte) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, b, errShortHeader
	}
	return uint16(b[0]) | uint16(b[1])<<8, b[2:], nil
}

func putI64(buf []byte, v int64) []byte {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(u>>(8*i)))
	}
	return buf
}

func readI64(b []byte) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, b, errShortHeader
	}
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int64(u), b[8:], nil
}

func putString(buf []byte, s string) []byte {
	buf = putU16(buf, uint16(len(s)))
	return append(buf, s...)
}

func readString(b []byte) (string, []byte, error) {
	n, rest, err := readU16(b)
	if err != nil {
		return "", b, err
	}
	if int(n) > len(rest) {
		return "", b, errShortHeader
	}
	return string(rest[:n]), rest[n:], nil
}

func putFloat32(buf []byte, v float32) []byte {
	return putU32(buf, math.Float32bits(v))
}

func readFloat32(b []byte) (float32, []byte, error) {
	u, rest, err := readU32(b)
	if err != nil {
		return 0, b, err
	}
	return math.Float32frombits(u), rest, nil
}

func putMetadata(buf []byte, m PlayerMetadata) []byte {
	buf = putString(buf, m.Name)
	buf = putFloat32(buf, m.Coordinate.X)
	buf = putFloat32(buf, m.Coordinate.Y)
	buf = putFloat32(buf, m.Coordinate.Z)
	buf = putFloat32(buf, m.Orientation.YawDeg)
	buf = append(buf, byte(m.Dimension.Kind))
	buf = putString(buf, m.Dimension.Name)
	return buf
}

func readMetadata(b []byte) (PlayerMetadata, []byte, error) {
	var m PlayerMetadata
	var err error
	if m.Name, b, err = readString(b); err != nil {
		return m, b, err
	}
	if m.Coordinate.X, b, err = readFloat32(b); err != nil {
		return m, b, err
	}
	if m.Coordinate.Y, b, err = readFloat32(b); err != nil {
		return m, b, err
	}
	if m.Coordinate.Z, b, err = readFloat32(b); err != nil {
		return m, b, err
	}
	if m.Orientation.YawDeg, b, err = readFloat32(b); err != nil {
		return m, b, err
	}
	if len(b) < 1 {
		return m, b, errShortHeader
	}
	m.Dimension.Kind = wire.DimensionKind(b[0])
	b = b[1:]
	if m.Dimension.Name, b, err = readString(b); err != nil {
		return m, b, err
	}
	return m, b, nil
}

func encodeInputHeader(h InputHeader) []byte {
	buf := make([]byte, 0, 32+len(h.Emitter.Name))
	buf = append(buf, byte(headerTagInput))
	buf = putU32(buf, h.SampleRate)
	buf = putU16(buf, h.Channels)
	buf = putI64(buf, h.RelativeTsMs)
	buf = putMetadata(buf, h.Emitter)
	return buf
}

func encodeOutputHeader(h OutputHeader) []byte {
	buf := make([]byte, 0, 48+len(h.Emitter.Name)+len(h.Listener.Name))
	buf = append(buf, byte(headerTagOutput))
	buf = putU32(buf, h.SampleRate)
	buf = putU16(buf, h.Channels)
	buf = putI64(buf, h.RelativeTsMs)
	buf = putMetadata(buf, h.Emitter)
	buf = putMetadata(buf, h.Listener)
	if h.IsSpatial {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodedHeader is the union of the two header variants, returned by the
// reader so callers can switch on which was recorded.
type DecodedHeader struct {
	Input  *InputHeader
	Output *OutputHeader
}

func (h DecodedHeader) SampleRate() uint32 {
	if h.Input != nil {
		return h.Input.SampleRate
	}
	return h.Output.SampleRate
}

func (h DecodedHeader) Channels() uint16 {
	if h.Input != nil {
		return h.Input.Channels
	}
	return h.Output.Channels
}

func (h DecodedHeader) RelativeTsMs() int64 {
	if h.Input != nil {
		return h.Input.RelativeTsMs
	}
	return h.Output.RelativeTsMs
}

func decodeHeader(b []byte) (DecodedHeader, error) {
	if len(b) < 1 {
		return DecodedHeader{}, errShortHeader
	}
	tag := headerTag(b[0])
	b = b[1:]
	var (
		sampleRate uint32
		channels   uint16
		relTs      int64
		err        error
	)
	if sampleRate, b, err = readU32(b); err != nil {
		return DecodedHeader{}, err
	}
	if channels, b, err = readU16(b); err != nil {
		return DecodedHeader{}, err
	}
	if relTs, b, err = readI64(b); err != nil {
		return DecodedHeader{}, err
	}
	var emitter PlayerMetadata
	if emitter, b, err = readMetadata(b); err != nil {
		return DecodedHeader{}, err
	}
	switch tag {
	case headerTagInput:
		return DecodedHeader{Input: &InputHeader{
			SampleRate: sampleRate, Channels: channels, RelativeTsMs: relTs, Emitter: emitter,
		}}, nil
	case headerTagOutput:
		var listener PlayerMetadata
		if listener, b, err = readMetadata(b); err != nil {
			return DecodedHeader{}, err
		}
		if len(b) < 1 {
			return DecodedHeader{}, errShortHeader
		}
		return DecodedHeader{Output: &OutputHeader{
			SampleRate: sampleRate, Channels: channels, RelativeTsMs: relTs,
			Emitter: emitter, Listener: listener, IsSpatial: b[0] != 0,
		}}, nil
	default:
		return DecodedHeader{}, errUnknownHeaderTag
	}
}
