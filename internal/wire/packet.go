// Package wire defines the packet envelope exchanged between client and
// relay and its compact binary encoding. One packet is encoded per QUIC
// datagram: no length framing, no multi-datagram packets.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type tags the payload carried by a Packet.
type Type byte

const (
	TypeAudioFrame Type = iota
	TypePlayerData
	TypePlayerPresence
	TypeChannelEvent
	TypeHealthCheck
	TypeServerError
	TypeDebug
)

func (t Type) String() string {
	switch t {
	case TypeAudioFrame:
		return "audio_frame"
	case TypePlayerData:
		return "player_data"
	case TypePlayerPresence:
		return "player_presence"
	case TypeChannelEvent:
		return "channel_event"
	case TypeHealthCheck:
		return "health_check"
	case TypeServerError:
		return "server_error"
	case TypeDebug:
		return "debug"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// Dimension mirrors the handful of worlds a player can occupy. Custom carries
// an out-of-band string name for non-standard dimensions.
type Dimension struct {
	Kind DimensionKind
	Name string // only set when Kind == DimensionCustom
}

type DimensionKind byte

const (
	DimensionOverworld DimensionKind = iota
	DimensionNether
	DimensionEnd
	DimensionCustom
)

// Coordinate is a position in world space.
type Coordinate struct {
	X, Y, Z float32
}

// Distance returns the 3D Euclidean distance between two coordinates.
func (c Coordinate) Distance(o Coordinate) float64 {
	dx := float64(c.X - o.X)
	dy := float64(c.Y - o.Y)
	dz := float64(c.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Orientation is a listener/emitter facing, yaw degrees where 0 = +Z and
// increases clockwise.
type Orientation struct {
	YawDeg float32
}

// Owner identifies the player who produced a packet.
type Owner struct {
	Name     string
	ClientID []byte // 16-32 byte opaque identity
}

// AudioFrame carries one 20ms Opus-encoded voice frame.
type AudioFrame struct {
	Data        []byte
	SampleRate  uint32
	TimestampMs int64

	Coordinate  *Coordinate  // filled server-side before fan-out
	Orientation *Orientation
	Dimension   *Dimension
	Spatial     bool // absent/false = full volume, no positional processing
}

// PlayerSnapshot is one entry in a PlayerData batch.
type PlayerSnapshot struct {
	Name        string
	Coordinate  Coordinate
	Orientation Orientation
	Dimension   Dimension
}

// PlayerData is an authoritative batch of player position snapshots.
type PlayerData struct {
	Players []PlayerSnapshot
}

type PresenceState byte

const (
	PresenceConnected PresenceState = iota
	PresenceDisconnected
)

// PlayerPresence announces a player joining or leaving the relay.
type PlayerPresence struct {
	Name     string
	ClientID []byte
	State    PresenceState
}

type ChannelEventKind byte

const (
	ChannelCreate ChannelEventKind = iota
	ChannelDelete
	ChannelJoin
	ChannelLeave
)

// ChannelEvent announces a channel membership change.
type ChannelEvent struct {
	Kind      ChannelEventKind
	ChannelID [16]byte // uuid
	Name      string
	Owner     string
	Actor     string
	Timestamp int64
}

// HealthCheck is a liveness probe; Nonce lets the sender match a reply.
type HealthCheck struct {
	Nonce uint64
}

type ServerErrorCode byte

const (
	ErrVersionIncompatible ServerErrorCode = iota
	ErrInternal
)

// ServerError is sent by the relay immediately before closing a connection.
type ServerError struct {
	Code    ServerErrorCode
	Message string
}

// Debug carries client handshake metadata, notably the semver the client
// advertises on connect.
type Debug struct {
	Version string
}

// Packet is the full envelope. Exactly one of the payload fields is non-nil,
// selected by Type.
type Packet struct {
	Type  Type
	Owner *Owner

	Audio     *AudioFrame
	Player    *PlayerData
	Presence  *PlayerPresence
	Channel   *ChannelEvent
	Health    *HealthCheck
	SvrError  *ServerError
	DebugInfo *Debug
}

var (
	ErrTruncated    = errors.New("wire: truncated packet")
	ErrPayloadMissing = errors.New("wire: payload missing for packet type")
)

// sizeOfCoordinate/orientation: 3 or 1 float32s, fixed width, BigEndian.
const (
	coordSize = 12
	orientSize = 4
)

func putFloat32(buf []byte, v float32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v))
	return append(buf, tmp[:]...)
}

func readFloat32(b []byte) (float32, []byte, error) {
	if len(b) < 4 {
		return 0, b, ErrTruncated
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b[:4])), b[4:], nil
}

func putCoordinate(buf []byte, c Coordinate) []byte {
	buf = putFloat32(buf, c.X)
	buf = putFloat32(buf, c.Y)
	buf = putFloat32(buf, c.Z)
	return buf
}

func readCoordinate(b []byte) (Coordinate, []byte, error) {
	var c Coordinate
	var err error
	if c.X, b, err = readFloat32(b); err != nil {
		return c, b, err
	}
	if c.Y, b, err = readFloat32(b); err != nil {
		return c, b, err
	}
	if c.Z, b, err = readFloat32(b); err != nil {
		return c, b, err
	}
	return c, b, nil
}

func putDimension(buf []byte, d Dimension) []byte {
	buf = append(buf, byte(d.Kind))
	if d.Kind == DimensionCustom {
		buf = appendString(buf, d.Name)
	}
	return buf
}

func readDimension(b []byte) (Dimension, []byte, error) {
	if len(b) < 1 {
		return Dimension{}, b, ErrTruncated
	}
	d := Dimension{Kind: DimensionKind(b[0])}
	b = b[1:]
	if d.Kind == DimensionCustom {
		var err error
		d.Name, b, err = readString(b)
		if err != nil {
			return d, b, err
		}
	}
	return d, b, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func readString(b []byte) (string, []byte, error) {
	n, rest, err := readUvarintBytes(b)
	if err != nil {
		return "", b, err
	}
	if uint64(len(rest)) < n {
		return "", b, ErrTruncated
	}
	return string(rest[:n]), rest[n:], nil
}

func appendBytes(buf []byte, data []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

func readBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarintBytes(b)
	if err != nil {
		return nil, b, err
	}
	if uint64(len(rest)) < n {
		return nil, b, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, rest[:n])
	return out, rest[n:], nil
}

func readUvarintBytes(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, b, ErrTruncated
	}
	return v, b[n:], nil
}

func readVarintBytes(b []byte) (int64, []byte, error) {
	v, n := binary.Varint(b)
	if n <= 0 {
		return 0, b, ErrTruncated
	}
	return v, b[n:], nil
}

// Marshal encodes p into its wire representation, appending to dst.
func Marshal(dst []byte, p *Packet) ([]byte, error) {
	dst = append(dst, byte(p.Type))

	if p.Owner != nil {
		dst = append(dst, 1)
		dst = appendString(dst, p.Owner.Name)
		dst = appendBytes(dst, p.Owner.ClientID)
	} else {
		dst = append(dst, 0)
	}

	switch p.Type {
	case TypeAudioFrame:
		a := p.Audio
		if a == nil {
			return nil, ErrPayloadMissing
		}
		dst = appendBytes(dst, a.Data)
		dst = binary.AppendUvarint(dst, uint64(a.SampleRate))
		dst = binary.AppendVarint(dst, a.TimestampMs)
		var flags byte
		if a.Coordinate != nil {
			flags |= 1
		}
		if a.Orientation != nil {
			flags |= 2
		}
		if a.Dimension != nil {
			flags |= 4
		}
		if a.Spatial {
			flags |= 8
		}
		dst = append(dst, flags)
		if a.Coordinate != nil {
			dst = putCoordinate(dst, *a.Coordinate)
		}
		if a.Orientation != nil {
			dst = putFloat32(dst, a.Orientation.YawDeg)
		}
		if a.Dimension != nil {
			dst = putDimension(dst, *a.Dimension)
		}

	case TypePlayerData:
		pd := p.Player
		if pd == nil {
			return nil, ErrPayloadMissing
		}
		dst = binary.AppendUvarint(dst, uint64(len(pd.Players)))
		for _, s := range pd.Players {
			dst = appendString(dst, s.Name)
			dst = putCoordinate(dst, s.Coordinate)
			dst = putFloat32(dst, s.Orientation.YawDeg)
			dst = putDimension(dst, s.Dimension)
		}

	case TypePlayerPresence:
		pp := p.Presence
		if pp == nil {
			return nil, ErrPayloadMissing
		}
		dst = appendString(dst, pp.Name)
		dst = appendBytes(dst, pp.ClientID)
		dst = append(dst, byte(pp.State))

	case TypeChannelEvent:
		ce := p.Channel
		if ce == nil {
			return nil, ErrPayloadMissing
		}
		dst = append(dst, byte(ce.Kind))
		dst = append(dst, ce.ChannelID[:]...)
		dst = appendString(dst, ce.Name)
		dst = appendString(dst, ce.Owner)
		dst = appendString(dst, ce.Actor)
		dst = binary.AppendVarint(dst, ce.Timestamp)

	case TypeHealthCheck:
		hc := p.Health
		if hc == nil {
			return nil, ErrPayloadMissing
		}
		dst = binary.AppendUvarint(dst, hc.Nonce)

	case TypeServerError:
		se := p.SvrError
		if se == nil {
			return nil, ErrPayloadMissing
		}
		dst = append(dst, byte(se.Code))
		dst = appendString(dst, se.Message)

	case TypeDebug:
		d := p.DebugInfo
		if d == nil {
			return nil, ErrPayloadMissing
		}
		dst = appendString(dst, d.Version)

	default:
		return nil, fmt.Errorf("wire: unknown packet type %d", p.Type)
	}

	return dst, nil
}

// Unmarshal decodes a single datagram payload into a Packet.
func Unmarshal(b []byte) (*Packet, error) {
	if len(b) < 2 {
		return nil, ErrTruncated
	}
	p := &Packet{Type: Type(b[0])}
	hasOwner := b[1]
	b = b[2:]

	if hasOwner == 1 {
		name, rest, err := readString(b)
		if err != nil {
			return nil, err
		}
		b = rest
		clientID, rest, err := readBytes(b)
		if err != nil {
			return nil, err
		}
		b = rest
		p.Owner = &Owner{Name: name, ClientID: clientID}
	}

	var err error
	switch p.Type {
	case TypeAudioFrame:
		a := &AudioFrame{}
		if a.Data, b, err = readBytes(b); err != nil {
			return nil, err
		}
		var sr uint64
		if sr, b, err = readUvarintBytes(b); err != nil {
			return nil, err
		}
		a.SampleRate = uint32(sr)
		if a.TimestampMs, b, err = readVarintBytes(b); err != nil {
			return nil, err
		}
		if len(b) < 1 {
			return nil, ErrTruncated
		}
		flags := b[0]
		b = b[1:]
		a.Spatial = flags&8 != 0
		if flags&1 != 0 {
			var c Coordinate
			if c, b, err = readCoordinate(b); err != nil {
				return nil, err
			}
			a.Coordinate = &c
		}
		if flags&2 != 0 {
			var yaw float32
			if yaw, b, err = readFloat32(b); err != nil {
				return nil, err
			}
			a.Orientation = &Orientation{YawDeg: yaw}
		}
		if flags&4 != 0 {
			var d Dimension
			if d, b, err = readDimension(b); err != nil {
				return nil, err
			}
			a.Dimension = &d
		}
		p.Audio = a

	case TypePlayerData:
		pd := &PlayerData{}
		var n uint64
		if n, b, err = readUvarintBytes(b); err != nil {
			return nil, err
		}
		pd.Players = make([]PlayerSnapshot, 0, n)
		for i := uint64(0); i < n; i++ {
			var s PlayerSnapshot
			if s.Name, b, err = readString(b); err != nil {
				return nil, err
			}
			if s.Coordinate, b, err = readCoordinate(b); err != nil {
				return nil, err
			}
			var yaw float32
			if yaw, b, err = readFloat32(b); err != nil {
				return nil, err
			}
			s.Orientation = Orientation{YawDeg: yaw}
			if s.Dimension, b, err = readDimension(b); err != nil {
				return nil, err
			}
			pd.Players = append(pd.Players, s)
		}
		p.Player = pd

	case TypePlayerPresence:
		pp := &PlayerPresence{}
		if pp.Name, b, err = readString(b); err != nil {
			return nil, err
		}
		if pp.ClientID, b, err = readBytes(b); err != nil {
			return nil, err
		}
		if len(b) < 1 {
			return nil, ErrTruncated
		}
		pp.State = PresenceState(b[0])
		b = b[1:]
		p.Presence = pp

	case TypeChannelEvent:
		ce := &ChannelEvent{}
		if len(b) < 1+16 {
			return nil, ErrTruncated
		}
		ce.Kind = ChannelEventKind(b[0])
		copy(ce.ChannelID[:], b[1:17])
		b = b[17:]
		if ce.Name, b, err = readString(b); err != nil {
			return nil, err
		}
		if ce.Owner, b, err = readString(b); err != nil {
			return nil, err
		}
		if ce.Actor, b, err = readString(b); err != nil {
			return nil, err
		}
		if ce.Timestamp, b, err = readVarintBytes(b); err != nil {
			return nil, err
		}
		p.Channel = ce

	case TypeHealthCheck:
		hc := &HealthCheck{}
		if hc.Nonce, b, err = readUvarintBytes(b); err != nil {
			return nil, err
		}
		p.Health = hc

	case TypeServerError:
		se := &ServerError{}
		if len(b) < 1 {
			return nil, ErrTruncated
		}
		se.Code = ServerErrorCode(b[0])
		b = b[1:]
		if se.Message, b, err = readString(b); err != nil {
			return nil, err
		}
		p.SvrError = se

	case TypeDebug:
		d := &Debug{}
		if d.Version, b, err = readString(b); err != nil {
			return nil, err
		}
		p.DebugInfo = d

	default:
		return nil, fmt.Errorf("wire: unknown packet type %d", p.Type)
	}

	return p, nil
}
