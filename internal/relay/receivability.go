package relay

import (
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/presence"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

// DefaultBroadcastRange is the default maximum distance (world units) over
// which a non-channel, spatial AudioFrame is receivable.
const DefaultBroadcastRange = 20.0

// audioReceivable implements a three-way OR: channel match, the frame's
// own non-spatial flag, or same-dimension-and-in-range. Channel match
// is checked first since it's a map lookup; 3D distance is computed last
// since it's the only branch requiring both positions. Emitter == recipient
// is never receivable (checked by the caller).
func audioReceivable(frame *wire.AudioFrame, emitterName, recipientName string, channels *presence.Channels, recipientPos *presence.Positions, broadcastRange float64) bool {
	if channels.Shares(emitterName, recipientName) {
		return true
	}
	if !frame.Spatial {
		return true
	}
	if frame.Coordinate == nil || frame.Dimension == nil {
		return false
	}

	recipCoord, _, recipDim, ok := recipientPos.Lookup(recipientName)
	if !ok {
		return false
	}
	if !sameDimension(*frame.Dimension, recipDim) {
		return false
	}
	return frame.Coordinate.Distance(recipCoord) <= broadcastRange
}

func sameDimension(a, b wire.Dimension) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == wire.DimensionCustom {
		return a.Name == b.Name
	}
	return true
}

// nonAudioReceivable reports whether a non-AudioFrame packet should reach
// recipientName. Presence and channel events are relay-wide announcements;
// every connected recipient other than the packet's own owner receives them
//.
// HealthCheck and ServerError are never fanned out: they're answered or sent
// directly to a single connection, never broadcast.
func nonAudioReceivable(p *wire.Packet, emitterName, recipientName string) bool {
	switch p.Type {
	case wire.TypePlayerData, wire.TypePlayerPresence, wire.TypeChannelEvent:
		return emitterName != recipientName
	default:
		return false
	}
}
