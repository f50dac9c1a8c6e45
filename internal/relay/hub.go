package relay

import (
	"sync"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/presence"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/ring"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

// broadcastDepth bounds how many packets a slow output task can lag behind
// before it starts dropping; a value a slow consumer has no room for is
// dropped for that consumer and counted by its Subscription.Lagged, with no
// notice delivered in the stream itself.
const broadcastDepth = 256

// Version is the server's own protocol version, compared against a client's
// advertised Debug.Version on connect.
type Version struct {
	Major, Minor int
}

// Hub is the process-wide relay state shared by every connection: the
// position and channel-membership caches, the broadcast fan-out
// channel, and the set of currently bound identities.
// It plays the role server/room.go's Room plays for the control plane,
// scoped down to what the voice path actually needs.
type Hub struct {
	Positions *presence.Positions
	Channels  *presence.Channels

	broadcastRange float64
	serverVersion  Version

	broadcast *ring.Broadcast[*wire.Packet]

	mu      sync.Mutex
	byName  map[string]*Conn // bound identity -> connection
	nextConnID uint64

	// OnDisconnect, if set, fires after a connection's identity binding and
	// channel memberships are removed, with the player's name. Used by cmd/relayd to log or
	// to feed external metrics; the relay itself always broadcasts
	// PlayerPresence{Disconnected} regardless.
	OnDisconnect func(playerName string)

	// OnInputAudio, if set, fires for every accepted AudioFrame (after the
	// monotonic timestamp filter and position rewrite), with the sending
	// player's name. Used by cmd/relayd to feed a recording session; not
	// called for frames the timestamp filter drops.
	OnInputAudio func(playerName string, frame *wire.AudioFrame)
}

// NewHub constructs a Hub. broadcastRange is the spatial cutoff applied to
// non-channel audio (default DefaultBroadcastRange); serverVersion is compared against every
// connecting client's Debug packet.
func NewHub(broadcastRange float64, serverVersion Version) *Hub {
	return &Hub{
		Positions:      presence.NewPositions(),
		Channels:       presence.NewChannels(),
		broadcastRange: broadcastRange,
		serverVersion:  serverVersion,
		broadcast:      ring.NewBroadcast[*wire.Packet](broadcastDepth),
		byName:         make(map[string]*Conn),
	}
}

func (h *Hub) nextID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextConnID++
	return h.nextConnID
}

// bind registers conn as the connection for playerName, replacing and
// disconnecting any previous connection under that name (a reconnect, in
// effect). Mirrors server/room.go's AddOrReplaceClient duplicate-username
// handling, generalized from a numeric client ID to the player name
// identity this system binds on.
func (h *Hub) bind(playerName string, conn *Conn) (replaced *Conn) {
	h.mu.Lock()
	replaced = h.byName[playerName]
	h.byName[playerName] = conn
	h.mu.Unlock()
	return replaced
}

// unbind removes conn's identity binding and channel memberships, and
// broadcasts disconnection, but only if conn is still the bound connection
// for that name (a reconnect may have already replaced it). The player's
// position-cache entry is not removed; it expires on the cache's idle TTL.
func (h *Hub) unbind(playerName string, clientID []byte, conn *Conn) {
	h.mu.Lock()
	current, ok := h.byName[playerName]
	if ok && current == conn {
		delete(h.byName, playerName)
	} else {
		ok = false
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.Channels.DisconnectPlayer(playerName)

	if h.OnDisconnect != nil {
		h.OnDisconnect(playerName)
	}

	h.publish(&wire.Packet{
		Type:  wire.TypePlayerPresence,
		Owner: &wire.Owner{Name: playerName, ClientID: clientID},
		Presence: &wire.PlayerPresence{
			Name:     playerName,
			ClientID: clientID,
			State:    wire.PresenceDisconnected,
		},
	})
}

func (h *Hub) publish(p *wire.Packet) { h.broadcast.Publish(p) }

func (h *Hub) subscribe(onDrop func()) *ring.Subscription[*wire.Packet] {
	return h.broadcast.Subscribe(onDrop)
}

// Connections returns the number of currently bound identities, for tests
// and diagnostics.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byName)
}
