package relay

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

// Session is the minimal surface Conn needs from a QUIC/WebTransport
// session. Stored as an interface so tests can inject a fake one, the same
// reasoning as server/room.go's DatagramSender.
type Session interface {
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	SendDatagram(b []byte) error
	CloseWithError(code uint64, reason string) error
}

// forwardJumpMs is the delta past which an accepted AudioFrame timestamp
// jump is logged as suspicious.
const forwardJumpMs = 3000

var errVersionIncompatible = errors.New("relay: client protocol version incompatible")

// isClosedErr reports whether a datagram read/write error means the peer or
// the session is gone, as opposed to a transient per-datagram failure.
func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "closed") || strings.Contains(msg, "reset")
}

// isCapacityErr reports whether a datagram send failed because the transport
// queue was full; those are dropped, never retried.
func isCapacityErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "capacity") || strings.Contains(msg, "queue")
}

// Conn is one accepted peer connection: an input task draining inbound
// datagrams and an output task draining a broadcast subscription, sharing a
// single cancellation.
type Conn struct {
	id      string
	hub     *Hub
	session Session

	mu            sync.Mutex
	name          string
	clientID      []byte
	versionOK     bool
	hasLastTs     bool
	lastAcceptTs  int64
}

// Serve runs a connection to completion: both tasks, then disconnect
// cleanup. Blocks until the session is closed or ctx is canceled.
func Serve(ctx context.Context, hub *Hub, sess Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &Conn{id: fmt.Sprintf("conn-%d", hub.nextID()), hub: hub, session: sess}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		c.inputLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		c.outputLoop(ctx)
	}()
	wg.Wait()

	c.disconnect()
}

func (c *Conn) identity() (name string, clientID []byte, bound bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.clientID, c.name != ""
}

func (c *Conn) inputLoop(ctx context.Context) {
	for {
		data, err := c.session.ReceiveDatagram(ctx)
		if err != nil {
			if isClosedErr(err) || ctx.Err() != nil {
				return
			}
			slog.Debug("datagram read failed", "conn", c.id, "error", err)
			continue
		}
		p, err := wire.Unmarshal(data)
		if err != nil {
			slog.Debug("dropping malformed datagram", "conn", c.id, "error", err)
			continue
		}
		if err := c.handleInbound(p); err != nil {
			c.sendVersionError(err)
			return
		}
	}
}

// handleInbound applies identity binding, version negotiation, the
// monotonic timestamp filter, and the position-cache coordinate rewrite,
// then publishes the packet for every output task to consider.
func (c *Conn) handleInbound(p *wire.Packet) error {
	if p.Owner != nil {
		c.bindIdentity(p.Owner)
	}

	switch p.Type {
	case wire.TypeDebug:
		return c.checkVersion(p.DebugInfo)

	case wire.TypeAudioFrame:
		if !c.acceptTimestamp(p.Audio.TimestampMs) {
			return nil
		}
		if name, _, ok := c.identity(); ok {
			c.hub.Positions.RewriteAudioFrame(name, p.Audio)
			if c.hub.OnInputAudio != nil {
				c.hub.OnInputAudio(name, p.Audio)
			}
		}

	case wire.TypePlayerData:
		for _, snap := range p.Player.Players {
			c.hub.Positions.Update(snap.Name, snap.Coordinate, snap.Orientation, snap.Dimension)
		}

	case wire.TypeChannelEvent:
		c.applyChannelEvent(p.Channel)

	case wire.TypeHealthCheck:
		c.echoHealthCheck(p.Health)
		return nil
	}

	c.hub.publish(p)
	return nil
}

// echoHealthCheck answers a liveness probe directly on this connection,
// never through the broadcast fan-out: the sender matches the reply against
// its own request by Nonce to measure round-trip time.
func (c *Conn) echoHealthCheck(h *wire.HealthCheck) {
	if h == nil {
		return
	}
	pkt := &wire.Packet{Type: wire.TypeHealthCheck, Health: h}
	data, err := wire.Marshal(nil, pkt)
	if err != nil {
		return
	}
	if err := c.session.SendDatagram(data); err != nil && !isClosedErr(err) {
		slog.Debug("health check echo failed", "conn", c.id, "error", err)
	}
}

func (c *Conn) bindIdentity(owner *wire.Owner) {
	c.mu.Lock()
	alreadyBound := c.name != ""
	c.mu.Unlock()
	if alreadyBound {
		return
	}

	c.mu.Lock()
	c.name = owner.Name
	c.clientID = owner.ClientID
	c.mu.Unlock()

	if replaced := c.hub.bind(owner.Name, c); replaced != nil {
		replaced.session.CloseWithError(0, "replaced by new connection")
	}
}

func (c *Conn) applyChannelEvent(ce *wire.ChannelEvent) {
	switch ce.Kind {
	case wire.ChannelJoin:
		c.hub.Channels.Join(ce.ChannelID, ce.Actor)
	case wire.ChannelLeave:
		c.hub.Channels.Leave(ce.ChannelID, ce.Actor)
	case wire.ChannelDelete:
		c.hub.Channels.Delete(ce.ChannelID)
	}
}

// checkVersion compares the client's advertised semver major.minor against
// the server's; a client older than the server's major.minor is rejected
//.
func (c *Conn) checkVersion(d *wire.Debug) error {
	if d == nil {
		return nil
	}
	major, minor, err := parseMajorMinor(d.Version)
	if err != nil {
		return fmt.Errorf("%w: %v", errVersionIncompatible, err)
	}
	if major < c.hub.serverVersion.Major || (major == c.hub.serverVersion.Major && minor < c.hub.serverVersion.Minor) {
		return errVersionIncompatible
	}
	c.mu.Lock()
	c.versionOK = true
	c.mu.Unlock()
	return nil
}

func parseMajorMinor(semver string) (major, minor int, err error) {
	parts := strings.SplitN(semver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("malformed version %q", semver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

func (c *Conn) sendVersionError(err error) {
	if !errors.Is(err, errVersionIncompatible) {
		return
	}
	pkt := &wire.Packet{
		Type: wire.TypeServerError,
		SvrError: &wire.ServerError{
			Code:    wire.ErrVersionIncompatible,
			Message: err.Error(),
		},
	}
	if data, merr := wire.Marshal(nil, pkt); merr == nil {
		c.session.SendDatagram(data)
	}
	c.session.CloseWithError(uint64(wire.ErrVersionIncompatible), "version incompatible")
}

// acceptTimestamp applies the sender-scoped monotonic filter:
// reject ts <= last accepted, log large forward jumps.
func (c *Conn) acceptTimestamp(ts int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasLastTs {
		if ts <= c.lastAcceptTs {
			return false
		}
		if delta := ts - c.lastAcceptTs; delta > forwardJumpMs {
			slog.Warn("large forward timestamp jump", "target", "ofo", "sender", c.senderKeyLocked(), "delta_ms", delta)
		}
	}
	c.lastAcceptTs = ts
	c.hasLastTs = true
	return true
}

func (c *Conn) senderKeyLocked() string {
	if len(c.clientID) > 0 {
		return hex.EncodeToString(c.clientID)
	}
	return c.id
}

func (c *Conn) outputLoop(ctx context.Context) {
	sub := c.hub.subscribe(nil)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-sub.C():
			if !ok {
				return
			}
			if !c.deliverIfReceivable(p) {
				return
			}
		}
	}
}

// deliverIfReceivable applies the output-side receivability predicate and
// writes the datagram if it passes. Non-applicable packets are skipped
// silently, as are packets arriving before this connection has bound an
// identity (the predicate needs the recipient's name). Returns false only
// when the session has gone away and the output loop should end.
func (c *Conn) deliverIfReceivable(p *wire.Packet) bool {
	recipientName, _, bound := c.identity()
	if !bound {
		return true
	}
	emitterName := ""
	if p.Owner != nil {
		emitterName = p.Owner.Name
	}
	if emitterName == recipientName {
		return true
	}

	var ok bool
	if p.Type == wire.TypeAudioFrame {
		ok = audioReceivable(p.Audio, emitterName, recipientName, c.hub.Channels, c.hub.Positions, c.hub.broadcastRange)
	} else {
		ok = nonAudioReceivable(p, emitterName, recipientName)
	}
	if !ok {
		return true
	}

	data, err := wire.Marshal(nil, p)
	if err != nil {
		slog.Debug("dropping unserializable packet", "conn", c.id, "type", p.Type, "error", err)
		return true
	}
	if err := c.session.SendDatagram(data); err != nil {
		if isClosedErr(err) {
			return false
		}
		if isCapacityErr(err) {
			slog.Debug("datagram send queue full, dropping", "conn", c.id, "type", p.Type)
		} else {
			slog.Debug("datagram send failed, dropping", "conn", c.id, "type", p.Type, "error", err)
		}
	}
	return true
}

func (c *Conn) disconnect() {
	name, clientID, bound := c.identity()
	if !bound {
		return
	}
	c.hub.unbind(name, clientID, c)
}
