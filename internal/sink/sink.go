// Package sink implements the per-sender sink manager: it decides, for
// each received AudioFrame, whether the sender should
// be mixed as a spatial source (positioned relative to the listener) or a
// normal one (flat gain), lazily creates the jitter buffer backing that
// route, and drains both routes once per 20ms playback tick.
package sink

import (
	"sync"
	"time"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/codec"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/jitter"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/spatial"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

// MaxEntries and IdleTTL bound the sink cache.
const (
	MaxEntries = 100
	IdleTTL    = 15 * time.Minute
)

// GainLookup resolves the listener's per-sender gain override. muted senders
// are dropped before a sink is even considered.
type GainLookup func(senderClientID string) (gain float64, muted bool)

// ListenerPosition is the recipient's own known position, if any. A nil
// *ListenerPosition means the listener's position is unknown, which forces
// every route to normal regardless of the frame's spatial flag.
type ListenerPosition struct {
	Pos    spatial.Vec3
	YawDeg float64
	Muted  func(senderClientID string) bool
}

// Output receives the decoded, routed PCM for each sender on every tick.
// PushSpatial's ears are the virtual left/right emitter placements a 3D
// audio engine would use to position two ear sources; this
// package does not itself mix to stereo.
type Output interface {
	PushNormal(senderClientID string, pcm []float32, gain float64)
	PushSpatial(senderClientID string, pcm []float32, ears spatial.Ears)
}

type route struct {
	jb      *jitter.Buffer
	decoder *codec.Decoder
	gain    float64
	ears    spatial.Ears
}

type entry struct {
	normal    *route
	spatialR  *route
	lastTouch time.Time
}

// Manager is the per-listener sink cache.
type Manager struct {
	mu          sync.Mutex
	entries     map[string]*entry
	gainLookup  GainLookup
	activityCh  chan<- jitter.Activity
	outputMuted bool
}

// NewManager creates an empty sink manager. gainLookup may be nil, in which
// case every sender gets gain 1.0 and is never muted. activityCh, if
// non-nil, is wired into every jitter buffer created so a UI can show
// per-sender speaking indicators.
func NewManager(gainLookup GainLookup, activityCh chan<- jitter.Activity) *Manager {
	if gainLookup == nil {
		gainLookup = func(string) (float64, bool) { return 1.0, false }
	}
	return &Manager{
		entries:    make(map[string]*entry),
		gainLookup: gainLookup,
		activityCh: activityCh,
	}
}

// SetOutputMuted silences every route's contribution (a deafen toggle)
// without tearing down sinks or jitter buffers: buffers keep draining so
// unmuting resumes cleanly instead of replaying stale audio.
func (m *Manager) SetOutputMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputMuted = muted
}

func toVec3(c wire.Coordinate) spatial.Vec3 {
	return spatial.Vec3{X: float64(c.X), Y: float64(c.Y), Z: float64(c.Z)}
}

// Receive routes one decoded-pending AudioFrame into the right sink,
// creating it lazily, and enqueues it into that sink's jitter buffer.
// listener may be nil if the recipient's own position is
// unknown. Returns false if the sender is muted or the frame was rejected
// by the jitter buffer (stale/duplicate/overflow).
func (m *Manager) Receive(senderClientID string, frame *wire.AudioFrame, listener *ListenerPosition) bool {
	gain, muted := m.gainLookup(senderClientID)
	if muted {
		return false
	}

	spatialRoute := frame.Spatial && listener != nil && frame.Coordinate != nil

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[senderClientID]
	if !ok {
		if len(m.entries) >= MaxEntries {
			m.evictOldestLocked()
		}
		e = &entry{}
		m.entries[senderClientID] = e
	}
	e.lastTouch = time.Now()

	var r *route
	if spatialRoute {
		if e.spatialR == nil {
			nr, err := m.newRoute(senderClientID)
			if err != nil {
				return false
			}
			e.spatialR = nr
		}
		r = e.spatialR
	} else {
		if e.normal == nil {
			nr, err := m.newRoute(senderClientID)
			if err != nil {
				return false
			}
			e.normal = nr
		}
		r = e.normal
	}

	r.gain = gain
	if spatialRoute {
		deafened := listener.Muted != nil && listener.Muted(senderClientID)
		r.ears = spatial.Place(toVec3(*frame.Coordinate), listener.Pos, listener.YawDeg, deafened)
	}

	return r.jb.Enqueue(frame.TimestampMs, frame.Data)
}

func (m *Manager) newRoute(senderClientID string) (*route, error) {
	dec, err := codec.NewDecoder()
	if err != nil {
		return nil, err
	}
	return &route{
		jb:      jitter.New(senderClientID, dec, m.activityCh),
		decoder: dec,
		gain:    1.0,
	}, nil
}

// evictOldestLocked drops the least-recently-touched entry. Called with m.mu
// held and len(m.entries) already at MaxEntries.
func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, e := range m.entries {
		if oldestID == "" || e.lastTouch.Before(oldestAt) {
			oldestID = id
			oldestAt = e.lastTouch
		}
	}
	if oldestID != "" {
		delete(m.entries, oldestID)
	}
}

// Tick drains every active route once, handing the resulting 20ms PCM
// frames to out. Call this once per playback tick (the same 20ms cadence
// used on the capture side). Routes that have fully drained
// after a Disconnect are dropped; entries idle past IdleTTL have their
// routes stopped, and are removed once both routes have drained.
func (m *Manager) Tick(out Output) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, e := range m.entries {
		// A sender silent past the TTL gets its routes stopped so they drain
		// and the entry ages out, instead of concealing silence forever.
		if now.Sub(e.lastTouch) > IdleTTL {
			if e.normal != nil {
				e.normal.jb.Stop()
			}
			if e.spatialR != nil {
				e.spatialR.jb.Stop()
			}
		}
		if e.normal != nil {
			pcm := e.normal.jb.Pull()
			gain := e.normal.gain
			if m.outputMuted {
				gain = 0
			}
			out.PushNormal(id, pcm, gain)
			if e.normal.jb.Ended() {
				e.normal = nil
			}
		}
		if e.spatialR != nil {
			pcm := e.spatialR.jb.Pull()
			ears := e.spatialR.ears
			if m.outputMuted {
				ears.Gain = 0
			}
			out.PushSpatial(id, pcm, ears)
			if e.spatialR.jb.Ended() {
				e.spatialR = nil
			}
		}

		if e.normal == nil && e.spatialR == nil && now.Sub(e.lastTouch) > IdleTTL {
			delete(m.entries, id)
		}
	}
}

// Disconnect stops both of a sender's routes so they drain their queued
// audio and then go idle for eviction, rather than being torn down
// mid-utterance.
func (m *Manager) Disconnect(senderClientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[senderClientID]
	if !ok {
		return
	}
	if e.normal != nil {
		e.normal.jb.Stop()
	}
	if e.spatialR != nil {
		e.spatialR.jb.Stop()
	}
}

// Len reports the number of cached senders, for tests and diagnostics.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
