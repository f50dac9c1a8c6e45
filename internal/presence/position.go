// Package presence implements the relay's two small caches: player
// position snapshots (for the AudioFrame coordinate rewrite) and channel
// membership (for presence/channel-event routing).
package presence

import (
	"sync"
	"time"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

// MaxPositions and PositionIdleTTL bound the position cache.
const (
	MaxPositions    = 256
	PositionIdleTTL = 5 * time.Minute
)

type positionEntry struct {
	coord     wire.Coordinate
	orient    wire.Orientation
	dimension wire.Dimension
	updatedAt time.Time
}

// Positions is player_name → last known {coordinates, orientation,
// dimension}, fed by PlayerData packets.
type Positions struct {
	mu      sync.Mutex
	byName  map[string]*positionEntry
}

// NewPositions returns an empty position cache.
func NewPositions() *Positions {
	return &Positions{byName: make(map[string]*positionEntry)}
}

// Update records the latest snapshot for playerName.
func (p *Positions) Update(playerName string, coord wire.Coordinate, orient wire.Orientation, dim wire.Dimension) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictStaleLocked(time.Now())

	e, ok := p.byName[playerName]
	if !ok {
		if len(p.byName) >= MaxPositions {
			p.evictOldestLocked()
		}
		e = &positionEntry{}
		p.byName[playerName] = e
	}
	e.coord = coord
	e.orient = orient
	e.dimension = dim
	e.updatedAt = time.Now()
}

// Lookup returns playerName's latest snapshot, if any and not stale.
func (p *Positions) Lookup(playerName string) (coord wire.Coordinate, orient wire.Orientation, dim wire.Dimension, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, found := p.byName[playerName]
	if !found || time.Since(e.updatedAt) > PositionIdleTTL {
		return wire.Coordinate{}, wire.Orientation{}, wire.Dimension{}, false
	}
	return e.coord, e.orient, e.dimension, true
}

// RewriteAudioFrame replaces an inbound AudioFrame's coordinate,
// orientation, and dimension with the sending player's latest position
// cache snapshot, if one exists. No-op
// if the author has no cached position.
func (p *Positions) RewriteAudioFrame(authorName string, frame *wire.AudioFrame) {
	coord, orient, dim, ok := p.Lookup(authorName)
	if !ok {
		return
	}
	frame.Coordinate = &coord
	frame.Orientation = &orient
	frame.Dimension = &dim
}

// evictStaleLocked drops every entry past PositionIdleTTL. Called with
// p.mu held.
func (p *Positions) evictStaleLocked(now time.Time) {
	for name, e := range p.byName {
		if now.Sub(e.updatedAt) > PositionIdleTTL {
			delete(p.byName, name)
		}
	}
}

// evictOldestLocked drops the least-recently-updated entry. Called with
// p.mu held and the cache already at MaxPositions.
func (p *Positions) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for name, e := range p.byName {
		if oldest == "" || e.updatedAt.Before(oldestAt) {
			oldest, oldestAt = name, e.updatedAt
		}
	}
	if oldest != "" {
		delete(p.byName, oldest)
	}
}

// Len reports the number of cached players, for tests and diagnostics.
func (p *Positions) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byName)
}
