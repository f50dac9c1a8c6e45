package presence

import (
	"testing"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

func TestUpdateThenLookupReturnsSnapshot(t *testing.T) {
	p := NewPositions()
	p.Update("steve", wire.Coordinate{X: 1, Y: 2, Z: 3}, wire.Orientation{YawDeg: 90}, wire.Dimension{Kind: wire.DimensionNether})

	coord, orient, dim, ok := p.Lookup("steve")
	if !ok {
		t.Fatal("expected a cached position")
	}
	if coord.X != 1 || coord.Y != 2 || coord.Z != 3 {
		t.Fatalf("unexpected coordinate: %+v", coord)
	}
	if orient.YawDeg != 90 {
		t.Fatalf("unexpected orientation: %+v", orient)
	}
	if dim.Kind != wire.DimensionNether {
		t.Fatalf("unexpected dimension: %+v", dim)
	}
}

func TestLookupMissingPlayerReturnsNotOK(t *testing.T) {
	p := NewPositions()
	if _, _, _, ok := p.Lookup("ghost"); ok {
		t.Fatal("expected no cached position for an unknown player")
	}
}

func TestRewriteAudioFrameAppliesCachedPosition(t *testing.T) {
	p := NewPositions()
	p.Update("alex", wire.Coordinate{X: 5, Y: 0, Z: 0}, wire.Orientation{YawDeg: 180}, wire.Dimension{Kind: wire.DimensionOverworld})

	frame := &wire.AudioFrame{}
	p.RewriteAudioFrame("alex", frame)

	if frame.Coordinate == nil || frame.Coordinate.X != 5 {
		t.Fatalf("expected coordinate rewritten, got %+v", frame.Coordinate)
	}
	if frame.Orientation == nil || frame.Orientation.YawDeg != 180 {
		t.Fatalf("expected orientation rewritten, got %+v", frame.Orientation)
	}
	if frame.Dimension == nil {
		t.Fatal("expected dimension rewritten")
	}
}

func TestRewriteAudioFrameNoOpWithoutCachedPosition(t *testing.T) {
	p := NewPositions()
	frame := &wire.AudioFrame{}
	p.RewriteAudioFrame("nobody", frame)
	if frame.Coordinate != nil {
		t.Fatal("expected frame untouched when no position is cached")
	}
}

func TestPositionCacheEvictsOldestAtCapacity(t *testing.T) {
	p := NewPositions()
	for i := 0; i < MaxPositions; i++ {
		p.Update(string(rune('a'))+string(rune(i)), wire.Coordinate{}, wire.Orientation{}, wire.Dimension{})
	}
	if p.Len() != MaxPositions {
		t.Fatalf("expected %d entries, got %d", MaxPositions, p.Len())
	}
	p.Update("newcomer", wire.Coordinate{}, wire.Orientation{}, wire.Dimension{})
	if p.Len() != MaxPositions {
		t.Fatalf("expected eviction to cap at %d, got %d", MaxPositions, p.Len())
	}
}
