package wire

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, p *Packet) *Packet {
	t.Helper()
	b, err := Marshal(nil, p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return got
}

func TestAudioFrameRoundTrip(t *testing.T) {
	coord := Coordinate{X: 1.5, Y: -2.25, Z: 100}
	orient := Orientation{YawDeg: 45}
	dim := Dimension{Kind: DimensionOverworld}

	p := &Packet{
		Type:  TypeAudioFrame,
		Owner: &Owner{Name: "steve", ClientID: bytes.Repeat([]byte{0xAB}, 16)},
		Audio: &AudioFrame{
			Data:        []byte{1, 2, 3, 4},
			SampleRate:  48000,
			TimestampMs: 1234567,
			Coordinate:  &coord,
			Orientation: &orient,
			Dimension:   &dim,
			Spatial:     true,
		},
	}

	got := roundTrip(t, p)
	if got.Type != TypeAudioFrame {
		t.Fatalf("type: got %v", got.Type)
	}
	if got.Owner == nil || got.Owner.Name != "steve" {
		t.Fatalf("owner: got %+v", got.Owner)
	}
	if !bytes.Equal(got.Audio.Data, p.Audio.Data) {
		t.Errorf("data mismatch: got %v want %v", got.Audio.Data, p.Audio.Data)
	}
	if got.Audio.SampleRate != 48000 {
		t.Errorf("sample rate: got %d", got.Audio.SampleRate)
	}
	if got.Audio.TimestampMs != 1234567 {
		t.Errorf("timestamp: got %d", got.Audio.TimestampMs)
	}
	if got.Audio.Coordinate == nil || *got.Audio.Coordinate != coord {
		t.Errorf("coordinate: got %+v want %+v", got.Audio.Coordinate, coord)
	}
	if got.Audio.Orientation == nil || *got.Audio.Orientation != orient {
		t.Errorf("orientation: got %+v want %+v", got.Audio.Orientation, orient)
	}
	if !got.Audio.Spatial {
		t.Error("spatial flag lost in round trip")
	}
}

func TestAudioFrameWithoutOptionalFields(t *testing.T) {
	p := &Packet{
		Type: TypeAudioFrame,
		Audio: &AudioFrame{
			Data:        []byte{9},
			SampleRate:  48000,
			TimestampMs: -5, // negative timestamps must survive zigzag encoding
		},
	}
	got := roundTrip(t, p)
	if got.Owner != nil {
		t.Errorf("expected no owner, got %+v", got.Owner)
	}
	if got.Audio.Coordinate != nil || got.Audio.Orientation != nil || got.Audio.Dimension != nil {
		t.Error("expected no optional fields set")
	}
	if got.Audio.TimestampMs != -5 {
		t.Errorf("timestamp: got %d want -5", got.Audio.TimestampMs)
	}
}

func TestPlayerDataRoundTrip(t *testing.T) {
	p := &Packet{
		Type: TypePlayerData,
		Player: &PlayerData{
			Players: []PlayerSnapshot{
				{Name: "alex", Coordinate: Coordinate{X: 1, Y: 2, Z: 3}, Orientation: Orientation{YawDeg: 10}, Dimension: Dimension{Kind: DimensionNether}},
				{Name: "notch", Coordinate: Coordinate{X: -1, Y: 64, Z: 200}, Orientation: Orientation{YawDeg: 270}, Dimension: Dimension{Kind: DimensionCustom, Name: "the_aether"}},
			},
		},
	}
	got := roundTrip(t, p)
	if len(got.Player.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(got.Player.Players))
	}
	if got.Player.Players[1].Dimension.Name != "the_aether" {
		t.Errorf("custom dimension name lost: got %q", got.Player.Players[1].Dimension.Name)
	}
}

func TestChannelEventRoundTrip(t *testing.T) {
	var id [16]byte
	copy(id[:], bytes.Repeat([]byte{0x42}, 16))
	p := &Packet{
		Type: TypeChannelEvent,
		Channel: &ChannelEvent{
			Kind:      ChannelJoin,
			ChannelID: id,
			Name:      "party-chat",
			Owner:     "steve",
			Actor:     "alex",
			Timestamp: 9999,
		},
	}
	got := roundTrip(t, p)
	if got.Channel.Kind != ChannelJoin {
		t.Errorf("kind: got %v", got.Channel.Kind)
	}
	if got.Channel.ChannelID != id {
		t.Errorf("channel id mismatch")
	}
	if got.Channel.Name != "party-chat" {
		t.Errorf("name: got %q", got.Channel.Name)
	}
}

func TestServerErrorRoundTrip(t *testing.T) {
	p := &Packet{
		Type:     TypeServerError,
		SvrError: &ServerError{Code: ErrVersionIncompatible, Message: "client too old"},
	}
	got := roundTrip(t, p)
	if got.SvrError.Code != ErrVersionIncompatible {
		t.Errorf("code: got %v", got.SvrError.Code)
	}
	if got.SvrError.Message != "client too old" {
		t.Errorf("message: got %q", got.SvrError.Message)
	}
}

func TestDebugRoundTrip(t *testing.T) {
	p := &Packet{Type: TypeDebug, DebugInfo: &Debug{Version: "0.5.1"}}
	got := roundTrip(t, p)
	if got.DebugInfo.Version != "0.5.1" {
		t.Errorf("version: got %q", got.DebugInfo.Version)
	}
}

func TestUnmarshalTruncatedReturnsError(t *testing.T) {
	if _, err := Unmarshal(nil); err == nil {
		t.Fatal("expected error on empty input")
	}
	if _, err := Unmarshal([]byte{byte(TypeAudioFrame), 0}); err == nil {
		t.Fatal("expected error on truncated audio frame")
	}
}

func TestMarshalMissingPayloadReturnsError(t *testing.T) {
	if _, err := Marshal(nil, &Packet{Type: TypeAudioFrame}); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestCoordinateDistance(t *testing.T) {
	a := Coordinate{X: 0, Y: 0, Z: 0}
	b := Coordinate{X: 3, Y: 4, Z: 0}
	if d := a.Distance(b); d != 5 {
		t.Errorf("distance: got %v want 5", d)
	}
}
