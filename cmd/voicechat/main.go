// Command voicechat is a headless proximity voice chat client: it opens an
// input/output audio stream, encodes and sends captured frames to a relay
// over WebTransport, and decodes and mixes down whatever the relay sends
// back.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/capture"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/codec"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/health"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/jitter"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/relay"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/sink"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/spatial"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wal"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

const (
	sampleRate     = 48000
	channels       = 1
	frameSize      = 960 // 20ms @ 48kHz
	complexity     = 10
	connectTimeout = 10 * time.Second

	// protocolVersion is advertised in the Debug packet sent right after
	// connecting; the relay rejects clients older than its own major.minor.
	protocolVersion = "1.0.0"
)

// errServerRejected means the relay told us to go away (version mismatch or
// an internal error); the client must not retry.
var errServerRejected = errors.New("voicechat: rejected by relay")

func main() {
	addr := flag.String("addr", "localhost:8443", "relay address (host:port)")
	certsDir := flag.String("certs-dir", "certs", "directory holding ca.crt, client.crt, client.key")
	playerName := flag.String("player", "", "player name presented to the relay")
	inputDeviceID := flag.Int("input-device", -1, "portaudio input device index, -1 for system default")
	outputDeviceID := flag.Int("output-device", -1, "portaudio output device index, -1 for system default")
	pttMode := flag.Bool("ptt", false, "require explicit push-to-talk activation instead of voice gating")
	recordDir := flag.String("record", "", "directory to write a recording session under (empty disables recording)")
	configURL := flag.String("config-url", "", "control-plane config endpoint used as the reconnect probe (default https://<addr host>/api/config)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *playerName == "" {
		slog.Error("voicechat: -player is required")
		os.Exit(1)
	}

	tlsConfig, err := loadClientTLSConfig(*certsDir)
	if err != nil {
		slog.Error("voicechat: failed to load certificates", "error", err)
		os.Exit(1)
	}

	probeURL := *configURL
	if probeURL == "" {
		host := *addr
		if h, _, err := net.SplitHostPort(*addr); err == nil {
			host = h
		}
		probeURL = "https://" + host + "/api/config"
	}

	if err := portaudio.Initialize(); err != nil {
		slog.Error("voicechat: portaudio init failed", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	pipeline, err := capture.NewPipeline(sampleRate, channels, complexity)
	if err != nil {
		slog.Error("voicechat: capture pipeline init failed", "error", err)
		os.Exit(1)
	}
	pipeline.SetPTTMode(*pttMode)

	captureStream, playbackStream, captureBuf, playbackBuf, err := openAudioStreams(*inputDeviceID, *outputDeviceID)
	if err != nil {
		slog.Error("voicechat: failed to open audio streams", "error", err)
		os.Exit(1)
	}
	defer captureStream.Close()
	defer playbackStream.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder *wal.Writer
	if *recordDir != "" {
		sessionID := uuid.Must(uuid.NewV7()).String()
		recorder, err = wal.NewWriter(filepath.Join(*recordDir, sessionID), sessionID, *playerName, time.Now().UnixMilli())
		if err != nil {
			slog.Error("voicechat: failed to start recording", "error", err)
			os.Exit(1)
		}
		slog.Info("voicechat: recording session started", "session", sessionID, "dir", *recordDir)
	}

	if err := captureStream.Start(); err != nil {
		slog.Error("voicechat: starting capture stream failed", "error", err)
		os.Exit(1)
	}
	if err := playbackStream.Start(); err != nil {
		slog.Error("voicechat: starting playback stream failed", "error", err)
		os.Exit(1)
	}

	// The speaking indicator: every jitter buffer reports {sender, level}
	// on this channel at most every 50ms while decoding. A GUI would drive
	// per-speaker highlights off it; headless, it feeds the debug log.
	activityCh := make(chan jitter.Activity, 64)
	go func() {
		for a := range activityCh {
			slog.Debug("voicechat: speaker active", "sender", a.SenderName, "level", a.Level)
		}
	}()

	clientID := uuid.New()
	c := &client{
		owner:       wire.Owner{Name: *playerName, ClientID: clientID[:]},
		pipeline:    pipeline,
		sinkMgr:     sink.NewManager(nil, activityCh),
		playback:    playbackBuf,
		recorder:    recorder,
		recEncoders: make(map[string]*codec.Encoder),
	}

	// Each pass dials a fresh session; the health monitor's refresh event is
	// the only path that retries, so a deliberate server rejection or a
	// local shutdown falls straight through.
	for ctx.Err() == nil {
		retry, err := c.runSession(ctx, *addr, tlsConfig, probeURL, captureStream, captureBuf, playbackStream)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("voicechat: session ended", "error", err)
		}
		if !retry {
			break
		}
		slog.Info("voicechat: relay reachable again, reconnecting")
	}
	slog.Info("voicechat: shutting down")

	captureStream.Stop()
	playbackStream.Stop()

	if recorder != nil {
		if err := recorder.Stop(time.Now().UnixMilli()); err != nil {
			slog.Error("voicechat: failed to close recording session", "error", err)
		}
	}
}

// client holds the state shared between the capture, receive and playback
// goroutines. The session field is swapped by runSession on reconnect; every
// loop is restarted with it.
type client struct {
	sess  *webtransport.Session
	owner wire.Owner

	pipeline *capture.Pipeline
	sinkMgr  *sink.Manager

	mu       sync.Mutex
	playback []float32
	ownPos   spatial.Vec3
	ownYaw   float64
	havePos  bool

	// recorder is nil unless -record was given. recEncoders holds one
	// re-encoder per remote sender, used only to turn the post-gain PCM
	// handed to mixOutput back into Opus for the output track; it's
	// touched only from playbackLoop, so no locking is needed.
	recorder    *wal.Writer
	recEncoders map[string]*codec.Encoder

	// rttMu guards the health-check round-trip bookkeeping that feeds the
	// adaptive bitrate ladder: a smoothed RTT and the ping/pong counts for
	// the loss rate observed since the last adaptation tick.
	rttMu         sync.Mutex
	lastPingMs    int64
	smoothedRTTMs float64
	pingsSent     uint64
	pongsReceived uint64
}

// runSession dials the relay and runs every per-session loop until the
// session dies. retry reports whether the caller should dial again.
func (c *client) runSession(ctx context.Context, addr string, tlsConfig *tls.Config, probeURL string, captureStream *portaudio.Stream, captureBuf []float32, playbackStream *portaudio.Stream) (retry bool, err error) {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(sessCtx, connectTimeout)
	defer dialCancel()

	d := webtransport.Dialer{
		TLSClientConfig: tlsConfig,
		QUICConfig:      &quic.Config{EnableDatagrams: true},
	}
	_, sess, err := d.Dial(dialCtx, "https://"+addr+relay.Path, http.Header{})
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	c.sess = sess
	defer sess.CloseWithError(0, "client shutting down")

	if err := c.sendHello(); err != nil {
		return false, fmt.Errorf("handshake: %w", err)
	}
	slog.Info("voicechat: connected", "addr", addr, "player", c.owner.Name, "version", protocolVersion)

	httpClient := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}
	mon := health.NewMonitor(health.DefaultConfig(),
		func() error { return c.sendHealthCheck() },
		func(pctx context.Context) error { return probeConfig(pctx, httpClient, probeURL) })

	rejected := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(6)
	go func() { defer wg.Done(); c.captureLoop(sessCtx, captureStream, captureBuf) }()
	go func() { defer wg.Done(); defer cancel(); c.receiveLoop(sessCtx, mon, rejected) }()
	go func() { defer wg.Done(); c.playbackLoop(sessCtx, playbackStream) }()
	go func() { defer wg.Done(); c.pingLoop(sessCtx) }()
	go func() { defer wg.Done(); c.adaptLoop(sessCtx) }()
	go func() { defer wg.Done(); mon.Run(sessCtx) }()

	select {
	case <-sessCtx.Done():
		wg.Wait()
		select {
		case err := <-rejected:
			return false, err
		default:
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.New("voicechat: session closed")
	case e := <-mon.Events():
		cancel()
		wg.Wait()
		if e == health.EventRefresh {
			return true, nil
		}
		return false, errors.New("voicechat: relay unreachable, giving up")
	}
}

// sendHello advertises the client's protocol version; the relay answers an
// incompatible one with ServerError{VersionIncompatible} and closes.
func (c *client) sendHello() error {
	pkt := &wire.Packet{
		Type:      wire.TypeDebug,
		Owner:     &c.owner,
		DebugInfo: &wire.Debug{Version: protocolVersion},
	}
	data, err := wire.Marshal(nil, pkt)
	if err != nil {
		return err
	}
	return c.sess.SendDatagram(data)
}

// probeConfig is the reconnect probe: a plain GET of the control plane's
// config endpoint, success meaning the server process is back.
func probeConfig(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe: server error %d", resp.StatusCode)
	}
	return nil
}

func (c *client) captureLoop(ctx context.Context, stream *portaudio.Stream, buf []float32) {
	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("voicechat: capture read failed", "error", err)
			continue
		}

		frame := make([]float32, len(buf))
		copy(frame, buf)

		packets, err := c.pipeline.Ingest(frame, time.Now().UnixMilli())
		if err != nil {
			slog.Warn("voicechat: encode failed", "error", err)
			continue
		}
		for _, p := range packets {
			pkt := &wire.Packet{
				Type:  wire.TypeAudioFrame,
				Owner: &c.owner,
				Audio: &wire.AudioFrame{
					Data:        p.Data,
					SampleRate:  sampleRate,
					TimestampMs: p.TimestampMs,
					Spatial:     true,
				},
			}
			data, err := wire.Marshal(nil, pkt)
			if err != nil {
				slog.Warn("voicechat: marshal failed", "error", err)
				continue
			}
			if err := c.sess.SendDatagram(data); err != nil {
				slog.Warn("voicechat: send failed", "error", err)
			}

			if c.recorder != nil {
				c.recorder.AppendInput(c.owner.Name, wal.InputHeader{
					SampleRate:   sampleRate,
					Channels:     channels,
					RelativeTsMs: c.recorder.RelativeMs(p.TimestampMs),
					Emitter:      wal.PlayerMetadata{Name: c.owner.Name},
				}, p.Data)
			}
		}
	}
}

// receiveLoop demultiplexes inbound datagrams: audio into the sink manager,
// health echoes into the RTT sampler, position snapshots into the client's
// own listener position, and ServerError into a terminal rejection.
func (c *client) receiveLoop(ctx context.Context, mon *health.Monitor, rejected chan<- error) {
	for ctx.Err() == nil {
		data, err := c.sess.ReceiveDatagram(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("voicechat: session receive failed", "error", err)
			return
		}
		mon.NotePacket()

		pkt, err := wire.Unmarshal(data)
		if err != nil {
			slog.Warn("voicechat: unmarshal failed", "error", err)
			continue
		}

		switch pkt.Type {
		case wire.TypeHealthCheck:
			c.recordPong()

		case wire.TypeAudioFrame:
			if pkt.Audio == nil || pkt.Owner == nil {
				continue
			}
			listener := c.listenerPosition()
			c.sinkMgr.Receive(senderKey(pkt.Owner), pkt.Audio, listener)

		case wire.TypePlayerData:
			c.notePlayerData(pkt.Player)

		case wire.TypePlayerPresence:
			if pkt.Presence != nil && pkt.Presence.State == wire.PresenceDisconnected {
				c.sinkMgr.Disconnect(senderKey(&wire.Owner{Name: pkt.Presence.Name, ClientID: pkt.Presence.ClientID}))
			}

		case wire.TypeServerError:
			msg := "unknown"
			if pkt.SvrError != nil {
				msg = pkt.SvrError.Message
			}
			slog.Error("voicechat: relay rejected this client", "reason", msg)
			rejected <- fmt.Errorf("%w: %s", errServerRejected, msg)
			return
		}
	}
}

// senderKey is the sink-cache key for a remote sender: the stable client ID
// when the packet carries one, the player name otherwise.
func senderKey(o *wire.Owner) string {
	if len(o.ClientID) > 0 {
		return string(o.ClientID)
	}
	return o.Name
}

// notePlayerData tracks the client's own coordinates out of the relayed
// authoritative snapshots, so spatial frames can be placed relative to it.
func (c *client) notePlayerData(pd *wire.PlayerData) {
	if pd == nil {
		return
	}
	for _, snap := range pd.Players {
		if snap.Name != c.owner.Name {
			continue
		}
		c.mu.Lock()
		c.ownPos = spatial.Vec3{X: float64(snap.Coordinate.X), Y: float64(snap.Coordinate.Y), Z: float64(snap.Coordinate.Z)}
		c.ownYaw = float64(snap.Orientation.YawDeg)
		c.havePos = true
		c.mu.Unlock()
	}
}

// listenerPosition returns the listener's own placement, or nil while it is
// still unknown (which forces every route to normal).
func (c *client) listenerPosition() *sink.ListenerPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.havePos {
		return nil
	}
	return &sink.ListenerPosition{Pos: c.ownPos, YawDeg: c.ownYaw}
}

// rttAlpha is the RTT EWMA weight (RFC 6298's recommended smoothing factor).
const rttAlpha = 0.125

// recordPong matches a relay health-check echo against the last ping sent
// and folds the round-trip sample into the smoothed RTT.
func (c *client) recordPong() {
	now := time.Now().UnixMilli()

	c.rttMu.Lock()
	defer c.rttMu.Unlock()
	if c.lastPingMs == 0 {
		return
	}
	sample := float64(now - c.lastPingMs)
	if c.smoothedRTTMs == 0 {
		c.smoothedRTTMs = sample
	} else {
		c.smoothedRTTMs = rttAlpha*sample + (1-rttAlpha)*c.smoothedRTTMs
	}
	c.pongsReceived++
}

// pingInterval is how often a health-check liveness probe doubles as an
// RTT sample.
const pingInterval = 2 * time.Second

func (c *client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHealthCheck(); err != nil {
				slog.Warn("voicechat: health check send failed", "error", err)
			}
		}
	}
}

func (c *client) sendHealthCheck() error {
	now := time.Now().UnixMilli()

	c.rttMu.Lock()
	c.lastPingMs = now
	c.pingsSent++
	c.rttMu.Unlock()

	pkt := &wire.Packet{
		Type:   wire.TypeHealthCheck,
		Owner:  &c.owner,
		Health: &wire.HealthCheck{Nonce: uint64(now)},
	}
	data, err := wire.Marshal(nil, pkt)
	if err != nil {
		return err
	}
	return c.sess.SendDatagram(data)
}

// adaptInterval is how often the encoder's bitrate is re-evaluated against
// the loss rate and RTT observed over the interval.
const adaptInterval = 5 * time.Second

// adaptLoop steps the capture pipeline's Opus bitrate every adaptInterval
// from the loss rate and RTT observed since the previous tick.
func (c *client) adaptLoop(ctx context.Context) {
	ticker := time.NewTicker(adaptInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lossRate, rttMs := c.consumeRTTWindow()
			if err := c.pipeline.AdaptBitrate(lossRate, rttMs); err != nil {
				slog.Warn("voicechat: bitrate adaptation failed", "error", err)
			}
		}
	}
}

// consumeRTTWindow returns the loss rate and smoothed RTT observed since the
// last call, then resets the ping/pong counters for the next window.
func (c *client) consumeRTTWindow() (lossRate, rttMs float64) {
	c.rttMu.Lock()
	defer c.rttMu.Unlock()

	if c.pingsSent > 0 {
		lossRate = 1 - float64(c.pongsReceived)/float64(c.pingsSent)
	}
	rttMs = c.smoothedRTTMs
	c.pingsSent = 0
	c.pongsReceived = 0
	return lossRate, rttMs
}

// playbackLoop ticks the sink manager once per 20ms frame, mixes every
// active route down to mono, and writes the result to the output stream.
func (c *client) playbackLoop(ctx context.Context, stream *portaudio.Stream) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mix := &mixOutput{buf: make([]float32, frameSize), rec: c}
			c.sinkMgr.Tick(mix)

			c.mu.Lock()
			copy(c.playback, mix.buf)
			c.mu.Unlock()

			if err := stream.Write(); err != nil && ctx.Err() == nil {
				slog.Warn("voicechat: playback write failed", "error", err)
			}
		}
	}
}

// mixOutput accumulates every sink route's PCM into one mono buffer. Spatial
// routes use ears.Gain only (a distance/mute gain computed independently of
// the left/right placement) since this entrypoint drives a single-channel
// output device; a stereo
// frontend would pan against ears.Left/Right instead. rec, if its recorder
// is active, also records each route's post-gain PCM as the output track.
type mixOutput struct {
	buf []float32
	rec *client
}

func (m *mixOutput) PushNormal(senderClientID string, pcm []float32, gain float64) {
	for i, s := range pcm {
		if i >= len(m.buf) {
			break
		}
		m.buf[i] += s * float32(gain)
	}
	m.rec.recordOutput(senderClientID, pcm, gain, false)
}

func (m *mixOutput) PushSpatial(senderClientID string, pcm []float32, ears spatial.Ears) {
	for i, s := range pcm {
		if i >= len(m.buf) {
			break
		}
		m.buf[i] += s * float32(ears.Gain)
	}
	m.rec.recordOutput(senderClientID, pcm, ears.Gain, true)
}

// recordOutput re-encodes pcm at the gain the listener actually heard it at
// and appends it to the output track, if a recording session is active. The
// "output" track is specified to carry what the listener's mixer produced,
// not the emitter's original frame, so this runs after gain is known rather
// than recording the raw frame as received.
func (c *client) recordOutput(senderClientID string, pcm []float32, gain float64, isSpatial bool) {
	if c.recorder == nil || len(pcm) == 0 {
		return
	}

	enc, ok := c.recEncoders[senderClientID]
	if !ok {
		var err error
		enc, err = codec.NewEncoder(capture.DefaultBitrateBps, complexity)
		if err != nil {
			slog.Warn("voicechat: recording encoder init failed", "sender", senderClientID, "error", err)
			return
		}
		c.recEncoders[senderClientID] = enc
	}

	gained := make([]float32, len(pcm))
	for i, s := range pcm {
		gained[i] = s * float32(gain)
	}
	opusData, err := enc.Encode(gained)
	if err != nil {
		slog.Warn("voicechat: recording encode failed", "sender", senderClientID, "error", err)
		return
	}

	c.recorder.AppendOutput(senderClientID, wal.OutputHeader{
		SampleRate:   sampleRate,
		Channels:     channels,
		RelativeTsMs: c.recorder.RelativeMs(time.Now().UnixMilli()),
		Emitter:      wal.PlayerMetadata{Name: senderClientID},
		Listener:     wal.PlayerMetadata{Name: c.owner.Name},
		IsSpatial:    isSpatial,
	}, opusData)
}

func openAudioStreams(inputDeviceID, outputDeviceID int) (captureStream, playbackStream *portaudio.Stream, captureBuf, playbackBuf []float32, err error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	inputDev, err := resolveDevice(devices, inputDeviceID, portaudio.DefaultInputDevice)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	outputDev, err := resolveDevice(devices, outputDeviceID, portaudio.DefaultOutputDevice)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	captureBuf = make([]float32, frameSize)
	captureParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inputDev,
			Channels: channels,
			Latency:  inputDev.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: frameSize,
	}
	captureStream, err = portaudio.OpenStream(captureParams, captureBuf)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	playbackBuf = make([]float32, frameSize)
	playbackParams := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outputDev,
			Channels: channels,
			Latency:  outputDev.DefaultLowOutputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: frameSize,
	}
	playbackStream, err = portaudio.OpenStream(playbackParams, playbackBuf)
	if err != nil {
		captureStream.Close()
		return nil, nil, nil, nil, err
	}

	return captureStream, playbackStream, captureBuf, playbackBuf, nil
}

func resolveDevice(devices []*portaudio.DeviceInfo, idx int, fallback func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return fallback()
}

// loadClientTLSConfig reads ca.crt, client.crt and client.key from dir and
// builds the mTLS config used to dial the relay. Issuing the client
// certificate itself happens out of band (relayd's -issue-client flag, or
// whatever enrollment flow fronts it); this entrypoint only ever consumes an
// already-issued cert.
func loadClientTLSConfig(dir string) (*tls.Config, error) {
	caPEM, err := os.ReadFile(filepath.Join(dir, "ca.crt"))
	if err != nil {
		return nil, err
	}
	caBlock, _ := pem.Decode(caPEM)
	if caBlock == nil {
		return nil, os.ErrInvalid
	}
	caCert, err := x509.ParseCertificate(caBlock.Bytes)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	clientCert, err := tls.LoadX509KeyPair(filepath.Join(dir, "client.crt"), filepath.Join(dir, "client.key"))
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3"},
	}, nil
}
