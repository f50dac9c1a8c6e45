// Command relayd runs the QUIC/WebTransport voice relay standalone.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/relay"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wal"
	"github.com/Alaydriem/bedrock-voice-chat-sub000/internal/wire"
)

func main() {
	addr := flag.String("addr", ":8443", "QUIC/WebTransport listen address")
	certsDir := flag.String("certs-dir", "certs", "directory holding ca.crt/ca.key, generated on first start")
	certValidity := flag.Duration("cert-validity", 24*time.Hour, "leaf certificate validity")
	caValidity := flag.Duration("ca-validity", 365*24*time.Hour, "root CA validity, only used on first start")
	keepAlive := flag.Duration("keepalive", 10*time.Second, "QUIC keepalive period")
	broadcastRange := flag.Float64("broadcast-range", relay.DefaultBroadcastRange, "max distance (world units) a non-channel spatial frame is receivable")
	versionMajor := flag.Int("version-major", 1, "server protocol version, major")
	versionMinor := flag.Int("version-minor", 0, "server protocol version, minor")
	recordDir := flag.String("record", "", "directory to write one recording session per connected player under (empty disables recording)")
	issueClient := flag.String("issue-client", "", "issue a client certificate for the named player into -certs-dir and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	hostname := ""
	if host, _, err := net.SplitHostPort(*addr); err == nil && host != "" {
		hostname = host
	}

	ca, err := loadOrGenerateCA(*certsDir, *caValidity, hostname)
	if err != nil {
		slog.Error("relayd: CA setup failed", "error", err)
		os.Exit(1)
	}

	if *issueClient != "" {
		if err := issueClientCert(ca, *certsDir, *issueClient, *certValidity); err != nil {
			slog.Error("relayd: failed to issue client certificate", "player", *issueClient, "error", err)
			os.Exit(1)
		}
		slog.Info("relayd: client certificate issued", "player", *issueClient, "dir", *certsDir)
		return
	}

	serverCert, err := ca.IssueServerCert(*certValidity, hostname, nil)
	if err != nil {
		slog.Error("relayd: failed to issue server certificate", "error", err)
		os.Exit(1)
	}

	hub := relay.NewHub(*broadcastRange, relay.Version{Major: *versionMajor, Minor: *versionMinor})

	var recorders *playerRecorders
	if *recordDir != "" {
		recorders = newPlayerRecorders(*recordDir)
	}

	hub.OnDisconnect = func(playerName string) {
		slog.Info("player disconnected", "player", playerName)
		if recorders != nil {
			recorders.stop(playerName)
		}
	}
	if recorders != nil {
		hub.OnInputAudio = recorders.append
	}

	tlsConfig := relay.ServerTLSConfig(ca, serverCert)
	srv := relay.NewServer(*addr, tlsConfig, *keepAlive, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("relayd: server exited with error", "error", err)
		os.Exit(1)
	}
}

const (
	caCertFile = "ca.crt"
	caKeyFile  = "ca.key"
)

// loadOrGenerateCA reads a previously persisted root CA from dir, or
// generates and persists a new one on first start.
func loadOrGenerateCA(dir string, validity time.Duration, hostname string) (*relay.CA, error) {
	certPath := filepath.Join(dir, caCertFile)
	keyPath := filepath.Join(dir, caKeyFile)

	certPEM, certErr := os.ReadFile(certPath)
	keyPEM, keyErr := os.ReadFile(keyPath)
	if certErr == nil && keyErr == nil {
		certBlock, _ := pem.Decode(certPEM)
		keyBlock, _ := pem.Decode(keyPEM)
		if certBlock == nil || keyBlock == nil {
			slog.Warn("relayd: existing CA files are not valid PEM, regenerating", "dir", dir)
		} else {
			key, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
			if err == nil {
				if edKey, ok := key.(ed25519.PrivateKey); ok {
					ca, err := relay.LoadCA(certBlock.Bytes, edKey)
					if err == nil {
						slog.Info("relayd: loaded existing CA", "dir", dir)
						return ca, nil
					}
				}
			}
		}
	}

	slog.Info("relayd: generating new root CA", "dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	ca, err := relay.GenerateCA(validity, hostname, nil)
	if err != nil {
		return nil, err
	}
	if err := persistCA(certPath, keyPath, ca); err != nil {
		return nil, err
	}
	return ca, nil
}

func persistCA(certPath, keyPath string, ca *relay.CA) error {
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.CertDER()})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(ca.Key())
	if err != nil {
		return err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return os.WriteFile(keyPath, keyPEM, 0o600)
}

// issueClientCert mints client.crt/client.key for playerName, the offline
// stand-in for the HTTP enrollment flow a full deployment fronts this with.
func issueClientCert(ca *relay.CA, dir, playerName string, validity time.Duration) error {
	cert, err := ca.IssueClientCert(playerName, validity)
	if err != nil {
		return err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	if err := os.WriteFile(filepath.Join(dir, "client.crt"), certPEM, 0o644); err != nil {
		return err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		return err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return os.WriteFile(filepath.Join(dir, "client.key"), keyPEM, 0o600)
}

// playerRecorders owns one recording session per currently-connected player,
// keyed by player name, recording that player's own Input track as the relay
// receives it. Sessions are created lazily on a player's first inbound frame
// and closed on disconnect.
type playerRecorders struct {
	dir string

	mu      sync.Mutex
	writers map[string]*wal.Writer
}

func newPlayerRecorders(dir string) *playerRecorders {
	return &playerRecorders{dir: dir, writers: make(map[string]*wal.Writer)}
}

// append writes frame to playerName's recording session, starting one if
// this is the first frame seen from that player.
func (r *playerRecorders) append(playerName string, frame *wire.AudioFrame) {
	w, err := r.writerFor(playerName)
	if err != nil {
		slog.Warn("relayd: failed to start recording session", "player", playerName, "error", err)
		return
	}

	meta := wal.PlayerMetadata{Name: playerName}
	if frame.Coordinate != nil {
		meta.Coordinate = *frame.Coordinate
	}
	if frame.Orientation != nil {
		meta.Orientation = *frame.Orientation
	}
	if frame.Dimension != nil {
		meta.Dimension = *frame.Dimension
	}

	w.AppendInput(playerName, wal.InputHeader{
		SampleRate:   frame.SampleRate,
		Channels:     1,
		RelativeTsMs: w.RelativeMs(frame.TimestampMs),
		Emitter:      meta,
	}, frame.Data)
}

func (r *playerRecorders) writerFor(playerName string) (*wal.Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[playerName]; ok {
		return w, nil
	}

	sessionID := uuid.Must(uuid.NewV7()).String()
	w, err := wal.NewWriter(filepath.Join(r.dir, sessionID), sessionID, playerName, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	slog.Info("relayd: recording session started", "player", playerName, "session", sessionID)
	r.writers[playerName] = w
	return w, nil
}

// stop closes and finalizes playerName's recording session, if one is open.
func (r *playerRecorders) stop(playerName string) {
	r.mu.Lock()
	w, ok := r.writers[playerName]
	if ok {
		delete(r.writers, playerName)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := w.Stop(time.Now().UnixMilli()); err != nil {
		slog.Error("relayd: failed to close recording session", "player", playerName, "error", err)
	}
}
