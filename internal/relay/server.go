package relay

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// Path is the single HTTP path the relay upgrades to a WebTransport session.
// Everything the wire protocol needs travels over that session's datagrams;
// there is no separate control stream: each datagram is one serialized
// packet.
const Path = "/relay"

// Server accepts WebTransport sessions and hands each to relay.Serve.
// Shaped after server/server.go's HTTP-listener, swapped from
// gorilla/websocket's Upgrade to webtransport-go's, which is the transport
// server/client.go's handleClient already expects but that the production
// HTTP server never actually constructs.
type Server struct {
	addr string
	wt   webtransport.Server
	hub  *Hub
}

// NewServer builds a Server bound to addr with the given mTLS config and
// keepalive enabled on every accepted QUIC connection.
func NewServer(addr string, tlsConfig *tls.Config, keepAlive time.Duration, hub *Hub) *Server {
	mux := http.NewServeMux()
	s := &Server{addr: addr, hub: hub}

	s.wt = webtransport.Server{
		H3: &http3.Server{
			Addr:       addr,
			TLSConfig:  tlsConfig,
			QUICConfig: &quic.Config{KeepAlivePeriod: keepAlive, EnableDatagrams: true},
			Handler:    mux,
		},
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.wt.Upgrade(w, r)
		if err != nil {
			slog.Warn("webtransport upgrade failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		go Serve(r.Context(), hub, &sessionAdapter{sess})
	})

	return s
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.wt.Close()
	}()

	slog.Info("relay listening", "addr", s.addr)
	err := s.wt.ListenAndServe()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// sessionAdapter adapts *webtransport.Session to the narrow Session
// interface Conn depends on, the same narrowing server/client.go applies
// with sessionCloser.
type sessionAdapter struct {
	sess *webtransport.Session
}

func (a *sessionAdapter) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return a.sess.ReceiveDatagram(ctx)
}

func (a *sessionAdapter) SendDatagram(b []byte) error {
	return a.sess.SendDatagram(b)
}

func (a *sessionAdapter) CloseWithError(code uint64, reason string) error {
	return a.sess.CloseWithError(webtransport.SessionErrorCode(code), reason)
}
