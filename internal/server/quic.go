package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
)

// FeedALPN is the TLS application protocol of the QUIC frame feed.
const FeedALPN = "forceviz-frames"

// MaxFeedFrameSize bounds a single length-prefixed frame on the QUIC feed.
const MaxFeedFrameSize = 16 << 20

var ErrFrameTooLarge = errors.New("frame too large")

// QUICFeed streams frames to native clients over QUIC. A client opens one
// bidirectional stream and writes a single byte; the feed answers on that
// stream with the latest frame and then every broadcast frame, each prefixed
// with its length as a big-endian uint32.
type QUICFeed struct {
	addr       string
	tlsConfig  *tls.Config
	bufferSize int
	hub        *Hub
	logger     log.Log

	listener *quic.Listener
	cancel   context.CancelFunc

	mu      sync.Mutex
	clients map[*feedClient]struct{}

	running int32 // atomic bool
	wg      sync.WaitGroup
}

type feedClient struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	send   chan []byte
}

// NewQUICFeed creates a feed on addr that registers itself with hub. A nil
// tlsConfig gets a self-signed certificate.
func NewQUICFeed(addr string, tlsConfig *tls.Config, hub *Hub, bufferSize int, logger log.Log) (*QUICFeed, error) {
	if tlsConfig == nil {
		var err error
		if tlsConfig, err = SelfSignedTLS(); err != nil {
			return nil, fmt.Errorf("generate certificate: %w", err)
		}
	}
	tlsConfig = tlsConfig.Clone()
	tlsConfig.NextProtos = []string{FeedALPN}
	tlsConfig.MinVersion = tls.VersionTLS13

	if bufferSize <= 0 {
		bufferSize = 16
	}
	if logger == nil {
		logger = log.NewNop()
	}
	f := &QUICFeed{
		addr:       addr,
		tlsConfig:  tlsConfig,
		bufferSize: bufferSize,
		hub:        hub,
		logger:     logger.With(log.String("component", "quic_feed")),
		clients:    make(map[*feedClient]struct{}),
	}
	hub.AddSink(f)
	return f, nil
}

// LoadTLS reads a certificate pair for the feed.
func LoadTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// SelfSignedTLS generates a localhost certificate for development.
func SelfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{Organization: []string{"forceviz"}},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{FeedALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// Start opens the UDP listener and accepts clients in the background.
func (f *QUICFeed) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&f.running, 0, 1) {
		return ErrServerAlreadyRunning
	}
	listener, err := quic.ListenAddr(f.addr, f.tlsConfig, &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	})
	if err != nil {
		atomic.StoreInt32(&f.running, 0)
		f.logger.Error("Failed to start QUIC listener", log.Error(err))
		return err
	}
	f.listener = listener
	ctx, f.cancel = context.WithCancel(ctx)
	f.logger.Info("QUIC feed listening", log.String("addr", listener.Addr().String()))

	f.wg.Add(1)
	go f.acceptConnections(ctx)
	return nil
}

// Stop closes the listener and every client.
func (f *QUICFeed) Stop() error {
	if !atomic.CompareAndSwapInt32(&f.running, 1, 0) {
		return ErrServerNotRunning
	}
	f.cancel()
	err := f.listener.Close()

	f.mu.Lock()
	for c := range f.clients {
		f.removeLocked(c)
	}
	f.mu.Unlock()

	f.wg.Wait()
	f.logger.Info("QUIC feed stopped")
	return err
}

// Run starts the feed and stops it when ctx is done.
func (f *QUICFeed) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return f.Stop()
}

// Addr returns the bound UDP address once started.
func (f *QUICFeed) Addr() net.Addr {
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

// Clients returns the number of subscribed clients.
func (f *QUICFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Broadcast queues data for every client, dropping clients that fall behind.
func (f *QUICFeed) Broadcast(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			f.logger.Warn("QUIC client too slow, dropping", log.String("client_id", c.id))
			f.removeLocked(c)
		}
	}
}

func (f *QUICFeed) acceptConnections(ctx context.Context) {
	defer f.wg.Done()
	for {
		conn, err := f.listener.Accept(ctx)
		if err != nil {
			if atomic.LoadInt32(&f.running) == 1 && ctx.Err() == nil {
				f.logger.Error("Failed to accept QUIC connection", log.Error(err))
			}
			return
		}
		f.wg.Add(1)
		go f.handleConnection(ctx, conn)
	}
}

func (f *QUICFeed) handleConnection(ctx context.Context, conn *quic.Conn) {
	defer f.wg.Done()

	acceptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	stream, err := conn.AcceptStream(acceptCtx)
	cancel()
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return
	}
	if _, err := io.ReadFull(stream, make([]byte, 1)); err != nil {
		_ = conn.CloseWithError(0, "no hello")
		return
	}

	c := &feedClient{
		id:     uuid.NewString(),
		conn:   conn,
		stream: stream,
		send:   make(chan []byte, f.bufferSize),
	}
	// Reading the hub's last frame while holding f.mu means a concurrent
	// broadcast is either already in it or delivered after registration.
	f.mu.Lock()
	if atomic.LoadInt32(&f.running) == 0 {
		f.mu.Unlock()
		_ = conn.CloseWithError(0, "shutting down")
		return
	}
	if last := f.hub.Last(); last != nil {
		c.send <- last
	}
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("QUIC client connected",
		log.String("client_id", c.id),
		log.String("remote_addr", conn.RemoteAddr().String()))

	f.writeFrames(c)

	f.mu.Lock()
	f.removeLocked(c)
	f.mu.Unlock()
	_ = conn.CloseWithError(0, "feed closed")
	f.logger.Info("QUIC client disconnected", log.String("client_id", c.id))
}

func (f *QUICFeed) writeFrames(c *feedClient) {
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := WriteFeedFrame(c.stream, data); err != nil {
				f.logger.Debug("QUIC write failed", log.String("client_id", c.id), log.Error(err))
				return
			}
		case <-c.conn.Context().Done():
			return
		}
	}
}

func (f *QUICFeed) removeLocked(c *feedClient) {
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	close(c.send)
}

// WriteFeedFrame writes data with its length prefix.
func WriteFeedFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFeedFrameSize {
		return ErrFrameTooLarge
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadFeedFrame reads one length-prefixed frame.
func ReadFeedFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFeedFrameSize {
		return nil, ErrFrameTooLarge
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
