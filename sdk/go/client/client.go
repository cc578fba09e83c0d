// Package client is a Go client for the forceviz HTTP API and its frame feeds.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/render"
	"github.com/forceviz/forceviz/internal/server"
	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
)

// Client talks to one forceviz server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Log

	closed int32 // atomic bool
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithLogger(l log.Log) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New creates a client for baseURL, e.g. "http://127.0.0.1:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.String("component", "client"))
	return c
}

// Close makes later calls fail with ErrClientClosed.
func (c *Client) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) Frame(ctx context.Context) (render.FrameJSON, error) {
	var frame render.FrameJSON
	err := c.call(ctx, http.MethodGet, "/api/frame", nil, &frame)
	return frame, err
}

func (c *Client) Listing(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/sensors/listing", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) AddSensor(ctx context.Context) (server.StateResponse, error) {
	return c.state(ctx, http.MethodPost, "/api/sensors", nil)
}

func (c *Client) EditSensor(ctx context.Context, index int, fields render.FieldsJSON) (server.StateResponse, error) {
	return c.state(ctx, http.MethodPut, fmt.Sprintf("/api/sensors/%d", index), fields)
}

func (c *Client) RemoveSensor(ctx context.Context, index int) (server.StateResponse, error) {
	return c.state(ctx, http.MethodDelete, fmt.Sprintf("/api/sensors/%d", index), nil)
}

func (c *Client) Select(ctx context.Context, index int) (server.StateResponse, error) {
	return c.state(ctx, http.MethodPut, "/api/selection", server.SelectRequest{Index: index})
}

func (c *Client) SetForces(ctx context.Context, x, y, z float64) (server.StateResponse, error) {
	return c.state(ctx, http.MethodPost, "/api/forces", server.ForcesRequest{X: x, Y: y, Z: z})
}

func (c *Client) SetThreshold(ctx context.Context, t float64) (server.StateResponse, error) {
	return c.state(ctx, http.MethodPut, "/api/ramp/threshold", server.ValueRequest{Value: t})
}

func (c *Client) SetAlpha(ctx context.Context, a float64) (server.StateResponse, error) {
	return c.state(ctx, http.MethodPut, "/api/ramp/alpha", server.ValueRequest{Value: a})
}

func (c *Client) PickerHex(ctx context.Context, hex string) (server.PickerJSON, error) {
	var p server.PickerJSON
	err := c.call(ctx, http.MethodPut, "/api/picker/hex", server.HexRequest{Hex: hex}, &p)
	return p, err
}

// ApplyPicker copies the picker color to the "low" or "high" end of the ramp.
func (c *Client) ApplyPicker(ctx context.Context, target string) (server.StateResponse, error) {
	return c.state(ctx, http.MethodPost, "/api/picker/apply/"+target, nil)
}

// OpenPicker loads the "low" or "high" ramp end into the picker and starts a
// selection that ClosePicker finishes.
func (c *Client) OpenPicker(ctx context.Context, target string) (server.PickerJSON, error) {
	var p server.PickerJSON
	err := c.call(ctx, http.MethodPost, "/api/picker/open/"+target, nil, &p)
	return p, err
}

// ClosePicker confirms the open selection, or cancels it when confirm is false.
func (c *Client) ClosePicker(ctx context.Context, confirm bool) (server.StateResponse, error) {
	if confirm {
		return c.state(ctx, http.MethodPost, "/api/picker/confirm", nil)
	}
	return c.state(ctx, http.MethodPost, "/api/picker/cancel", nil)
}

func (c *Client) state(ctx context.Context, method, path string, body any) (server.StateResponse, error) {
	var resp server.StateResponse
	err := c.call(ctx, method, path, body, &resp)
	return resp, err
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, ErrClientClosed
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// SubscribeWebSocket streams frames from /ws until ctx is done or the
// connection drops; then the channel is closed.
func (c *Client) SubscribeWebSocket(ctx context.Context) (<-chan render.FrameJSON, error) {
	u := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	frames := make(chan render.FrameJSON, 8)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if !c.deliver(ctx, frames, data) {
				return
			}
		}
	}()
	return frames, nil
}

// SubscribeQUIC streams frames from a QUIC feed at addr. A nil tlsConfig
// trusts any certificate, which suits the development self-signed one.
func (c *Client) SubscribeQUIC(ctx context.Context, addr string, tlsConfig *tls.Config) (<-chan render.FrameJSON, error) {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	} else {
		tlsConfig = tlsConfig.Clone()
	}
	tlsConfig.NextProtos = []string{server.FeedALPN}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, &quic.Config{KeepAlivePeriod: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, err
	}
	if _, err := stream.Write([]byte{1}); err != nil {
		_ = conn.CloseWithError(0, "failed to subscribe")
		return nil, err
	}

	frames := make(chan render.FrameJSON, 8)
	go func() {
		<-ctx.Done()
		_ = conn.CloseWithError(0, "client closing")
	}()
	go func() {
		defer close(frames)
		for {
			data, err := server.ReadFeedFrame(stream)
			if err != nil {
				return
			}
			if !c.deliver(ctx, frames, data) {
				return
			}
		}
	}()
	return frames, nil
}

func (c *Client) deliver(ctx context.Context, frames chan<- render.FrameJSON, data []byte) bool {
	var frame render.FrameJSON
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("Dropping malformed frame", log.Error(err))
		return true
	}
	select {
	case frames <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
