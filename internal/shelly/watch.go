package shelly

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// notifyFrame is the subset of a Gen2 websocket RPC frame the watcher cares
// about. Devices push NotifyStatus frames whenever a component changes.
type notifyFrame struct {
	Method string                     `json:"method"`
	Params map[string]json.RawMessage `json:"params"`
}

// Watcher listens on the device's websocket RPC endpoint for NotifyStatus
// events and signals a wake channel when the switch output changes, so the
// reconciler can react immediately instead of waiting out its poll interval.
// It only observes; commands always go through the HTTP client.
type Watcher struct {
	url    string
	logger *zap.Logger
	wake   chan struct{}
}

// NewWatcher creates a watcher for the device at the given IP.
func NewWatcher(deviceIP string, logger *zap.Logger) *Watcher {
	return &Watcher{
		url:    fmt.Sprintf("ws://%s/rpc", deviceIP),
		logger: logger.Named("watcher"),
		wake:   make(chan struct{}, 1),
	}
}

// Wake returns the channel signalled on switch output changes.
func (w *Watcher) Wake() <-chan struct{} {
	return w.wake
}

// Run connects to the event stream and reads frames until ctx is cancelled,
// reconnecting with exponential backoff on failure. Losing the stream is
// never fatal; polling remains the source of truth.
func (w *Watcher) Run(ctx context.Context) {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
		if err != nil {
			w.logger.Warn("Failed to connect to device event stream", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second
		w.logger.Info("Connected to device event stream", zap.String("url", w.url))

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		w.readFrames(conn)
		close(done)
		conn.Close()
	}
}

// readFrames consumes frames until the connection drops.
func (w *Watcher) readFrames(conn *websocket.Conn) {
	key := fmt.Sprintf("switch:%d", switchID)

	for {
		var frame notifyFrame
		if err := conn.ReadJSON(&frame); err != nil {
			w.logger.Warn("Device event stream closed", zap.Error(err))
			return
		}

		if frame.Method != "NotifyStatus" {
			continue
		}

		raw, ok := frame.Params[key]
		if !ok {
			continue
		}

		var sw SwitchStatus
		if err := json.Unmarshal(raw, &sw); err != nil {
			w.logger.Debug("Ignoring undecodable status event", zap.Error(err))
			continue
		}
		if sw.Output == nil {
			continue
		}

		w.logger.Info("Switch output changed on device", zap.Bool("output", *sw.Output))

		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}
