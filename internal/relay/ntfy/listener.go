package ntfy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

// ListenerConfig controls the subscribe side of the relay.
type ListenerConfig struct {
	Enabled bool
	BaseURL string
	Topic   string
	Token   string
}

// Handler receives each normalized incoming message together with the raw
// wire event it came from.
type Handler func(ctx context.Context, m notification.Message, raw IncomingMessage)

// Listener subscribes to an ntfy topic over websocket and normalizes every
// message event through FromWire.
type Listener struct {
	cfg     ListenerConfig
	log     logx.Logger
	handler Handler

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewListener(cfg ListenerConfig, log logx.Logger, handler Handler) *Listener {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Listener{
		cfg:     cfg,
		log:     log.With(logx.String("component", "ntfy.listener")),
		handler: handler,
	}
}

// wsURL converts the HTTP base URL into the per-topic websocket endpoint.
func (l *Listener) wsURL() (string, error) {
	u, err := url.Parse(l.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + l.cfg.Topic + "/ws"
	return u.String(), nil
}

func (l *Listener) Start(ctx context.Context) {
	if !l.cfg.Enabled || l.handler == nil {
		return
	}
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runLoop(runCtx)
	}()
}

func (l *Listener) Stop(ctx context.Context) {
	l.mu.Lock()
	cancel := l.cancel
	conn := l.conn
	l.cancel = nil
	l.conn = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

// runLoop dials, reads until the connection breaks, then reconnects with a
// capped backoff.
func (l *Listener) runLoop(ctx context.Context) {
	const (
		backoffBase = time.Second
		backoffMax  = 30 * time.Second
	)
	backoff := backoffBase

	for {
		if ctx.Err() != nil {
			return
		}

		err := l.readOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Warn("subscription dropped; reconnecting",
				logx.Err(err), logx.Duration("backoff", backoff))
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		case <-t.C:
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
		if err == nil {
			backoff = backoffBase
		}
	}
}

func (l *Listener) readOnce(ctx context.Context) error {
	target, err := l.wsURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	if l.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+l.cfg.Token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		_ = conn.Close()
	}()

	l.log.Info("subscribed", logx.String("topic", l.cfg.Topic))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var in IncomingMessage
		if err := json.Unmarshal(data, &in); err != nil {
			l.log.Debug("unreadable subscribe frame", logx.Err(err))
			continue
		}
		// open/keepalive frames are protocol chatter, not messages.
		if in.Event != "message" {
			continue
		}
		l.handler(ctx, FromWire(in), in)
	}
}
