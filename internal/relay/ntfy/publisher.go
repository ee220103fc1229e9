package ntfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Zentik-notifier/backend-sub001/internal/eventbus"
	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

var (
	ErrDisabled  = errors.New("ntfy publisher disabled")
	ErrQueueFull = errors.New("ntfy publish queue full")
	ErrStopped   = errors.New("ntfy publisher stopped")
)

// Config controls the async publish pipeline.
type Config struct {
	Enabled   bool
	BaseURL   string // e.g. "https://ntfy.sh"
	Topic     string
	Token     string // optional bearer token
	Workers   int
	QueueSize int

	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

type job struct {
	id      string
	payload Payload
}

// PublishEvent is the bus data for publish.* events.
type PublishEvent struct {
	ID    string
	Topic string
	Error string
	At    time.Time
}

// Publisher implements an async publish pipeline to an ntfy server:
// queue + worker pool + rate limit + bounded retry.
//
// It is safe for concurrent use.
type Publisher struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus
	cfg Config

	http    *http.Client
	limiter *rate.Limiter

	accepting bool
	queue     chan job

	runCtx    context.Context
	runCancel context.CancelFunc
	// sendWG counts in-flight Publish enqueues so Stop never closes the
	// queue under a concurrent send.
	sendWG   sync.WaitGroup
	workerWG sync.WaitGroup
}

func NewPublisher(cfg Config, log logx.Logger, bus eventbus.Bus) *Publisher {
	applyDefaults(&cfg)
	return &Publisher{
		log:     log.With(logx.String("component", "ntfy.publisher")),
		bus:     bus,
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
}

func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	if p.queue != nil || !p.cfg.Enabled {
		p.mu.Unlock()
		return
	}
	q := make(chan job, p.cfg.QueueSize)
	p.queue = q
	p.accepting = true
	p.runCtx, p.runCancel = context.WithCancel(ctx)
	runCtx := p.runCtx
	workers := p.cfg.Workers
	p.mu.Unlock()

	// Workers receive the queue directly so their view never depends on the
	// field Stop clears later.
	for i := 0; i < workers; i++ {
		p.workerWG.Add(1)
		go func(idx int) {
			defer p.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("panic in publish worker",
						logx.Int("worker", idx), logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			p.workerLoop(runCtx, q)
		}(i)
	}
}

// Stop blocks intake and drains the queue best-effort until ctx expires.
//
// Ordering matters: intake is blocked first, in-flight enqueues drain before
// the channel closes, and the queue field is cleared only once the workers
// have exited.
func (p *Publisher) Stop(ctx context.Context) {
	p.mu.Lock()
	q := p.queue
	cancel := p.runCancel
	if q == nil {
		p.mu.Unlock()
		return
	}
	p.accepting = false
	p.mu.Unlock()

	enqDone := make(chan struct{})
	go func() {
		p.sendWG.Wait()
		close(enqDone)
	}()
	select {
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return
	case <-enqDone:
	}

	close(q)

	done := make(chan struct{})
	go func() {
		p.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
	if cancel != nil {
		cancel()
	}

	p.mu.Lock()
	p.queue = nil
	p.runCtx = nil
	p.runCancel = nil
	p.mu.Unlock()
}

// Publish converts the message and enqueues it for delivery.
func (p *Publisher) Publish(ctx context.Context, id string, m notification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if !p.cfg.Enabled {
		p.mu.Unlock()
		return ErrDisabled
	}
	if !p.accepting || p.queue == nil {
		p.mu.Unlock()
		return ErrStopped
	}
	q := p.queue
	topic := p.cfg.Topic
	p.sendWG.Add(1)
	p.mu.Unlock()
	defer p.sendWG.Done()

	j := job{id: id, payload: ToWire(m, topic)}
	select {
	case q <- j:
		p.publishEvent(eventbus.EventPublishQueued, j, nil)
		return nil
	default:
		p.publishEvent(eventbus.EventPublishDropped, j, ErrQueueFull)
		return ErrQueueFull
	}
}

func (p *Publisher) workerLoop(runCtx context.Context, q chan job) {
	for j := range q {
		select {
		case <-runCtx.Done():
			return
		default:
		}
		p.sendWithRetry(runCtx, j)
	}
}

func (p *Publisher) sendWithRetry(ctx context.Context, j job) {
	p.mu.Lock()
	cfg := p.cfg
	lim := p.limiter
	p.mu.Unlock()

	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}

		err := p.post(ctx, cfg, j.payload)
		if err == nil {
			p.publishEvent(eventbus.EventPublishSent, j, nil)
			return
		}
		lastErr = err
		p.log.Debug("ntfy publish failed",
			logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}

	p.log.Warn("ntfy publish gave up", logx.String("id", j.id), logx.Err(lastErr))
	p.publishEvent(eventbus.EventPublishFailed, j, lastErr)
}

func (p *Publisher) post(ctx context.Context, cfg Config, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ntfy returned %s", resp.Status)
	}
	return nil
}

func (p *Publisher) publishEvent(typ string, j job, err error) {
	if p.bus == nil {
		return
	}
	ev := PublishEvent{ID: j.id, Topic: j.payload.Topic, At: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	p.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1), capped, with 0.7..1.3 jitter.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
