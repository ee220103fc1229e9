// Package selftest periodically runs every parser against its own shipped
// fixture. A parser whose Validate stops accepting its fixture, or whose
// Parse yields an invalid message, is a deploy-time regression worth paging
// on before real webhooks hit it.
package selftest

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Zentik-notifier/backend-sub001/internal/eventbus"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

const defaultSchedule = "@every 1h"

type Config struct {
	Enabled  bool
	Schedule string
}

type Runner struct {
	cfg Config
	log logx.Logger
	reg *parser.Registry
	bus eventbus.Bus

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, log logx.Logger, reg *parser.Registry, bus eventbus.Bus) *Runner {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	return &Runner{
		cfg: cfg,
		log: log.With(logx.String("component", "selftest")),
		reg: reg,
		bus: bus,
	}
}

// Start runs one pass immediately, then on the configured cron schedule.
func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		return nil
	}

	go r.RunOnce(ctx)

	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(p))
	if _, err := c.AddFunc(r.cfg.Schedule, func() { r.RunOnce(ctx) }); err != nil {
		return err
	}

	r.mu.Lock()
	r.c = c
	r.mu.Unlock()
	c.Start()
	return nil
}

func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

// RunOnce exercises every registered parser and returns the number of
// failures. Parsers without a fixture are skipped.
func (r *Runner) RunOnce(ctx context.Context) int {
	start := time.Now()
	failures := 0

	for _, p := range r.reg.All() {
		st, ok := p.(parser.SelfTester)
		if !ok {
			continue
		}
		id := p.Descriptor().BuiltInType
		if !r.checkOne(ctx, p, st.TestPayload()) {
			failures++
			r.log.Error("parser self-test failed", logx.String("parser", string(id)))
			if r.bus != nil {
				r.bus.Publish(eventbus.Event{Type: eventbus.EventSelfTestFailed, Data: string(id)})
			}
		}
	}

	if failures == 0 {
		r.log.Debug("self-test passed", logx.Duration("took", time.Since(start)))
		if r.bus != nil {
			r.bus.Publish(eventbus.Event{Type: eventbus.EventSelfTestPassed})
		}
	}
	return failures
}

func (r *Runner) checkOne(ctx context.Context, p parser.Parser, fixture parser.Payload) bool {
	pctx := parser.Context{Log: r.log}
	if !p.Validate(ctx, fixture, pctx) {
		return false
	}
	m := p.Parse(ctx, fixture, pctx)
	return m.Validate() == nil
}
