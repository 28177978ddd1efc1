package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flarewatch/flarewatch/internal/alerts"
	"github.com/flarewatch/flarewatch/internal/event"
	"github.com/flarewatch/flarewatch/internal/metrics"
	"github.com/flarewatch/flarewatch/internal/rules"
	"github.com/flarewatch/flarewatch/internal/tracing"
)

// DefaultEvaluationInterval drives the periodic pass when the config leaves
// the interval unset.
const DefaultEvaluationInterval = 60 * time.Second

// Config holds the engine tunables.
type Config struct {
	// EvaluationInterval is the periodic pass cadence. Default 60s.
	EvaluationInterval time.Duration

	// EvaluateImmediately additionally evaluates matching rules on every
	// ingested event.
	EvaluateImmediately bool
}

// managedRule tracks whether a rule came from the config file, so config
// reloads replace only config-originated rules.
type managedRule struct {
	rule       rules.AlertRule
	fromConfig bool
}

// Engine evaluates alert rules over buffered telemetry events.
// All dependencies are injected; the caller may run several isolated
// engines in one process. Engine is safe for concurrent use.
type Engine struct {
	logger    *slog.Logger
	cfg       Config
	buffer    *event.Buffer
	evaluator *rules.Evaluator
	store     *alerts.Store
	notifier  *alerts.Notifier
	now       func() time.Time // injectable for deterministic tests

	mu    sync.RWMutex
	rules map[string]managedRule
}

// New creates an Engine. A nil logger falls back to slog.Default.
func New(logger *slog.Logger, cfg Config, buf *event.Buffer, ev *rules.Evaluator, store *alerts.Store, notifier *alerts.Notifier) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EvaluationInterval <= 0 {
		cfg.EvaluationInterval = DefaultEvaluationInterval
	}
	return &Engine{
		logger:    logger,
		cfg:       cfg,
		buffer:    buf,
		evaluator: ev,
		store:     store,
		notifier:  notifier,
		now:       time.Now,
		rules:     make(map[string]managedRule),
	}
}

// --- rule registry ----------------------------------------------------------

// AddRule validates and registers r, assigning an id when empty, and
// returns the stored rule. An existing rule with the same id is replaced.
func (e *Engine) AddRule(r rules.AlertRule) (rules.AlertRule, error) {
	return e.addRule(r, false)
}

func (e *Engine) addRule(r rules.AlertRule, fromConfig bool) (rules.AlertRule, error) {
	if err := r.Validate(); err != nil {
		return rules.AlertRule{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Severity == "" {
		r.Severity = "warning"
	}

	e.mu.Lock()
	e.rules[r.ID] = managedRule{rule: r, fromConfig: fromConfig}
	e.mu.Unlock()

	e.logger.Info("engine: rule added", "rule", r.ID, "name", r.Name, "enabled", r.Enabled)
	return r, nil
}

// RemoveRule deletes the rule with the given id. Unknown ids are no-ops.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return false
	}
	delete(e.rules, id)
	return true
}

// GetRule returns the rule with the given id.
func (e *Engine) GetRule(id string) (rules.AlertRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.rules[id]
	return m.rule, ok
}

// Rules returns all registered rules sorted by name.
func (e *Engine) Rules() []rules.AlertRule {
	e.mu.RLock()
	out := make([]rules.AlertRule, 0, len(e.rules))
	for _, m := range e.rules {
		out = append(out, m.rule)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetRuleEnabled flips the enabled flag on a rule. Unknown ids are no-ops.
func (e *Engine) SetRuleEnabled(id string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.rules[id]
	if !ok {
		return false
	}
	m.rule.Enabled = enabled
	e.rules[id] = m
	return true
}

// SetConfigRules replaces all config-originated rules with rs, leaving
// rules added through the API untouched. Invalid rules are skipped with a
// warning so one bad entry cannot reject a reload.
func (e *Engine) SetConfigRules(rs []rules.AlertRule) {
	e.mu.Lock()
	for id, m := range e.rules {
		if m.fromConfig {
			delete(e.rules, id)
		}
	}
	e.mu.Unlock()

	for _, r := range rs {
		if _, err := e.addRule(r, true); err != nil {
			e.logger.Warn("engine: skipping invalid config rule", "name", r.Name, "err", err)
		}
	}
}

// RegisterCustomEvaluator exposes the evaluator's custom function registry.
func (e *Engine) RegisterCustomEvaluator(name string, fn rules.CustomFunc) {
	e.evaluator.RegisterCustom(name, fn)
}

// --- alert and channel surface ----------------------------------------------

// GetAlert returns the alert with the given id.
func (e *Engine) GetAlert(id string) (alerts.Alert, bool) {
	return e.store.Get(id)
}

// Alerts returns stored alerts, newest first, optionally filtered by status.
func (e *Engine) Alerts(status alerts.Status) []alerts.Alert {
	return e.store.List(status)
}

// AcknowledgeAlert marks an active alert acknowledged. Unknown ids are
// silent no-ops.
func (e *Engine) AcknowledgeAlert(id string) bool {
	return e.store.Acknowledge(id)
}

// ResolveAlert marks an active or acknowledged alert resolved. Unknown ids
// are silent no-ops.
func (e *Engine) ResolveAlert(id string) bool {
	return e.store.Resolve(id)
}

// AddChannel registers a notification channel.
func (e *Engine) AddChannel(ch alerts.Channel) (alerts.Channel, error) {
	return e.notifier.AddChannel(ch)
}

// RemoveChannel deletes a notification channel. Unknown ids are no-ops.
func (e *Engine) RemoveChannel(id string) bool {
	return e.notifier.RemoveChannel(id)
}

// Channels returns all registered notification channels.
func (e *Engine) Channels() []alerts.Channel {
	return e.notifier.Channels()
}

// --- evaluation -------------------------------------------------------------

// ProcessEvent ingests ev into the buffer and, when immediate evaluation is
// enabled, synchronously evaluates the rules matching the event's type and
// name.
func (e *Engine) ProcessEvent(ctx context.Context, ev event.TelemetryEvent) {
	e.buffer.Ingest(ev)
	metrics.ObserveIngest()

	if !e.cfg.EvaluateImmediately {
		return
	}
	for _, r := range e.matchingRules(ev) {
		e.EvaluateRule(ctx, r)
	}
}

// Run drives the periodic evaluation pass. It blocks until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("engine: periodic evaluation started", "interval", e.cfg.EvaluationInterval)
	t := time.NewTicker(e.cfg.EvaluationInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine: periodic evaluation stopped")
			return
		case <-t.C:
			e.EvaluateRules(ctx)
		}
	}
}

// EvaluateRules evaluates every enabled rule against the buffer, one
// goroutine per rule, and returns when all have finished.
func (e *Engine) EvaluateRules(ctx context.Context) {
	e.mu.RLock()
	enabled := make([]rules.AlertRule, 0, len(e.rules))
	for _, m := range e.rules {
		if m.rule.Enabled {
			enabled = append(enabled, m.rule)
		}
	}
	e.mu.RUnlock()

	var wg sync.WaitGroup
	for _, r := range enabled {
		wg.Add(1)
		go func(r rules.AlertRule) {
			defer wg.Done()
			e.EvaluateRule(ctx, r)
		}(r)
	}
	wg.Wait()
}

// EvaluateRule evaluates one rule against the buffered events for its
// types/names and reports whether it fired. Firing creates an alert and
// dispatches notifications asynchronously.
func (e *Engine) EvaluateRule(ctx context.Context, r rules.AlertRule) bool {
	start := e.now()
	fired := false

	err := tracing.WithSpan(ctx, "engine.evaluate_rule", func(ctx context.Context, span trace.Span) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("rule evaluation panicked: %v", rec)
			}
		}()

		events := e.buffer.EventsFor(r.EventTypes, r.EventNames)
		span.SetAttributes(attribute.Int("events.count", len(events)))

		for _, cond := range r.Conditions {
			if !e.evaluator.Evaluate(cond, events) {
				return nil
			}
		}

		fired = true
		span.SetAttributes(attribute.Bool("rule.fired", true))
		e.fire(r, events)
		return nil
	},
		attribute.String("rule.id", r.ID),
		attribute.String("rule.name", r.Name),
	)

	switch {
	case err != nil:
		metrics.ObserveEvaluation(e.now().Sub(start), metrics.ResultFailed)
		e.logger.Error("engine: rule evaluation failed", "rule", r.ID, "err", err)
	case fired:
		metrics.ObserveEvaluation(e.now().Sub(start), metrics.ResultFired)
	default:
		metrics.ObserveEvaluation(e.now().Sub(start), metrics.ResultPassed)
	}
	return fired
}

// fire materializes a firing into an alert and dispatches it.
func (e *Engine) fire(r rules.AlertRule, events []event.TelemetryEvent) {
	now := e.now()
	a := alerts.Alert{
		ID:          r.ID + "-" + strconv.FormatInt(now.UnixNano(), 10),
		Name:        r.Name,
		Description: r.Description,
		Severity:    r.Severity,
		Status:      alerts.StatusActive,
		Timestamp:   now,
		Source:      r.ID,
		Tags:        r.Tags,
		Events:      sampleEvents(events),
	}

	e.store.Add(a)
	metrics.ObserveAlert(a.Severity)
	e.logger.Warn("engine: alert fired",
		"rule", r.ID,
		"name", r.Name,
		"severity", a.Severity,
		"alert", a.ID,
	)
	go e.notifier.Dispatch(a)
}

// matchingRules returns the enabled rules whose filters match ev.
func (e *Engine) matchingRules(ev event.TelemetryEvent) []rules.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []rules.AlertRule
	for _, m := range e.rules {
		if m.rule.Matches(ev) {
			out = append(out, m.rule)
		}
	}
	return out
}

// sampleEvents returns the most recent MaxSampledEvents entries by
// timestamp.
func sampleEvents(events []event.TelemetryEvent) []event.TelemetryEvent {
	if len(events) == 0 {
		return nil
	}
	sorted := make([]event.TelemetryEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	if len(sorted) > alerts.MaxSampledEvents {
		sorted = sorted[len(sorted)-alerts.MaxSampledEvents:]
	}
	return sorted
}
