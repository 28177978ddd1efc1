package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/flarewatch/flarewatch/internal/config"
	"github.com/flarewatch/flarewatch/internal/engine"
	"github.com/flarewatch/flarewatch/internal/event"
)

const defaultFetchTimeout = 10 * time.Second

// EventType is the telemetry event type under which scraped samples enter the
// buffer. Rules targeting scraped data match on this type with the source ID
// as the event name.
const EventType = "metric"

// Poller periodically fetches Prometheus exposition endpoints and feeds the
// scraped samples into the engine as telemetry events.
type Poller struct {
	logger   *slog.Logger
	engine   *engine.Engine
	client   *http.Client
	interval time.Duration
	sources  []config.ScrapeSource
}

// New creates a Poller for the given sources. A nil logger falls back to
// slog.Default.
func New(logger *slog.Logger, eng *engine.Engine, interval time.Duration, sources []config.ScrapeSource) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		logger:   logger,
		engine:   eng,
		client:   &http.Client{Timeout: defaultFetchTimeout},
		interval: interval,
		sources:  sources,
	}
}

// Run polls every source once immediately, then on each interval tick.
// Blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if len(p.sources) == 0 {
		p.logger.Info("scrape: no sources configured, poller idle")
		<-ctx.Done()
		return
	}

	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	for _, src := range p.sources {
		if err := p.poll(ctx, src); err != nil {
			p.logger.Warn("scrape: poll failed", "source", src.ID, "err", err)
		}
	}
}

// poll fetches one source and ingests a single event carrying every scraped
// family as a measurement.
func (p *Poller) poll(ctx context.Context, src config.ScrapeSource) error {
	mfs, err := fetchMetrics(ctx, p.client, src.Endpoint)
	if err != nil {
		return fmt.Errorf("scrape %q: %w", src.ID, err)
	}

	measurements := make(map[string]float64, len(mfs))
	for name, mf := range mfs {
		measurements[name] = sumFamily(mf)
	}

	p.engine.ProcessEvent(ctx, event.TelemetryEvent{
		Type:         EventType,
		Name:         src.ID,
		Timestamp:    time.Now().UTC(),
		Properties:   map[string]any{"endpoint": src.Endpoint},
		Measurements: measurements,
	})
	return nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	// Non-empty result with a non-nil err means partial parse (trailing lines,
	// format warnings). Treat as success.
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
