// Package scrape polls Prometheus exposition endpoints and feeds the scraped
// samples into the alerting engine as telemetry events.
//
// Each configured source is fetched on every interval tick. One scrape
// produces one event of type "metric" named after the source ID, with every
// metric family summed into a measurement under its family name. Alert rules
// target scraped data by matching event type "metric" and the source ID.
//
// Poller.Run(ctx) polls each source once immediately, then on each tick,
// and blocks until ctx is cancelled. Failed scrapes are logged and skipped;
// they never produce events.
package scrape
