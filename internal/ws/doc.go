// Package ws implements the WebSocket alert stream for flarewatch.
//
// Hub manages a set of connected clients and pushes every alert lifecycle
// event (fired, acknowledged, resolved) to all of them as it happens. The hub
// subscribes to the in-process bus at construction time, so anything published
// there reaches connected clients with no polling.
//
// New(bus) creates a Hub.
// Hub.Run(ctx) blocks until ctx is cancelled, then closes all active
// connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket and streams events
// until the client disconnects.
//
// Message format sent to clients:
//
//	{
//	  "event": "alerts.fired",
//	  "data":  { /* same schema as GET /api/v1/alerts/{id} */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. WebSocket endpoint is mounted at /ws/alerts by the server.
package ws
