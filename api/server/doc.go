/*
Package server runs the HTTP(S) listener of the mock registration server.

Handlers contribute routes through RouteRegistrar. On top of those the server
mounts health endpoints:

  - GET /livez   always {"status":"alive"}
  - GET /readyz  200 while ready, 503 while drained
  - GET /drain   mark not ready
  - GET /undrain mark ready again

and, when enabled, pprof under /debug. Requests are logged with the flashbots
httplogger middleware.

TLS is decided before the listener starts: a configured certificate means
HTTPS, no certificate means plain HTTP. Metrics are served by a separate
listener when a MetricsServer is supplied.
*/
package server
