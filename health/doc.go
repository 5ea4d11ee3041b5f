// Package health reports whether the token service can do its job.
//
// A Checker reports Healthy, Degraded or Unhealthy. The Aggregator runs all
// registered checkers concurrently under one deadline, and Mount exposes
// them over HTTP:
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register(health.NewSigningChecker(codec))
//	agg.Register(health.NewCircuitChecker("credentials", repo.CircuitState))
//	health.Mount(router, agg)
//
// /healthz is a plain liveness probe, /readyz answers 503 when any check is
// unhealthy, and /health returns every result as JSON.
package health
