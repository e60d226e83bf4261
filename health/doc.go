// Package health reports the health of HTTP clients from the state of
// their resiliency policies.
//
// PipelineChecker turns a compiled resilience.Pipeline into a Checker: an
// open circuit is unhealthy, a half-open circuit or a saturated bulkhead
// is degraded. An Aggregator runs named checkers in parallel and Handler
// serves their results as JSON:
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register("billing", health.PipelineChecker("billing", client.Pipeline()))
//	http.Handle("/health", health.Handler(agg))
package health
