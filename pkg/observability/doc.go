/*
Package observability turns form lifecycle hooks into Prometheus metrics and structured
log records.

Hooks built here are plain domain.LifecycleHooks values; Merge combines several of them so
metrics, logging and application callbacks can observe the same form.
*/
package observability
