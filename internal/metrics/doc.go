// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

/*
Package metrics provides Prometheus metrics collection and export.

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:6767/metrics

# Available Metrics

Ingestion:
  - plans_ingested_total: Plans accepted into a slot (counter)
    Labels: slot (today, tomorrow)
  - plans_rejected_stale_total: Plans rejected as stale (counter)
  - plan_parse_errors_total: Documents that failed to parse (counter)

Backups:
  - backup_writes_total / backup_reads_total: Backup store traffic (counter)
    Labels: slot, status

Publishing:
  - publish_attempts_total: Render-and-publish attempts (counter)
    Labels: trigger (immediate, deferred), status
  - publish_duration_seconds: Publish latency (histogram)

Scheduler:
  - deferred_timer_armed: Armed deferred-publish timer (gauge, 0 or 1)
  - deferred_timer_cancellations_total: Timers canceled by re-arming (counter)
  - rollovers_total: Midnight rollovers performed (counter)

HTTP:
  - http_requests_total: Requests (counter); labels: method, endpoint, status_code
  - http_request_duration_seconds: Latency (histogram); labels: method, endpoint

Circuit Breaker:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge); label: name
  - circuit_breaker_transitions_total, circuit_breaker_requests_total
*/
package metrics
