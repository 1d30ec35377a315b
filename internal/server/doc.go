// Package server exposes free/busy and availability over HTTP.
//
// NewRouter mounts the JSON API on a chi router together with the health
// probes used by Kubernetes:
//
//	GET /availability?id=u1,u2[&start&end&tz&work_start&work_end]
//	GET /freebusy/{user}
//	GET /healthz, /readyz, /healthz/detailed
//
// Users without a stored credential, or without a primary calendar, answer
// 404. Other upstream failures answer 502 with a generic message and the
// details logged.
//
// MetricsServer serves /metrics on its own address.
package server
