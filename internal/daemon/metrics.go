// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package daemon

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics is an additive Prometheus mirror of the Daemon's own cache_stats/
// events tables (spec §3); it exists for operators who scrape `/metrics`
// rather than query the SQLite store directly, and is never the source of
// truth. Registered on its own registry so repeated test-local Servers don't
// collide on the global default registerer.
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	workersInUse    prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtk_mem_requests_total",
			Help: "Total number of Daemon API requests by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rtk_mem_request_duration_seconds",
			Help:    "Daemon API request duration in seconds by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		workersInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtk_mem_workers_in_use",
			Help: "Number of worker-pool slots currently occupied by an in-flight request.",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.workersInUse)
	return m
}

func (m *metrics) observe(endpoint string, status int, start time.Time) {
	m.requestsTotal.WithLabelValues(endpoint, statusLabel(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func statusLabel(status int) string {
	switch status {
	case 200:
		return "200"
	case 400:
		return "400"
	case 409:
		return "409"
	case 503:
		return "503"
	default:
		return "500"
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
