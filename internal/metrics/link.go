// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.


package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinksCreated tracks total Links created, by role and outcome.
	LinksCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "created_total",
			Help:      "Total number of Links created",
		},
		[]string{"role", "status"}, // initiator/responder, success/failure
	)

	// LinksActive tracks currently ACTIVE or STALE Links.
	LinksActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "active",
			Help:      "Number of currently active Links",
		},
	)

	// LinksClosed tracks Links that reached CLOSED, by reason.
	LinksClosed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "closed_total",
			Help:      "Total number of Links closed",
		},
		[]string{"reason"}, // timeout, initiator_closed, destination_closed
	)

	// LinkDuration observes wall-clock lifetime from construction to
	// CLOSED, by close reason.
	LinkDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "duration_seconds",
			Help:      "Link lifetime in seconds, from creation to close",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 18), // 10ms to ~21m
		},
		[]string{"reason"},
	)

	// LinkMessageSize observes encrypted payload sizes sent and
	// received over a Link's DATA channel, by direction.
	LinkMessageSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "message_size_bytes",
			Help:      "Size of DATA payloads carried over a Link",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10), // 16B to ~4MB
		},
		[]string{"direction"}, // inbound, outbound
	)

	// LinkRTT observes measured round-trip time per Link.
	LinkRTT = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "rtt_seconds",
			Help:      "Measured Link round-trip time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
	)

	// LinkKeepalives tracks keep-alive pings sent and their replies.
	LinkKeepalives = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "keepalives_total",
			Help:      "Total number of keep-alive pings exchanged",
		},
		[]string{"direction"}, // sent, replied
	)

	// RequestDuration tracks how long request/response round trips take.
	RequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "request_duration_seconds",
			Help:      "Request/response round-trip duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
		[]string{"status"}, // ready, failed
	)
)
