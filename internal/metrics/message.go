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
	// PacketsProcessed tracks packets handled by Receive, by (type,
	// context) and outcome.
	PacketsProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packets",
			Name:      "processed_total",
			Help:      "Total number of Link packets processed",
		},
		[]string{"context", "status"}, // data/request/response/..., delivered/dropped
	)

	// InterfaceMismatchDrops tracks packets dropped by interface
	// pinning (§3 invariant 4).
	InterfaceMismatchDrops = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packets",
			Name:      "interface_mismatch_drops_total",
			Help:      "Total number of packets dropped due to interface pinning",
		},
	)

	// DuplicateResourceParts tracks resource parts rejected by
	// part-hash dedup.
	DuplicateResourceParts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packets",
			Name:      "duplicate_resource_parts_total",
			Help:      "Total number of duplicate resource parts rejected",
		},
		[]string{"direction"}, // incoming, outgoing
	)

	// PacketProcessingDuration tracks packet processing duration
	PacketProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "packets",
			Name:      "processing_duration_seconds",
			Help:      "Packet processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~205ms
		},
	)

	// PacketSize tracks packet payload sizes
	PacketSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "packets",
			Name:      "size_bytes",
			Help:      "Packet payload size in bytes",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10), // 16B to 4MB
		},
	)
)
