// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TagCounter holds a set of counters distinguished by one tag label.
type TagCounter struct {
	vec *prometheus.CounterVec
}

// NewTagCounter makes a counter under name, one series per value of the
// label tagName.
func NewTagCounter(metric MetricName, tagName string) *TagCounter {
	tc := &TagCounter{vec: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metric.Name,
		Help: metric.Description,
	}, []string{tagName})}
	DefaultRegistry().Register(tc.vec)
	return tc
}

// Add t[tag] += val
func (tc *TagCounter) Add(tag string, val uint64) {
	tc.vec.WithLabelValues(tag).Add(float64(val))
}

// Inc t[tag] += 1
func (tc *TagCounter) Inc(tag string) {
	tc.vec.WithLabelValues(tag).Inc()
}

// Collector returns the underlying collector
func (tc *TagCounter) Collector() prometheus.Collector {
	return tc.vec
}
