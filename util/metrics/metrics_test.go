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
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/algorand/avm-debugger/test/partitiontest"
)

func TestMetricCounter(t *testing.T) {
	partitiontest.PartitionTest(t)

	counter := MakeCounter(MetricName{Name: "metric_test_counter", Description: "this is the metric test for counter object"})
	defer counter.Deregister(nil)

	for i := 0; i < 20; i++ {
		counter.Inc()
	}
	counter.AddUint64(5)
	require.Equal(t, float64(25), testutil.ToFloat64(counter.Collector()))
}

func TestMetricGauge(t *testing.T) {
	partitiontest.PartitionTest(t)

	gauge := MakeGauge(MetricName{Name: "metric_test_gauge", Description: "this is the metric test for gauge object"})
	defer gauge.Deregister(nil)

	gauge.Set(10)
	gauge.Add(-3)
	require.Equal(t, float64(7), testutil.ToFloat64(gauge.Collector()))
}

func TestTagCounter(t *testing.T) {
	partitiontest.PartitionTest(t)

	tc := NewTagCounter(MetricName{Name: "metric_test_tags", Description: "tagged"}, "kind")
	defer DefaultRegistry().Deregister(tc.Collector())

	tc.Inc("a")
	tc.Add("a", 2)
	tc.Inc("b")
	require.Equal(t, 2, testutil.CollectAndCount(tc.Collector()))
}

func TestRegistryHandler(t *testing.T) {
	partitiontest.PartitionTest(t)

	reg := MakeRegistry()
	counter := MakeCounter(MetricName{Name: "metric_test_handler", Description: "served"})
	counter.Deregister(nil)
	counter.Register(reg)
	// registering twice is harmless
	counter.Register(reg)
	counter.Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "metric_test_handler 1"), string(body))
}
