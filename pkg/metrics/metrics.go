// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics counts export events on a private prometheus registry and
// writes them as a node exporter textfile at the end of a run.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/transfer"
)

// Transfer results
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// 📈 Metrics implements run.Observer
type Metrics struct {
	registry *prometheus.Registry

	recordsExported  *prometheus.CounterVec
	duplicates       *prometheus.CounterVec
	failures         *prometheus.CounterVec
	filesTransferred *prometheus.CounterVec
	runDuration      prometheus.Gauge
}

var _ run.Observer = (*Metrics)(nil)

// 🏭 New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		recordsExported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repoexport_records_exported_total",
				Help: "Records written, by work type or category",
			},
			[]string{"work_type"},
		),

		duplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repoexport_duplicates_total",
				Help: "Index results suppressed as already seen",
			},
			[]string{"work_type"},
		),

		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repoexport_failures_total",
				Help: "Recorded failures, by kind",
			},
			[]string{"kind"},
		),

		filesTransferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repoexport_files_transferred_total",
				Help: "Original files copied, by result",
			},
			[]string{"result"},
		),

		runDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "repoexport_run_duration_seconds",
				Help: "Wall time of the last run",
			},
		),
	}

	m.registry.MustRegister(m.recordsExported, m.duplicates, m.failures, m.filesTransferred, m.runDuration)

	// kinds show up as zero before anything fails
	for _, k := range run.Kinds {
		m.failures.WithLabelValues(string(k))
	}
	return m
}

// Exported counts a written record. Transferred files are counted apart.
func (m *Metrics) Exported(section string) {
	if section == transfer.Section {
		m.filesTransferred.WithLabelValues(ResultOK).Inc()
		return
	}
	m.recordsExported.WithLabelValues(section).Inc()
}

// Duplicate counts a suppressed id
func (m *Metrics) Duplicate(section string) {
	m.duplicates.WithLabelValues(section).Inc()
}

// Failed counts a failure
func (m *Metrics) Failed(kind run.FailureKind) {
	m.failures.WithLabelValues(string(kind)).Inc()
	if kind == run.KindTransfer {
		m.filesTransferred.WithLabelValues(ResultFailed).Inc()
	}
}

// ObserveRun records how long a run took
func (m *Metrics) ObserveRun(d time.Duration) {
	m.runDuration.Set(d.Seconds())
}

// Registry exposes the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// 💾 WriteFile writes every metric in text exposition format
func (m *Metrics) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Errorf("writing metrics: %w", err)
	}
	return nil
}
