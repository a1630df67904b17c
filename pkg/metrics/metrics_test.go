package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should carry the options", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})

			Convey("And metric names should use the prefix", func() {
				manager.diagnosticsSubmitted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_namespace_test_subsystem_test_submitted_total")
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "cxdiag")
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording diagnostic submissions", func() {
			before := testutil.ToFloat64(globalManager.diagnosticsSubmitted)
			RecordDiagnosticSubmitted(3.5)
			RecordDiagnosticSubmitted(4.0)

			Convey("Then the counter increases", func() {
				So(testutil.ToFloat64(globalManager.diagnosticsSubmitted), ShouldEqual, before+2)
			})
		})

		Convey("When recording recalculation outcomes", func() {
			beforeOK := testutil.ToFloat64(globalManager.recalculations.WithLabelValues(OutcomeSuccess))
			beforeEmpty := testutil.ToFloat64(globalManager.recalculations.WithLabelValues(OutcomeNoCorpus))
			RecordRecalculation(OutcomeSuccess, 12, 6)
			RecordRecalculation(OutcomeNoCorpus, 1, 0)

			Convey("Then each outcome is counted separately", func() {
				So(testutil.ToFloat64(globalManager.recalculations.WithLabelValues(OutcomeSuccess)), ShouldEqual, beforeOK+1)
				So(testutil.ToFloat64(globalManager.recalculations.WithLabelValues(OutcomeNoCorpus)), ShouldEqual, beforeEmpty+1)
			})

			Convey("And only success updates the dimensions gauge", func() {
				So(testutil.ToFloat64(globalManager.dimensionsUpdated), ShouldEqual, 6.0)
			})
		})

		Convey("When recording store failures", func() {
			before := testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("upsert_dimension"))
			RecordStoreOperation("upsert_dimension", 2, nil)
			RecordStoreOperation("upsert_dimension", 3, errors.New("conn reset"))

			Convey("Then only the failure is counted", func() {
				So(testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("upsert_dimension")), ShouldEqual, before+1)
			})
		})

		Convey("When recording the remaining gauges and counters", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordDiagnosticCompleted()
					RecordDiagnosticDeleted()
					UpdateTotalDiagnostics(10)
					RecordTriggerEnqueued()
					RecordTriggerCoalesced()
					UpdateTriggerQueueSize(1)
					RecordHTTPRequest("benchmark", "GET", "200")
					RecordHTTPRequestDuration("benchmark", "GET", "200", 4)
					RecordErrorByEndpoint("diagnostic", "POST", "client_error")
					RecordErrorByType("client_error", "medium")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(12)
				}, ShouldNotPanic)
				So(testutil.ToFloat64(globalManager.totalDiagnostics), ShouldEqual, 10.0)
			})
		})

		Convey("Then the registry is the custom one", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}
