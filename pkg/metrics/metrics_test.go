package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "breedquiz")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.name("x"), ShouldEqual, "test_x")
				So(manager.RefreshInterval(), ShouldEqual, 10*time.Second)
			})
		})

		Convey("When the refresh interval is not positive", func() {
			manager := NewManager(
				WithRefreshInterval(2*time.Second),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the last positive value is kept", func() {
				So(manager.RefreshInterval(), ShouldEqual, 2*time.Second)
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording catalog metrics", func() {
			before := testutil.ToFloat64(globalManager.catalogFetches.WithLabelValues(OutcomeSuccess))
			RecordCatalogFetch(OutcomeSuccess)
			RecordCatalogCacheHit()
			UpdateCatalogSize(3)

			Convey("Then the counters should move", func() {
				So(testutil.ToFloat64(globalManager.catalogFetches.WithLabelValues(OutcomeSuccess)), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.catalogSize), ShouldEqual, float64(3))
			})
		})

		Convey("When recording round metrics", func() {
			before := testutil.ToFloat64(globalManager.roundsSuperseded)
			So(func() {
				RecordRoundStarted()
				RecordRoundCompleted(OutcomeSuccess, 120)
				RecordRoundCompleted(OutcomeError, 30)
				RecordRoundSuperseded()
				RecordGuess(true)
				RecordGuess(false)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.roundsSuperseded), ShouldEqual, before+1)
		})

		Convey("When recording session and HTTP metrics", func() {
			So(func() {
				UpdateSessionsActive(2)
				RecordSessionCreated()
				RecordSessionEvicted()
				AddSubscribers(1)
				AddSubscribers(-1)
				RecordHTTPRequest("sessions", "POST", "201")
				RecordHTTPRequestDuration("sessions", "POST", "201", 4)
				RecordUpstreamRequest("catalog", OutcomeSuccess, 80)
				RecordErrorByComponent("dogapi", "network")
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.sessionsActive), ShouldEqual, float64(2))
		})

		Convey("When recording system metrics", func() {
			UpdateSystemMemoryUsage(1024 * 1024 * 100)
			UpdateSystemGoroutineCount(42)
			RecordSystemGCPauseTime(1.5)

			So(testutil.ToFloat64(globalManager.systemMemoryUsage), ShouldEqual, float64(1024*1024*100))
			So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, float64(42))
			So(testutil.ToFloat64(globalManager.systemGCPauseTime), ShouldEqual, 1.5)
		})
	})
}

func TestMetricsHandler(t *testing.T) {
	Convey("Given the metrics handler", t, func() {
		RecordRoundStarted()
		req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
		w := httptest.NewRecorder()
		Handler().ServeHTTP(w, req)

		Convey("Then it should expose the quiz metrics", func() {
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "breedquiz_quiz_rounds_started_total")
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
