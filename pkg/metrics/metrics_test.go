package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "oarbit")
			})
		})

		Convey("When creating with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("ratings"),
				WithLatencyBuckets([]float64{1, 5, 10}),
				WithKFactor(24),
				WithConstLabels(map[string]string{"club": "test"}),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "ratings")
				So(manager.latencyBuckets, ShouldResemble, []float64{1, 5, 10})
				So(manager.ratingDeltaBuckets, ShouldResemble, []float64{-24, -18, -12, -6, -3, -1, 0, 1, 3, 6, 12, 18, 24})
				So(manager.constLabels, ShouldResemble, map[string]string{"club": "test"})
			})
		})

		Convey("When the K-factor is small", func() {
			Convey("Then the delta buckets stay strictly increasing", func() {
				So(DeltaBuckets(4), ShouldResemble, []float64{-4, -3, -2, -1, 0, 1, 2, 3, 4})
				So(DeltaBuckets(32)[0], ShouldEqual, -32)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When recording session graph writes", func() {
			m.RecordSessionCreated()
			m.RecordPieceCreated()
			m.RecordPieceCreated()
			m.RecordAssignmentsSet(4)
			m.RecordAssignmentsSet(0)

			Convey("Then counters reflect the writes", func() {
				So(testutil.ToFloat64(m.sessionsCreated), ShouldEqual, 1)
				So(testutil.ToFloat64(m.piecesCreated), ShouldEqual, 2)
				So(testutil.ToFloat64(m.assignmentsSet), ShouldEqual, 4)
			})
		})

		Convey("When recording labelled metrics", func() {
			m.RecordProjection(true)
			m.RecordProjection(false)
			m.RecordProjection(false)
			m.RecordValidationIssue("error", "duplicate_seat")
			m.RecordOrchestratorStep("add_boat", "failed")

			Convey("Then each label set is counted separately", func() {
				So(testutil.ToFloat64(m.projections.WithLabelValues("available")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.projections.WithLabelValues("unavailable")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.validationIssues.WithLabelValues("error", "duplicate_seat")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.orchestratorSteps.WithLabelValues("add_boat", "failed")), ShouldEqual, 1)
			})
		})

		Convey("When the manager is disabled", func() {
			off := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithRecording(false))
			off.RecordSessionCreated()
			off.UpdateRatedAthletes(12)

			Convey("Then nothing is recorded", func() {
				So(testutil.ToFloat64(off.sessionsCreated), ShouldEqual, 0)
				So(testutil.ToFloat64(off.ratedAthletes), ShouldEqual, 0)
			})
		})
	})
}

func TestPackageLevelRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Then package-level recorders do not panic", func() {
			So(func() {
				RecordSessionCreated()
				RecordPieceCreated()
				RecordBoatCreated()
				RecordAssignmentsSet(8)
				RecordSessionProcessed(12.5)
				RecordProcessingRejected()
				RecordComparisons(8)
				ObserveRatingDelta(-16)
				UpdateRatedAthletes(8)
				RecordIndexPublishDuration(0.2)
				RecordStoreLatency("apply_processing", 1.2)
				RecordProjection(true)
				RecordValidationIssue("warning", "incomplete_boat")
				RecordOrchestratorStep("create_session", "ok")
				UpdateQueueDepth(1)
				UpdateQueueCapacity(64)
				RecordQueueRejected()
				RecordWorkerError()
				RecordWorkerLatency(3)
				RecordHTTPRequest("sessions", "POST", "201")
				RecordHTTPRequestDuration("sessions", "POST", "201", 1.5)
				RecordErrorByComponent("repository", "not_found")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
		})

		Convey("And the registry gathers the oarbit families", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["oarbit_seatrace_sessions_created_total"], ShouldBeTrue)
			So(names["oarbit_seatrace_rating_delta"], ShouldBeTrue)
		})
	})
}
