package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	service "github.com/okian/cxdiag/internal/app"
	repository "github.com/okian/cxdiag/internal/adapters/repository"
	"github.com/okian/cxdiag/internal/domain/benchmark"
	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "cxdiag.db")
}

func startService(t *testing.T, opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithDatabase(repository.DriverSQLite, dbPath(t)),
		service.WithFullQuestionnaireItemCount(3),
	}, opts...)
	svc := service.New(opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	So(svc.Start(ctx), ShouldBeNil)
	return svc
}

// waitForBenchmark polls until the snapshot has at least one dimension.
func waitForBenchmark(ctx context.Context, svc *service.Service) service.BenchmarkView {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, err := svc.Benchmark(ctx)
		if err == nil && len(view.Dimensions) > 0 {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	return service.BenchmarkView{}
}

// failingStore wraps a base store and fails the chosen operation.
type failingStore struct {
	repository.Store
	failUpsertDimension bool
	failList            bool
}

func (f *failingStore) UpsertDimensionSnapshot(ctx context.Context, s model.DimensionSnapshot) error {
	if f.failUpsertDimension {
		return errors.New("disk full")
	}
	return f.Store.UpsertDimensionSnapshot(ctx, s)
}

func (f *failingStore) ListDiagnostics(ctx context.Context, limit, offset int) ([]model.Diagnostic, error) {
	if f.failList {
		return nil, errors.New("connection refused")
	}
	return f.Store.ListDiagnostics(ctx, limit, offset)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithDatabase(repository.DriverSQLite, dbPath(t)))
		ctx := context.Background()

		Convey("When it has not been started", func() {
			_, err := svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 3})

			Convey("Then operations report ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.PercentileRank(3), ShouldEqual, 50.0)
			})
		})

		Convey("When started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.GetStats()["indexed_scores"], ShouldEqual, 0)
			svc.Stop()

			Convey("Then it is marked as stopped and Stop is idempotent", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})

		Convey("When the driver is unknown", func() {
			bad := service.New(service.WithDatabase("oracle", "x"))
			err := bad.Start(ctx)

			Convey("Then Start fails", func() {
				So(errors.Is(err, repository.ErrInvalidDriver), ShouldBeTrue)
			})
		})
	})
}

func TestService_SaveProgress(t *testing.T) {
	Convey("Given a started service with a three item questionnaire", t, func() {
		svc := startService(t, service.WithAutoRecalculate(false))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When the tenant or answers are missing", func() {
			_, errTenant := svc.SaveProgress(ctx, "  ", model.ResponseSet{"1.1": 3})
			_, errEmpty := svc.SaveProgress(ctx, "acme", model.ResponseSet{})

			Convey("Then the input is rejected", func() {
				So(errors.Is(errTenant, service.ErrInvalidTenant), ShouldBeTrue)
				So(errors.Is(errEmpty, service.ErrEmptyResponses), ShouldBeTrue)
			})
		})

		Convey("When saving a partial questionnaire", func() {
			res, err := svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 4, "2.1": 3})

			Convey("Then it is scored but not complete", func() {
				So(err, ShouldBeNil)
				So(res.Answered, ShouldEqual, 2)
				So(res.Score, ShouldEqual, 3.5)
				So(res.Level, ShouldEqual, model.LevelAvanzado)
				So(res.Completed, ShouldBeFalse)
				So(res.Recalculation, ShouldEqual, service.RecalcNotRequired)
			})

			Convey("And a later save replaces it", func() {
				_, err := svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 1})
				So(err, ShouldBeNil)

				d, err := svc.GetDiagnostic(ctx, "acme")
				So(err, ShouldBeNil)
				So(d.Answered(), ShouldEqual, 1)
				So(d.Score, ShouldEqual, 1.0)

				page, err := svc.ListDiagnostics(ctx, 1, 10)
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
			})
		})

		Convey("When saving a complete questionnaire with auto recalculation off", func() {
			res, err := svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 4, "1.2": 4, "2.1": 4})

			Convey("Then it is complete and no trigger is queued", func() {
				So(err, ShouldBeNil)
				So(res.Completed, ShouldBeTrue)
				So(res.Recalculation, ShouldEqual, service.RecalcDisabled)
			})
		})

		Convey("When reading an unknown tenant", func() {
			_, err := svc.GetDiagnostic(ctx, "ghost")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_CompletionTrigger(t *testing.T) {
	Convey("Given a started service with auto recalculation", t, func() {
		svc := startService(t)
		defer svc.Stop()
		ctx := context.Background()

		Convey("When a tenant completes the questionnaire", func() {
			res, err := svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 4, "1.2": 2, "2.1": 5})
			So(err, ShouldBeNil)

			Convey("Then a recalculation is queued and the snapshot appears", func() {
				So(res.Completed, ShouldBeTrue)
				So([]string{service.RecalcEnqueued, service.RecalcCoalesced}, ShouldContain, res.Recalculation)

				view := waitForBenchmark(ctx, svc)
				So(view.Dimensions, ShouldHaveLength, 2)
				So(view.Dimensions[0].Dimension, ShouldEqual, "estrategia_cx")
				So(view.Dimensions[0].Average, ShouldEqual, 3.0)
				So(view.Dimensions[1].Dimension, ShouldEqual, "arquitectura_cx")
				So(view.Dimensions[1].Average, ShouldEqual, 5.0)
				So(view.Overall, ShouldNotBeNil)
				So(view.Overall.Count, ShouldEqual, 1)
			})
		})
	})
}

func TestService_BenchmarkAndCompare(t *testing.T) {
	Convey("Given a started service with two diagnostics", t, func() {
		svc := startService(t, service.WithAutoRecalculate(false))
		defer svc.Stop()
		ctx := context.Background()

		_, err := svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 4, "2.1": 2})
		So(err, ShouldBeNil)
		_, err = svc.SaveProgress(ctx, "globex", model.ResponseSet{"1.1": 1, "2.1": 1})
		So(err, ShouldBeNil)

		Convey("When comparing before any recalculation", func() {
			_, err := svc.Compare(ctx, "acme")
			view, viewErr := svc.Benchmark(ctx)

			Convey("Then there is no benchmark yet", func() {
				So(errors.Is(err, service.ErrNoBenchmark), ShouldBeTrue)
				So(viewErr, ShouldBeNil)
				So(view.Dimensions, ShouldBeEmpty)
				So(view.Overall, ShouldBeNil)
			})
		})

		Convey("When an administrator recalculates", func() {
			summary, err := svc.Recalculate(ctx)
			So(err, ShouldBeNil)

			Convey("Then the summary reports every diagnostic", func() {
				So(summary.Success, ShouldBeTrue)
				So(summary.TotalDiagnostics, ShouldEqual, 2)
				So(summary.DimensionsUpdated, ShouldEqual, 2)
				So(summary.Message, ShouldEqual, "Benchmark recalculado con 2 diagnósticos")
				So(summary.Reason, ShouldEqual, model.TriggerAdmin)
			})

			Convey("And the snapshot holds the dimension means", func() {
				view, err := svc.Benchmark(ctx)
				So(err, ShouldBeNil)
				So(view.Dimensions, ShouldHaveLength, 2)
				So(view.Dimensions[0].Average, ShouldEqual, 2.5)
				So(view.Dimensions[0].Min, ShouldEqual, 1.0)
				So(view.Dimensions[0].Max, ShouldEqual, 4.0)
				So(view.Dimensions[0].Count, ShouldEqual, 2)
				So(view.Dimensions[0].Title, ShouldEqual, "Estrategia CX")
				So(view.Dimensions[1].Average, ShouldEqual, 1.5)
				So(view.Overall.Average, ShouldEqual, 2.0)
			})

			Convey("And the comparison positions the tenant", func() {
				cmp, err := svc.Compare(ctx, "acme")
				So(err, ShouldBeNil)
				So(cmp.OverallScore, ShouldEqual, 3.0)
				So(cmp.OverallVsAverage, ShouldEqual, 1.0)
				So(cmp.PercentileRank, ShouldEqual, 50.0)
				So(cmp.Dimensions, ShouldHaveLength, 2)
				So(cmp.Dimensions[0], ShouldResemble, benchmark.DimensionComparison{
					Dimension:  "estrategia_cx",
					Title:      "Estrategia CX",
					Score:      4,
					Average:    2.5,
					Difference: 1.5,
				})

				low, err := svc.Compare(ctx, "globex")
				So(err, ShouldBeNil)
				So(low.PercentileRank, ShouldEqual, 0.0)
			})

			Convey("And the stats carry the last run", func() {
				stats, err := svc.Stats(ctx)
				So(err, ShouldBeNil)
				So(stats.TotalDiagnostics, ShouldEqual, 2)
				So(stats.CompletedDiagnostics, ShouldEqual, 0)
				So(stats.CompletionRate, ShouldEqual, 0.0)
				So(stats.LastRecalculation, ShouldNotBeNil)
				So(stats.LastRecalculation.Success, ShouldBeTrue)
			})
		})

		Convey("When comparing an unknown tenant", func() {
			_, err := svc.Compare(ctx, "ghost")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_RecalculateEmptyCorpus(t *testing.T) {
	Convey("Given a started service without diagnostics", t, func() {
		svc := startService(t)
		defer svc.Stop()

		Convey("When an administrator recalculates", func() {
			summary, err := svc.Recalculate(context.Background())

			Convey("Then the run is an explicit no-op", func() {
				So(err, ShouldBeNil)
				So(summary.Success, ShouldBeFalse)
				So(summary.TotalDiagnostics, ShouldEqual, 0)
				So(summary.Message, ShouldEqual, "No hay diagnósticos para calcular benchmark")
			})
		})
	})
}

func TestService_EmptyCorpusKeepsSnapshot(t *testing.T) {
	Convey("Given a snapshot built from stored diagnostics", t, func() {
		svc := startService(t, service.WithAutoRecalculate(false))
		defer svc.Stop()
		ctx := context.Background()

		for _, tenant := range []string{"acme", "globex"} {
			_, err := svc.SaveProgress(ctx, tenant, model.ResponseSet{"1.1": 4, "2.1": 2, "3.1": 3})
			So(err, ShouldBeNil)
		}
		first, err := svc.Recalculate(ctx)
		So(err, ShouldBeNil)
		So(first.Success, ShouldBeTrue)
		before, err := svc.Benchmark(ctx)
		So(err, ShouldBeNil)
		So(before.Dimensions, ShouldHaveLength, 3)

		Convey("When every diagnostic is deleted and the benchmark recalculated", func() {
			So(svc.DeleteDiagnostic(ctx, "acme"), ShouldBeNil)
			So(svc.DeleteDiagnostic(ctx, "globex"), ShouldBeNil)
			summary, err := svc.Recalculate(ctx)
			So(err, ShouldBeNil)

			Convey("Then the run is a no-op and the old rows survive", func() {
				So(summary.Success, ShouldBeFalse)
				So(summary.TotalDiagnostics, ShouldEqual, 0)

				after, err := svc.Benchmark(ctx)
				So(err, ShouldBeNil)
				So(after.Dimensions, ShouldHaveLength, 3)
				for i, row := range after.Dimensions {
					So(row.Count, ShouldEqual, 2)
					So(row.Average, ShouldEqual, before.Dimensions[i].Average)
					So(row.UpdatedAt.Equal(before.Dimensions[i].UpdatedAt), ShouldBeTrue)
				}
				So(after.Overall, ShouldNotBeNil)
				So(after.Overall.Count, ShouldEqual, 2)
			})
		})
	})
}

func TestService_ConcurrentSavesKeepIndexInStep(t *testing.T) {
	Convey("Given a started service with a reference tenant at 3", t, func() {
		svc := startService(t, service.WithAutoRecalculate(false))
		defer svc.Stop()
		ctx := context.Background()
		_, err := svc.SaveProgress(ctx, "ref", model.ResponseSet{"1.1": 3})
		So(err, ShouldBeNil)

		Convey("When one tenant saves alternating scores concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				score := 1.0
				if i%2 == 0 {
					score = 5
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": score})
				}()
			}
			wg.Wait()

			Convey("Then the ranking index agrees with the stored score", func() {
				stored, err := svc.GetDiagnostic(ctx, "acme")
				So(err, ShouldBeNil)
				want := 0.0
				if stored.Score < 3 {
					want = 50
				}
				So(svc.PercentileRank(3), ShouldEqual, want)
				So(svc.GetStats()["indexed_scores"], ShouldEqual, 2)
			})
		})
	})
}

func TestService_ListAndDelete(t *testing.T) {
	Convey("Given a started service with five diagnostics", t, func() {
		svc := startService(t, service.WithAutoRecalculate(false), service.WithMaxPageSize(3))
		defer svc.Stop()
		ctx := context.Background()

		for i := 1; i <= 5; i++ {
			responses := model.ResponseSet{"1.1": float64(i)}
			if i%2 == 0 {
				responses["1.2"] = 5
				responses["2.1"] = 5
			}
			_, err := svc.SaveProgress(ctx, fmt.Sprintf("tenant-%d", i), responses)
			So(err, ShouldBeNil)
		}

		Convey("When listing with an oversized page", func() {
			page, err := svc.ListDiagnostics(ctx, 0, 50)

			Convey("Then the page is clamped", func() {
				So(err, ShouldBeNil)
				So(page.Page, ShouldEqual, 1)
				So(page.PerPage, ShouldEqual, 3)
				So(page.Total, ShouldEqual, 5)
				So(page.Pages, ShouldEqual, 2)
				So(page.Items, ShouldHaveLength, 3)
			})

			Convey("And the second page holds the rest", func() {
				next, err := svc.ListDiagnostics(ctx, 2, 3)
				So(err, ShouldBeNil)
				So(next.Items, ShouldHaveLength, 2)
			})
		})

		Convey("When asking for a page whose offset would overflow", func() {
			page, err := svc.ListDiagnostics(ctx, math.MaxInt, 3)

			Convey("Then the page is empty rather than wrapped to the first one", func() {
				So(err, ShouldBeNil)
				So(page.Page, ShouldEqual, math.MaxInt)
				So(page.Total, ShouldEqual, 5)
				So(page.Items, ShouldBeEmpty)
			})
		})

		Convey("When reading the stats", func() {
			stats, err := svc.Stats(ctx)

			Convey("Then completion is counted against the threshold", func() {
				So(err, ShouldBeNil)
				So(stats.TotalDiagnostics, ShouldEqual, 5)
				So(stats.CompletedDiagnostics, ShouldEqual, 2)
				So(stats.CompletionRate, ShouldEqual, 40.0)
				So(stats.LastRecalculation, ShouldBeNil)
			})
		})

		Convey("When deleting a diagnostic", func() {
			So(svc.DeleteDiagnostic(ctx, "tenant-3"), ShouldBeNil)

			Convey("Then it is gone from the store and the index", func() {
				_, err := svc.GetDiagnostic(ctx, "tenant-3")
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				So(svc.GetStats()["indexed_scores"], ShouldEqual, 4)
			})

			Convey("And deleting it again reports ErrNotFound", func() {
				So(errors.Is(svc.DeleteDiagnostic(ctx, "tenant-3"), service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_RestartRebuildsIndex(t *testing.T) {
	Convey("Given diagnostics stored by a previous run", t, func() {
		path := dbPath(t)
		ctx := context.Background()

		first := service.New(service.WithDatabase(repository.DriverSQLite, path))
		So(first.Start(ctx), ShouldBeNil)
		for i, score := range []float64{1, 2, 3, 4} {
			_, err := first.SaveProgress(ctx, fmt.Sprintf("t%d", i), model.ResponseSet{"1.1": score})
			So(err, ShouldBeNil)
		}
		first.Stop()

		Convey("When a new service starts on the same database", func() {
			second := service.New(service.WithDatabase(repository.DriverSQLite, path))
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			Convey("Then the percentile ranks come from the stored scores", func() {
				So(second.GetStats()["indexed_scores"], ShouldEqual, 4)
				So(second.PercentileRank(3), ShouldEqual, 50.0)
				So(second.PercentileRank(0.5), ShouldEqual, 0.0)
				So(second.PercentileRank(5), ShouldEqual, 100.0)
			})
		})
	})
}

func TestService_RecalculateOnStart(t *testing.T) {
	Convey("Given partial diagnostics and no snapshot yet", t, func() {
		path := dbPath(t)
		ctx := context.Background()

		first := service.New(service.WithDatabase(repository.DriverSQLite, path))
		So(first.Start(ctx), ShouldBeNil)
		_, err := first.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 2, "1.2": 4})
		So(err, ShouldBeNil)
		first.Stop()

		Convey("When a service starts with the startup trigger enabled", func() {
			second := service.New(
				service.WithDatabase(repository.DriverSQLite, path),
				service.WithRecalculateOnStart(true),
			)
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			Convey("Then the benchmark is built without any admin call", func() {
				view := waitForBenchmark(ctx, second)
				So(view.Dimensions, ShouldHaveLength, 1)
				So(view.Dimensions[0].Average, ShouldEqual, 3.0)
				So(view.Dimensions[0].Count, ShouldEqual, 1)
			})
		})
	})
}

func TestService_StoreFailures(t *testing.T) {
	Convey("Given a service over a failing store", t, func() {
		ctx := context.Background()
		base, err := repository.Open(ctx, repository.DriverSQLite, dbPath(t))
		So(err, ShouldBeNil)
		defer base.Close()

		store := &failingStore{Store: base}
		svc := service.New(service.WithStore(store), service.WithAutoRecalculate(false))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, err = svc.SaveProgress(ctx, "acme", model.ResponseSet{"1.1": 4, "2.1": 3})
		So(err, ShouldBeNil)

		Convey("When a dimension upsert fails during recalculation", func() {
			store.failUpsertDimension = true
			summary, err := svc.Recalculate(ctx)

			Convey("Then the run is reported as failed with the cause", func() {
				So(errors.Is(err, benchmark.ErrPersistence), ShouldBeTrue)
				So(summary.Success, ShouldBeFalse)
				So(summary.DimensionsUpdated, ShouldEqual, 0)
				So(summary.Message, ShouldContainSubstring, "disk full")
			})
		})

		Convey("When listing fails", func() {
			store.failList = true
			_, err := svc.ListDiagnostics(ctx, 1, 10)

			Convey("Then the error is propagated", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "connection refused")
			})
		})

		Convey("When the service stops", func() {
			svc.Stop()

			Convey("Then the injected store stays open", func() {
				_, err := base.GetDiagnostic(ctx, "acme")
				So(err, ShouldBeNil)
			})
		})
	})
}
