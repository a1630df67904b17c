package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cxdiag/internal/domain/model"
)

func openTestStore(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "cxdiag.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestOpen(t *testing.T) {
	Convey("Given store drivers", t, func() {
		Convey("When the driver is unknown", func() {
			_, err := Open(context.Background(), "mysql", "dsn")

			Convey("Then Open fails with ErrInvalidDriver", func() {
				So(errors.Is(err, ErrInvalidDriver), ShouldBeTrue)
			})
		})

		Convey("When the sqlite schema already exists", func() {
			path := filepath.Join(t.TempDir(), "twice.db")
			first, err := Open(context.Background(), DriverSQLite, path)
			So(err, ShouldBeNil)
			So(first.Close(), ShouldBeNil)

			second, err := Open(context.Background(), DriverSQLite, path)

			Convey("Then migrating again is a no-op", func() {
				So(err, ShouldBeNil)
				So(second.Driver(), ShouldEqual, DriverSQLite)
				So(second.Close(), ShouldBeNil)
			})
		})
	})
}

func TestRebind(t *testing.T) {
	Convey("Given a query with placeholders", t, func() {
		q := "SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?"

		Convey("Then sqlite keeps question marks", func() {
			So(dialects[DriverSQLite].rebind(q), ShouldEqual, q)
		})

		Convey("Then postgres numbers them", func() {
			So(dialects[DriverPostgres].rebind(q), ShouldEqual, "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3")
		})
	})
}

func TestDiagnostics(t *testing.T) {
	Convey("Given an empty sqlite store", t, func() {
		ctx := context.Background()
		s := openTestStore(t, WithClock(stepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

		Convey("When a tenant saves twice", func() {
			first, err := s.SaveDiagnostic(ctx, model.Diagnostic{
				TenantID:  "acme",
				Responses: model.ResponseSet{"1.1": 2},
				Score:     2,
				Level:     model.LevelBasico,
			})
			So(err, ShouldBeNil)
			second, err := s.SaveDiagnostic(ctx, model.Diagnostic{
				TenantID:  "acme",
				Responses: model.ResponseSet{"1.1": 4, "2.1": 5},
				Score:     4.5,
				Level:     model.LevelOptimizado,
			})
			So(err, ShouldBeNil)

			Convey("Then exactly one record exists and it holds the latest answers", func() {
				n, err := s.CountDiagnostics(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(second.ID, ShouldEqual, first.ID)
				So(second.CompletedAt.After(first.CompletedAt), ShouldBeTrue)

				got, err := s.GetDiagnostic(ctx, "acme")
				So(err, ShouldBeNil)
				So(got.Responses, ShouldResemble, model.ResponseSet{"1.1": 4, "2.1": 5})
				So(got.Score, ShouldEqual, 4.5)
				So(got.Level, ShouldEqual, model.LevelOptimizado)
				So(got.Answered(), ShouldEqual, 2)
			})
		})

		Convey("When reading an unknown tenant", func() {
			_, err := s.GetDiagnostic(ctx, "nobody")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(errors.Is(s.DeleteDiagnostic(ctx, "nobody"), ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When several tenants exist", func() {
			for _, tenant := range []string{"a", "b", "c"} {
				_, err := s.SaveDiagnostic(ctx, model.Diagnostic{
					TenantID:  tenant,
					Responses: model.ResponseSet{"1.1": 3, "1.2": 3},
					Score:     3,
					Level:     model.LevelIntermedio,
				})
				So(err, ShouldBeNil)
			}

			Convey("Then listing is newest first and paginated", func() {
				page, err := s.ListDiagnostics(ctx, 2, 0)
				So(err, ShouldBeNil)
				So(len(page), ShouldEqual, 2)
				So(page[0].TenantID, ShouldEqual, "c")
				So(page[1].TenantID, ShouldEqual, "b")

				rest, err := s.ListDiagnostics(ctx, 2, 2)
				So(err, ShouldBeNil)
				So(len(rest), ShouldEqual, 1)
				So(rest[0].TenantID, ShouldEqual, "a")

				empty, err := s.ListDiagnostics(ctx, 0, 0)
				So(err, ShouldBeNil)
				So(empty, ShouldBeEmpty)
			})

			Convey("Then counts and scores reflect the rows", func() {
				n, err := s.CountAnsweredAtLeast(ctx, 2)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				n, err = s.CountAnsweredAtLeast(ctx, 3)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)

				scores, err := s.ListScores(ctx)
				So(err, ShouldBeNil)
				So(scores, ShouldResemble, map[string]float64{"a": 3, "b": 3, "c": 3})
			})

			Convey("Then deleting removes only that tenant", func() {
				So(s.DeleteDiagnostic(ctx, "b"), ShouldBeNil)
				n, err := s.CountDiagnostics(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})
	})
}

func TestListDiagnosticsWithResponses(t *testing.T) {
	Convey("Given stored diagnostics with and without answers", t, func() {
		ctx := context.Background()
		s := openTestStore(t)

		_, err := s.SaveDiagnostic(ctx, model.Diagnostic{TenantID: "full", Responses: model.ResponseSet{"1.1": 4}, Score: 4, Level: model.LevelAvanzado})
		So(err, ShouldBeNil)
		_, err = s.SaveDiagnostic(ctx, model.Diagnostic{TenantID: "empty", Responses: model.ResponseSet{}, Level: model.LevelInicial})
		So(err, ShouldBeNil)
		_, err = s.db.ExecContext(ctx, `INSERT INTO diagnostics (tenant_id, responses, answered, score, level, completed_at)
			VALUES ('legacy', '{"1.1": "3", "1.2": 5, "note": "n/a", "flag": true}', 2, 4, 'avanzado', 1)`)
		So(err, ShouldBeNil)

		Convey("Then only non-empty sets are returned with numeric answers", func() {
			got, err := s.ListDiagnosticsWithResponses(ctx)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].TenantID, ShouldEqual, "full")
			So(got[1].TenantID, ShouldEqual, "legacy")
			So(got[1].Responses, ShouldResemble, model.ResponseSet{"1.1": 3, "1.2": 5})
		})

		Convey("When a row holds malformed json", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO diagnostics (tenant_id, responses, answered, score, level, completed_at)
				VALUES ('broken', '{not json', 1, 1, 'inicial', 2)`)
			So(err, ShouldBeNil)

			Convey("Then the read fails as a persistence error", func() {
				_, err := s.ListDiagnosticsWithResponses(ctx)
				So(errors.Is(err, ErrPersistence), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "broken")
			})
		})
	})
}

func TestSnapshots(t *testing.T) {
	Convey("Given an empty snapshot", t, func() {
		ctx := context.Background()
		s := openTestStore(t)

		Convey("Then no overall row exists yet", func() {
			_, err := s.GetOverallSnapshot(ctx)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			rows, err := s.ListDimensionSnapshots(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("When a dimension is upserted twice", func() {
			t1 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
			t2 := t1.Add(time.Hour)
			So(s.UpsertDimensionSnapshot(ctx, model.DimensionSnapshot{Dimension: "estrategia_cx", Average: 3, Min: 2, Max: 4, Count: 2, UpdatedAt: t1}), ShouldBeNil)
			So(s.UpsertDimensionSnapshot(ctx, model.DimensionSnapshot{Dimension: "estrategia_cx", Average: 3.5, Min: 3, Max: 4, Count: 3, UpdatedAt: t2}), ShouldBeNil)
			So(s.UpsertDimensionSnapshot(ctx, model.DimensionSnapshot{Dimension: "arquitectura_cx", Average: 1, Min: 1, Max: 1, Count: 1, UpdatedAt: t1}), ShouldBeNil)

			Convey("Then the row is updated in place", func() {
				rows, err := s.ListDimensionSnapshots(ctx)
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[1], ShouldResemble, model.DimensionSnapshot{
					Dimension: "estrategia_cx", Average: 3.5, Min: 3, Max: 4, Count: 3, UpdatedAt: t2,
				})
			})
		})

		Convey("When the overall row is upserted twice", func() {
			So(s.UpsertOverallSnapshot(ctx, model.OverallSnapshot{Average: 2, Min: 1, Max: 3, Count: 2}), ShouldBeNil)
			So(s.UpsertOverallSnapshot(ctx, model.OverallSnapshot{Average: 4, Min: 3, Max: 5, Count: 4}), ShouldBeNil)

			Convey("Then the latest values are kept", func() {
				got, err := s.GetOverallSnapshot(ctx)
				So(err, ShouldBeNil)
				So(got.Average, ShouldEqual, 4.0)
				So(got.Count, ShouldEqual, 4)
				So(got.UpdatedAt.IsZero(), ShouldBeFalse)
			})
		})
	})
}
