package loadgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cxdiag/internal/adapters/http/api"
	repository "github.com/okian/cxdiag/internal/adapters/repository"
	service "github.com/okian/cxdiag/internal/app"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:           baseURL,
		Tenants:           40,
		CompleteShare:     0.5,
		ItemsPerDimension: 3,
		Workers:           4,
		Timeout:           5 * time.Second,
		TenantHeader:      "X-Tenant-ID",
		AdminToken:        "s3cret",
		Seed:              42,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		cfg := testConfig("http://unused")
		catalog := questionnaire.Default()

		first, err := generate(context.Background(), cfg, catalog, &Stats{})
		So(err, ShouldBeNil)
		stats := &Stats{}
		second, err := generate(context.Background(), cfg, catalog, stats)
		So(err, ShouldBeNil)

		Convey("Then every tenant has answers on known dimensions", func() {
			So(first, ShouldHaveLength, cfg.Tenants)
			for _, s := range first {
				So(len(s.Responses), ShouldBeGreaterThan, 0)
				for key, v := range s.Responses {
					_, ok := catalog.Resolve(key)
					So(ok, ShouldBeTrue)
					So(v, ShouldBeBetweenOrEqual, float64(minAnswer), float64(maxAnswer))
				}
			}
		})

		Convey("And the same seed yields the same answers", func() {
			for i := range first {
				So(second[i].Responses, ShouldResemble, first[i].Responses)
			}
		})

		Convey("And complete tenants answer every item", func() {
			full := len(catalog.Dimensions()) * cfg.ItemsPerDimension
			complete := 0
			for _, s := range second {
				if len(s.Responses) == full {
					complete++
				}
			}
			So(complete, ShouldBeGreaterThanOrEqualTo, stats.Complete)
			So(stats.Generated, ShouldEqual, cfg.Tenants)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given invalid configurations", t, func() {
		for _, mutate := range []func(*Config){
			func(c *Config) { c.BaseURL = "" },
			func(c *Config) { c.Tenants = 0 },
			func(c *Config) { c.CompleteShare = 1.5 },
			func(c *Config) { c.Workers = 0 },
			func(c *Config) { c.ItemsPerDimension = 0 },
			func(c *Config) { c.TenantHeader = "" },
		} {
			cfg := testConfig("http://unused")
			mutate(cfg)
			_, err := Run(context.Background(), cfg)
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		}
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a local expectation", t, func() {
		catalog := questionnaire.Default()
		subs, err := generate(context.Background(), testConfig("http://unused"), catalog, &Stats{})
		So(err, ShouldBeNil)
		want, err := expected(catalog, subs)
		So(err, ShouldBeNil)

		got := Benchmark{}
		for _, d := range want.Dimensions {
			got.Dimensions = append(got.Dimensions, Dimension{Dimension: d.Dimension.Name, Average: d.Average, Count: d.Count})
		}

		Convey("When the server agrees", func() {
			stats := &Stats{}
			err := verify(context.Background(), &Config{}, want, got, stats)

			Convey("Then every dimension is verified", func() {
				So(err, ShouldBeNil)
				So(stats.Verified, ShouldEqual, len(want.Dimensions))
			})
		})

		Convey("When a count differs", func() {
			got.Dimensions[0].Count++
			stats := &Stats{}
			err := verify(context.Background(), &Config{Verbose: true}, want, got, stats)

			Convey("Then the mismatch is reported", func() {
				So(errors.Is(err, ErrMismatch), ShouldBeTrue)
				So(stats.Mismatches, ShouldEqual, 1)
			})
		})
	})
}

func TestRunAgainstServer(t *testing.T) {
	Convey("Given a cxdiag server on an empty database", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithDatabase(repository.DriverSQLite, filepath.Join(t.TempDir(), "seed.db")),
			service.WithFullQuestionnaireItemCount(len(questionnaire.Default().Dimensions())*3),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc, api.WithAdminToken("s3cret")).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When the seed tool runs", func() {
			cfg := testConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "subs.json")
			stats, err := Run(ctx, cfg)

			Convey("Then the benchmark matches the local computation", func() {
				So(err, ShouldBeNil)
				So(stats.Successful, ShouldEqual, cfg.Tenants)
				So(stats.Mismatches, ShouldEqual, 0)
				So(stats.Verified, ShouldBeGreaterThan, 0)
				So(stats.Recalculate.Success, ShouldBeTrue)
				So(stats.Recalculate.TotalDiagnostics, ShouldEqual, cfg.Tenants)
			})

			Convey("And the submissions are written to disk", func() {
				data, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				So(strings.Count(string(data), `"tenant_id"`), ShouldEqual, cfg.Tenants)
			})
		})

		Convey("When the admin token is wrong", func() {
			cfg := testConfig(srv.URL)
			cfg.AdminToken = "nope"
			_, err := Run(ctx, cfg)

			Convey("Then the recalculation step fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "recalculation")
			})
		})
	})
}
