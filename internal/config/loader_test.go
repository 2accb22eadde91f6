package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/okian/geocomp/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DefaultMaxPixels, convey.ShouldEqual, 1e8)
			convey.So(cfg.ExportsBucket, convey.ShouldEqual, "exports")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ArchivesManifest, convey.ShouldEqual, "archives.yaml")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("GEOCOMP_ADDR", ":8080")
			t.Setenv("GEOCOMP_QUEUE_SIZE", "64")
			t.Setenv("GEOCOMP_WORKER_COUNT", "3")
			t.Setenv("GEOCOMP_STORE_USE_SSL", "true")
			t.Setenv("GEOCOMP_DEFAULT_MAX_PIXELS", "1e13")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.StoreUseSSL, convey.ShouldBeTrue)
				convey.So(cfg.DefaultMaxPixels, convey.ShouldEqual, 1e13)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
addr: ":9090"
queue_size: 500
catalog_dir: /data/regions
export_dir: /data/exports
`)
			t.Setenv("GEOCOMP_CONFIG", path)
			t.Setenv("GEOCOMP_QUEUE_SIZE", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 32)
				convey.So(cfg.CatalogDir, convey.ShouldEqual, "/data/regions")
				convey.So(cfg.ExportDir, convey.ShouldEqual, "/data/exports")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			t.Setenv("GEOCOMP_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.LoadFile(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When validation fails", func() {
			t.Setenv("GEOCOMP_WORKER_COUNT", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an invalid config error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "worker_count")
			})
		})

		convey.Convey("When the store endpoint carries a scheme", func() {
			t.Setenv("GEOCOMP_STORE_ENDPOINT", "http://minio:9000")

			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geocomp.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"GEOCOMP_CONFIG", "GEOCOMP_ADDR", "GEOCOMP_QUEUE_SIZE", "GEOCOMP_WORKER_COUNT",
		"GEOCOMP_STORE_USE_SSL", "GEOCOMP_DEFAULT_MAX_PIXELS", "GEOCOMP_STORE_ENDPOINT",
	} {
		_ = os.Unsetenv(key)
	}
}
