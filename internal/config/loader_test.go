package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mcronin4/scrappers-cup/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	Convey("Given a config loader", t, func() {
		ctx := context.Background()

		Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then it should load successfully with defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.StorageDriver, ShouldEqual, "memory")
				So(cfg.RebuildQueueSize, ShouldEqual, 64)
			})
		})

		Convey("When loading config with environment variables", func() {
			_ = os.Setenv("LADDER_ADDR", ":8080")
			_ = os.Setenv("LADDER_STORAGE_DRIVER", "sqlite")
			_ = os.Setenv("LADDER_SQLITE_PATH", "/tmp/cup.db")
			_ = os.Setenv("LADDER_REBUILD_QUEUE_SIZE", "8")
			_ = os.Setenv("LADDER_REBUILD_ON_START", "false")
			_ = os.Setenv("LADDER_JWT_SECRET", "s3cret")
			_ = os.Setenv("LADDER_IDEMPOTENCY_TTL_MS", "60000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then it should override defaults with env vars", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8080")
				So(cfg.StorageDriver, ShouldEqual, "sqlite")
				So(cfg.SQLitePath, ShouldEqual, "/tmp/cup.db")
				So(cfg.RebuildQueueSize, ShouldEqual, 8)
				So(cfg.RebuildOnStart, ShouldBeFalse)
				So(cfg.JWTSecret, ShouldEqual, "s3cret")
				So(cfg.IdempotencyTTL(), ShouldEqual, time.Minute)
			})
		})

		Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
log_format: json
rebuild_timeout_ms: 5000
idempotency_cache_size: 50
otel_endpoint: "localhost:4318"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LADDER_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then it should load from YAML file and keep other defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.LogFormat, ShouldEqual, "json")
				So(cfg.RebuildTimeoutMS, ShouldEqual, 5000)
				So(cfg.IdempotencyCacheSize, ShouldEqual, 50)
				So(cfg.OTelEndpoint, ShouldEqual, "localhost:4318")
				So(cfg.RebuildQueueSize, ShouldEqual, 64)
			})
		})

		Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
rebuild_queue_size: 32
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LADDER_CONFIG", tmpFile)
			_ = os.Setenv("LADDER_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then environment variables should override file values", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8080")
				So(cfg.RebuildQueueSize, ShouldEqual, 32)
			})
		})

		Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LADDER_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then it should return a load error", func() {
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("LADDER_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then it should return an error", func() {
				So(err, ShouldNotBeNil)
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When the file empties addr", func() {
			tmpFile := createTempConfigFile(`addr: ""`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("LADDER_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then it should return a validation error", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "addr must not be empty")
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("LADDER_REBUILD_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			Convey("Then it should return an error", func() {
				So(err, ShouldNotBeNil)
				So(cfg, ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"LADDER_CONFIG",
		"LADDER_ADDR",
		"LADDER_STORAGE_DRIVER",
		"LADDER_SQLITE_PATH",
		"LADDER_REBUILD_QUEUE_SIZE",
		"LADDER_REBUILD_ON_START",
		"LADDER_JWT_SECRET",
		"LADDER_IDEMPOTENCY_TTL_MS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "ladder-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
