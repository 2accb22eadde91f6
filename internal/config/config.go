// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case so GEOCOMP_<KEY> env vars map one to one.
// - All loaders accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is console or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address of `geocomp serve`.
	Addr string `koanf:"addr"`
	// ServerURL is where `geocomp export` submits jobs.
	ServerURL string `koanf:"server_url"`

	// QueueSize bounds the in-memory export job queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of export workers.
	WorkerCount int `koanf:"worker_count"`

	// ArchivesManifest is the YAML file describing archives (band schema, QA mask, scenes).
	ArchivesManifest string `koanf:"archives_manifest"`
	// SceneIndexDSN, when set, lists scenes from PostgreSQL instead of the manifest.
	SceneIndexDSN string `koanf:"scene_index_dsn"`

	// CatalogDir serves region assets from a local directory when set.
	CatalogDir string `koanf:"catalog_dir"`

	// Object store (S3 compatible) used for region assets, scene rasters and exports.
	StoreEndpoint  string `koanf:"store_endpoint"`
	StoreAccessKey string `koanf:"store_access_key"`
	StoreSecretKey string `koanf:"store_secret_key"`
	StoreRegion    string `koanf:"store_region"`
	StoreUseSSL    bool   `koanf:"store_use_ssl"`
	AssetsBucket   string `koanf:"assets_bucket"`
	ScenesBucket   string `koanf:"scenes_bucket"`
	ExportsBucket  string `koanf:"exports_bucket"`

	// ExportDir writes exports to a local directory instead of the object store.
	ExportDir string `koanf:"export_dir"`
	// StagingDir holds temporary GeoTIFFs while encoding and decoding.
	StagingDir string `koanf:"staging_dir"`

	// DefaultMaxPixels applies when a request leaves max_pixels unset.
	DefaultMaxPixels float64 `koanf:"default_max_pixels"`
}

// New creates a Config populated with defaults. Context is accepted first
// to satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "console",
		Addr:             ":9080",
		ServerURL:        "http://localhost:9080",
		QueueSize:        1_000,
		WorkerCount:      runtime.NumCPU(),
		ArchivesManifest: "archives.yaml",
		StoreEndpoint:    "localhost:9000",
		StoreRegion:      "us-east-1",
		AssetsBucket:     "assets",
		ScenesBucket:     "scenes",
		ExportsBucket:    "exports",
		DefaultMaxPixels: 1e8,
	}
}
