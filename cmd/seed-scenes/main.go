package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/geocomp/internal/adapters/geotiff"
	"github.com/okian/geocomp/internal/adapters/objectstore"
	"github.com/okian/geocomp/internal/adapters/sceneindex"
	"github.com/okian/geocomp/internal/config"
	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/synthetic"
	"github.com/okian/geocomp/pkg/logger"
)

const defaultSeedTimeout = 10 * time.Minute

func main() {
	def := synthetic.DefaultConfig()
	var (
		out     = flag.String("out", def.OutDir, "Output directory for scenes, region and manifest")
		archive = flag.String("archive", def.ArchiveID, "Archive identifier")
		region  = flag.String("region", def.RegionID, "Region asset identifier")
		start   = flag.String("start", def.Start.Format(time.DateOnly), "First acquisition date")
		years   = flag.Int("years", def.Years, "Number of years to generate")
		perYear = flag.Int("per-year", def.PerYear, "Scenes per year")
		cloud   = flag.Float64("cloud", def.Cloud, "Share of each scene under cloud (0..1)")
		seed    = flag.Uint64("seed", def.Seed, "Pixel generator seed")
		workers = flag.Int("workers", runtime.NumCPU(), "Scenes written concurrently")
		publish = flag.Bool("publish", false, "Upload to the object store and the scene index from config")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), defaultSeedTimeout)
	defer cancel()

	cfg := def
	cfg.OutDir, cfg.ArchiveID, cfg.RegionID = *out, *archive, *region
	cfg.Years, cfg.PerYear, cfg.Cloud, cfg.Seed, cfg.Workers = *years, *perYear, *cloud, *seed, *workers
	t, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		log.Error(ctx, "invalid start date", logger.String("start", *start), logger.Error(err))
		os.Exit(1)
	}
	cfg.Start = t

	geotiff.Register()
	res, err := synthetic.Generate(ctx, cfg, geotiff.NewCodec(export.NoData))
	if err != nil {
		log.Error(ctx, "generate archive", logger.Error(err))
		os.Exit(1)
	}
	if !*publish {
		return
	}

	if err := publishArchive(ctx, res); err != nil {
		log.Error(ctx, "publish archive", logger.Error(err))
		os.Exit(1)
	}
}

// publishArchive pushes the generated archive to the services named in config.
func publishArchive(ctx context.Context, res *synthetic.Result) error {
	appCfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	store, err := objectstore.New(objectstore.Config{
		Endpoint:  appCfg.StoreEndpoint,
		AccessKey: appCfg.StoreAccessKey,
		SecretKey: appCfg.StoreSecretKey,
		Region:    appCfg.StoreRegion,
		UseSSL:    appCfg.StoreUseSSL,
	})
	if err != nil {
		return err
	}
	for _, b := range []string{appCfg.AssetsBucket, appCfg.ScenesBucket} {
		if err := store.EnsureBucket(ctx, b); err != nil {
			return err
		}
	}

	var idx synthetic.Indexer
	if appCfg.SceneIndexDSN != "" {
		x, err := sceneindex.Open(ctx, sceneindex.DefaultConfig(appCfg.SceneIndexDSN))
		if err != nil {
			return err
		}
		defer x.Close()
		if err := x.Migrate(ctx); err != nil {
			return err
		}
		idx = x
	}
	_, err = synthetic.Publish(ctx, res, store, appCfg.AssetsBucket, appCfg.ScenesBucket, idx)
	return err
}
