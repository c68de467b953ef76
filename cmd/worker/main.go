// Command worker is the tile-pipeline compute daemon: it drains the
// work queue, runs the chunk prep/process/update state machine, and
// purges the CDN cache for every chunk it touches.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/chunkproc"
	"github.com/lodworld/tileworker/codec"
	"github.com/lodworld/tileworker/internal/config"
	"github.com/lodworld/tileworker/internal/nlog"
	"github.com/lodworld/tileworker/objstore"
	"github.com/lodworld/tileworker/raster"
	"github.com/lodworld/tileworker/sched"
	"github.com/lodworld/tileworker/workstore"
)

func main() {
	if err := run(); err != nil {
		nlog.Errorf("worker: fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerID := uuid.NewString()
	nlog.SetDefault(nlog.With("worker_id", workerID))

	maps, err := chunkid.Load(os.DirFS("."), "static/cmap_l1.dat", "static/cmap_l2.dat")
	if err != nil {
		return err
	}
	if _, err := codec.LoadDefaultBuildView(os.DirFS("."), "static/default_build.dat"); err != nil {
		return err
	}

	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	store := objstore.New(s3Client, objstore.WithUploader(manager.NewUploader(s3Client)))

	work := workstore.Dial(cfg.RedisAddr, cfg.RedisPassword)

	pool := raster.NewPool(ctx, numCPU())
	defer pool.Close()

	cdn := objstore.NewCDNPurger(cfg.CFZoneID, cfg.CFAPIToken, cfg.Origin)

	deps := chunkproc.Deps{
		Store: store,
		Maps:  maps,
		Buckets: chunkproc.Buckets{
			Chunks:      cfg.ChunksBucket,
			Plots:       cfg.PlotsBucket,
			Images:      cfg.ImagesBucket,
			PointClouds: cfg.PointCloudsBucket,
		},
	}

	schedCfg := sched.Config{
		PipelineLimit:  cfg.PipelineLimit,
		PurgeDelay:     time.Duration(cfg.PurgeDelayMS) * time.Millisecond,
		PurgeURLsLimit: cfg.PurgeURLsLimit,
		DelayL0Seconds: cfg.DelayL0Seconds,
		DelayL1Seconds: cfg.DelayL1Seconds,
		CDNBaseURL:     cfg.CFChunksBaseURL,
	}
	scheduler := sched.New(work, deps, pool, cdn, schedCfg)

	go func() {
		<-ctx.Done()
		nlog.Infoln("worker: shutdown signal received, draining")
		scheduler.Shutdown()
	}()

	nlog.Infof("worker: starting, pipeline_limit=%d", cfg.PipelineLimit)
	scheduler.Run(ctx)
	nlog.Infoln("worker: shutdown complete")
	return nil
}

// newS3Client builds an AWS SDK v2 S3 client targeting the configured R2
// endpoint with static credentials and path-style addressing (R2's
// S3-compatible API requires it).
func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx,
		awscfg.WithRegion(cfg.R2Region),
		awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKey, cfg.R2SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.R2Endpoint
		o.UsePathStyle = true
	}), nil
}

// numCPU sizes the raster worker pool: runtime.GOMAXPROCS(0) by default,
// overridable via RASTER_WORKERS for environments that want to reserve
// cores for other work.
func numCPU() int {
	n := runtime.GOMAXPROCS(0)
	if v := os.Getenv("RASTER_WORKERS"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			n = parsed
		}
	}
	return n
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 0, os.ErrInvalid
	}
	return n, nil
}
