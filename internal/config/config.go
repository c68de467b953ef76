// Package config loads the worker's environment-derived configuration:
// the handful of env vars the process needs plus an optional .env file
// for non-PROD environments.
package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Config holds the process-wide settings sourced from the environment.
type Config struct {
	Env            string // ENV; "PROD" disables .env loading
	R2AccessKey    string
	R2SecretKey    string
	CFAPIToken     string
	RedisPassword  string

	R2Endpoint        string
	R2Region          string
	ChunksBucket      string
	PlotsBucket       string
	ImagesBucket      string
	PointCloudsBucket string
	CFZoneID          string
	CFChunksBaseURL   string
	Origin            string

	RedisAddr string

	PipelineLimit    int
	PurgeDelayMS     int
	PurgeURLsLimit   int
	DelayL0Seconds   int
	DelayL1Seconds   int
}

const (
	defaultPipelineLimit  = 8
	defaultPurgeDelayMS   = 2000
	defaultPurgeURLsLimit = 30
	defaultDelayL0Seconds = 30
	defaultDelayL1Seconds = 5
)

// Load reads ENV first; for any environment other than PROD it also loads
// a .env file (if present) before resolving the rest of the env vars, so
// that .env entries never clobber variables already set in the real
// environment.
func Load(dotenvPath string) (*Config, error) {
	env := os.Getenv("ENV")
	if env != "PROD" {
		if err := loadDotenv(dotenvPath); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "config: loading .env")
		}
	}

	cfg := &Config{
		Env:             envOr("ENV", "DEV"),
		R2AccessKey:     os.Getenv("CF_R2_ACCESS_KEY"),
		R2SecretKey:     os.Getenv("CF_R2_SECRET_KEY"),
		CFAPIToken:      os.Getenv("CF_API_TOKEN"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		R2Endpoint:      os.Getenv("CF_R2_ENDPOINT"),
		R2Region:        envOr("CF_R2_REGION", "auto"),
		ChunksBucket:      envOr("CHUNKS_BUCKET", "chunks"),
		PlotsBucket:       envOr("PLOTS_BUCKET", "plots"),
		ImagesBucket:      envOr("IMAGES_BUCKET", "images"),
		PointCloudsBucket: envOr("POINT_CLOUDS_BUCKET", "point-clouds"),
		CFZoneID:        os.Getenv("CF_ZONE_ID"),
		CFChunksBaseURL: os.Getenv("CF_CHUNKS_BUCKET_URL"),
		Origin:          envOr("ORIGIN", "https://worker.internal"),
		RedisAddr:       envOr("REDIS_ADDR", "127.0.0.1:6379"),

		PipelineLimit:  intOr("PIPELINE_LIMIT", defaultPipelineLimit),
		PurgeDelayMS:   intOr("PURGE_DELAY_MS", defaultPurgeDelayMS),
		PurgeURLsLimit: intOr("PURGE_URLS_LIMIT", defaultPurgeURLsLimit),
		DelayL0Seconds: intOr("DELAY_L0_SECONDS", defaultDelayL0Seconds),
		DelayL1Seconds: intOr("DELAY_L1_SECONDS", defaultDelayL1Seconds),
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// loadDotenv parses KEY=VALUE lines from path, ignoring blank lines and
// lines starting with '#'. It only sets variables not already present in
// the environment.
func loadDotenv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if _, exists := os.LookupEnv(k); !exists {
			os.Setenv(k, v)
		}
	}
	return sc.Err()
}
