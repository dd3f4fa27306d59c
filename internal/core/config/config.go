// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type RemoteCfg struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

type ExtractCfg struct {
	MaxWorkers      int
	LayerTimeout    time.Duration
	LayerTimeoutOvr map[string]time.Duration
	CatalogTimeout  time.Duration
	Approximate     bool
	Offset          int
	MaxUploadBytes  int64
}

type CacheCfg struct {
	Enabled    bool
	RedisAddr  string
	OpTimeout  time.Duration
	ValueTTL   time.Duration
	CatalogTTL time.Duration
	H3Res      int
}

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr         string
	LogLevel     string
	LogConsole   bool
	LogSampleN   int
	Remote       RemoteCfg
	Extract      ExtractCfg
	Cache        CacheCfg
	Invalidation InvalidationCfg
	Metrics      MetricsCfg
}

func FromEnv() Config {
	res := getint("CACHE_H3_RES", 13)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:       getenv("ADDR", ":8000"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),
		Remote: RemoteCfg{
			URL:      strings.TrimSpace(os.Getenv("RASDAMAN_URL")),
			Username: os.Getenv("RASDAMAN_USERNAME"),
			Password: os.Getenv("RASDAMAN_PASSWORD"),
			Timeout:  getduration("RASDAMAN_TIMEOUT", 30*time.Second),
		},
		Extract: ExtractCfg{
			MaxWorkers:      getint("EXTRACT_MAX_WORKERS", 4),
			LayerTimeout:    getduration("EXTRACT_LAYER_TIMEOUT", 30*time.Second),
			LayerTimeoutOvr: parseDurationMap(getenv("EXTRACT_LAYER_TIMEOUT_OVERRIDES", "")),
			CatalogTimeout:  getduration("CATALOG_TIMEOUT", 30*time.Second),
			Approximate:     getbool("EXTRACT_APPROXIMATE", true),
			Offset:          getint("EXTRACT_OFFSET", 0),
			MaxUploadBytes:  int64(getint("MAX_UPLOAD_BYTES", 32<<20)),
		},
		Cache: CacheCfg{
			Enabled:    getbool("CACHE_ENABLED", false),
			RedisAddr:  getenv("REDIS_ADDR", "localhost:6379"),
			OpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			ValueTTL:   getduration("CACHE_VALUE_TTL", 24*time.Hour),
			CatalogTTL: getduration("CACHE_CATALOG_TTL", 10*time.Minute),
			H3Res:      res,
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "coverage-updates"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "querycube-invalidator"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Remote.URL) == "" {
		errs = append(errs, errors.New("RASDAMAN_URL is required"))
	}
	if c.Remote.Password != "" && c.Remote.Username == "" {
		errs = append(errs, errors.New("RASDAMAN_PASSWORD set without RASDAMAN_USERNAME"))
	}
	if c.Extract.MaxWorkers <= 0 {
		errs = append(errs, fmt.Errorf("EXTRACT_MAX_WORKERS must be positive, got %d", c.Extract.MaxWorkers))
	}
	if c.Extract.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Extract.MaxUploadBytes))
	}
	if c.Invalidation.Enabled && !c.Cache.Enabled {
		errs = append(errs, errors.New("INVALIDATION_ENABLED requires CACHE_ENABLED"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "layer=5m,other=30s" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			out[k] = d
		}
	}
	return out
}
