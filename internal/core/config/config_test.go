package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "EXTRACT_MAX_WORKERS", "EXTRACT_APPROXIMATE", "CACHE_H3_RES", "KAFKA_TOPIC", "RASDAMAN_USERNAME", "RASDAMAN_PASSWORD", "RASDAMAN_URL", "EXTRACT_OFFSET", "EXTRACT_LAYER_TIMEOUT", "MAX_UPLOAD_BYTES", "LOG_SAMPLE_N"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8000" || c.Extract.MaxWorkers != 4 || !c.Extract.Approximate || c.Extract.Offset != 0 {
		t.Fatalf("defaults=%+v", c)
	}
	if c.Extract.LayerTimeout != 30*time.Second || c.Cache.H3Res != 13 || c.Invalidation.Topic != "coverage-updates" {
		t.Fatalf("defaults=%+v", c)
	}
	if c.Extract.MaxUploadBytes != 32<<20 {
		t.Fatalf("upload limit=%d", c.Extract.MaxUploadBytes)
	}
	if c.LogSampleN != 0 {
		t.Fatalf("log sampling on by default: %d", c.LogSampleN)
	}
	// the endpoint has no built-in default
	if c.Remote.URL != "" {
		t.Fatalf("endpoint default=%q want empty", c.Remote.URL)
	}
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "RASDAMAN_URL is required") {
		t.Fatalf("Validate=%v want missing RASDAMAN_URL", err)
	}

	t.Setenv("RASDAMAN_URL", "http://rasdaman.test/rasdaman/ows")
	if err := FromEnv().Validate(); err != nil {
		t.Fatalf("config with endpoint invalid: %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("EXTRACT_MAX_WORKERS", "9")
	t.Setenv("EXTRACT_APPROXIMATE", "no")
	t.Setenv("EXTRACT_OFFSET", "2")
	t.Setenv("EXTRACT_LAYER_TIMEOUT", "5s")
	t.Setenv("EXTRACT_LAYER_TIMEOUT_OVERRIDES", "dem=1m, bad=xx ,=3s, slope=10s")
	t.Setenv("CACHE_H3_RES", "42")
	t.Setenv("RASDAMAN_USERNAME", "alice")
	t.Setenv("RASDAMAN_PASSWORD", "secret")
	t.Setenv("LOG_SAMPLE_N", "10")

	c := FromEnv()
	if c.LogSampleN != 10 {
		t.Fatalf("LogSampleN=%d", c.LogSampleN)
	}
	if c.Extract.MaxWorkers != 9 || c.Extract.Approximate || c.Extract.Offset != 2 || c.Extract.LayerTimeout != 5*time.Second {
		t.Fatalf("extract=%+v", c.Extract)
	}
	ovr := c.Extract.LayerTimeoutOvr
	if len(ovr) != 2 || ovr["dem"] != time.Minute || ovr["slope"] != 10*time.Second {
		t.Fatalf("overrides=%v", ovr)
	}
	if c.Cache.H3Res != 15 {
		t.Fatalf("h3 res not clamped: %d", c.Cache.H3Res)
	}
	if c.Remote.Username != "alice" || c.Remote.Password != "secret" {
		t.Fatalf("remote=%+v", c.Remote)
	}
}

func TestValidate(t *testing.T) {
	c := Config{
		Remote:       RemoteCfg{Password: "x"},
		Extract:      ExtractCfg{MaxWorkers: 0, MaxUploadBytes: 1},
		Invalidation: InvalidationCfg{Enabled: true},
	}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"RASDAMAN_URL", "RASDAMAN_USERNAME", "EXTRACT_MAX_WORKERS", "CACHE_ENABLED"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}
