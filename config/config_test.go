package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"excess_mortality/mortality"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DOTENV_PATH", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != defaultPort {
		t.Fatalf("expected port %s, got %s", defaultPort, cfg.HTTPPort)
	}
	if !cfg.Pipeline.Cutoff.Equal(mortality.DefaultCutoff) {
		t.Fatalf("expected default cutoff, got %v", cfg.Pipeline.Cutoff)
	}
	opts := cfg.Pipeline.Options()
	if opts.Aliases["American Indian or Alaska Native"] != mortality.NativeAmerican {
		t.Fatalf("expected default alias mapping, got %v", opts.Aliases)
	}
	if len(cfg.Pipeline.BaselineColumnIDs()) != 7 {
		t.Fatalf("expected 7 baseline columns, got %v", cfg.Pipeline.BaselineColumnIDs())
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	data := `mortality_path: /data/deaths.csv
db_path: /data/out.db
watch_inputs: true
pipeline:
  cutoff: "2020-12-31"
  method: Unweighted
  category_prefix: ""
  label_year: 2021
  aliases:
    "American Indian or Alaska Native": Native American
    "Multiracial": Other
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.MortalityPath != "/data/deaths.csv" || cfg.DBPath != "/data/out.db" || !cfg.WatchInputs {
		t.Fatalf("unexpected paths %+v", cfg)
	}
	if want := time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC); !cfg.Pipeline.Cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, cfg.Pipeline.Cutoff)
	}
	if cfg.Pipeline.Method != "Unweighted" || cfg.Pipeline.CategoryPrefix != "" || cfg.Pipeline.LabelYear != 2021 {
		t.Fatalf("unexpected pipeline %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Aliases["Multiracial"] != "Other" {
		t.Fatalf("expected alias override, got %v", cfg.Pipeline.Aliases)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"http_port":"9100","pipeline":{"time_period":"2021"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PIPELINE_CUTOFF", "2021-01-01")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != ":9000" {
		t.Fatalf("expected HTTP_PORT to include colon, got %s", cfg.HTTPPort)
	}
	if cfg.Pipeline.TimePeriod != "2021" {
		t.Fatalf("expected time period from file, got %q", cfg.Pipeline.TimePeriod)
	}
	if cfg.Pipeline.Cutoff.Year() != 2021 {
		t.Fatalf("expected env cutoff, got %v", cfg.Pipeline.Cutoff)
	}
}

func TestStrictConfigRejectsUnknownAliasTarget(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  aliases:\n    Pacific Islander: Oceanian\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("STRICT_CONFIG", "true")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStrictConfigRequiresFile(t *testing.T) {
	isolate(t)
	t.Setenv("STRICT_CONFIG", "1")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing config file to fail in strict mode")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ".env")
	data := "# comment\nexport MORTALITY_PATH=\"/env/deaths.csv\"\nBASELINE_PATH=/env/pop.csv\nnot a pair\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_PATH", path)
	t.Setenv("MORTALITY_PATH", "")
	t.Setenv("BASELINE_PATH", "/already/set.csv")
	os.Unsetenv("MORTALITY_PATH")
	t.Cleanup(func() { os.Unsetenv("MORTALITY_PATH") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.MortalityPath != "/env/deaths.csv" {
		t.Fatalf("expected dotenv path, got %s", cfg.MortalityPath)
	}
	if cfg.BaselinePath != "/already/set.csv" {
		t.Fatalf("expected existing env to win, got %s", cfg.BaselinePath)
	}
}
