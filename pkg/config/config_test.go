package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

type validatedConfig struct {
	Name string `yaml:"name"`
}

var errNameRequired = errors.New("name is required")

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return errNameRequired
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "name: demo\ncount: 3\n")

	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "demo" || cfg.Count != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sampleConfig
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "name: [unclosed\n")

	var cfg sampleConfig
	if err := Load(path, &cfg); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "expanded")
	path := writeConfig(t, "name: ${SAMPLE_NAME}\n")

	var cfg sampleConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "expanded" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoad_RunsValidator(t *testing.T) {
	path := writeConfig(t, "name: \"\"\n")

	var cfg validatedConfig
	err := Load(path, &cfg)
	if !errors.Is(err, errNameRequired) {
		t.Errorf("err = %v, want validator error", err)
	}
}
