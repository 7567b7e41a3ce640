// Package config resolves the settings of a Bolt project from a .env file,
// an optional bolt.hcl file in the project directory and BOLT_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/zclconf/go-cty/cty"

	"github.com/rubiojr/bolt/cache"
)

// FileName is the project configuration file looked up in the project
// directory.
const FileName = "bolt.hcl"

type Config struct {
	// Root is the directory resource locations are resolved against.
	Root      string
	LogLevel  string
	LogFormat string
	Cache     cache.Options
	// File is the configuration file that was read, if any.
	File string
}

type fileConfig struct {
	Root      *string     `hcl:"root,optional"`
	LogLevel  *string     `hcl:"log_level,optional"`
	LogFormat *string     `hcl:"log_format,optional"`
	Cache     *cacheBlock `hcl:"cache,block"`
}

type cacheBlock struct {
	Backend  string   `hcl:"backend,label"`
	Dir      *string  `hcl:"dir,optional"`
	MaxBytes *int64   `hcl:"max_bytes,optional"`
	Entries  *int     `hcl:"entries,optional"`
	Tiered   *bool    `hcl:"tiered,optional"`
	DSN      *string  `hcl:"dsn,optional"`
	S3       *s3Block `hcl:"s3,block"`
}

type s3Block struct {
	Endpoint  string `hcl:"endpoint"`
	Region    string `hcl:"region,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	Bucket    string `hcl:"bucket"`
	Prefix    string `hcl:"prefix,optional"`
	UseSSL    bool   `hcl:"use_ssl,optional"`
}

// Default returns the configuration of a project in dir with no
// configuration files.
func Default(dir string) *Config {
	return &Config{
		Root:      dir,
		LogLevel:  "warn",
		LogFormat: "text",
		Cache:     cache.Options{Kind: cache.KindFile},
	}
}

// Load resolves the configuration of the project in dir.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default(dir)
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
		cfg.File = path
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(dir, cfg.Root)
	}
	return cfg, nil
}

// evalContext exposes the process environment to configuration files as
// env.NAME.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

func (c *Config) applyFile(path string) error {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", path, diags)
	}
	var fc fileConfig
	if diags := gohcl.DecodeBody(f.Body, evalContext(), &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	if fc.Root != nil {
		c.Root = *fc.Root
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		c.LogFormat = *fc.LogFormat
	}
	if b := fc.Cache; b != nil {
		c.Cache.Kind = b.Backend
		if b.Dir != nil {
			c.Cache.Dir = *b.Dir
		}
		if b.MaxBytes != nil {
			c.Cache.MaxBytes = *b.MaxBytes
		}
		if b.Entries != nil {
			c.Cache.Entries = *b.Entries
		}
		if b.Tiered != nil {
			c.Cache.Tiered = *b.Tiered
		}
		if b.DSN != nil {
			c.Cache.DSN = *b.DSN
		}
		if s := b.S3; s != nil {
			c.Cache.S3 = cache.S3Config{
				Endpoint:  s.Endpoint,
				Region:    s.Region,
				AccessKey: s.AccessKey,
				SecretKey: s.SecretKey,
				Bucket:    s.Bucket,
				Prefix:    s.Prefix,
				UseSSL:    s.UseSSL,
			}
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Root, "BOLT_ROOT")
	setString(&c.LogLevel, "BOLT_LOG_LEVEL")
	setString(&c.LogFormat, "BOLT_LOG_FORMAT")
	setString(&c.Cache.Kind, "BOLT_CACHE")
	setString(&c.Cache.Dir, "BOLT_CACHE_DIR")
	setString(&c.Cache.DSN, "BOLT_CACHE_DSN")
	setString(&c.Cache.S3.Endpoint, "BOLT_S3_ENDPOINT")
	setString(&c.Cache.S3.Region, "BOLT_S3_REGION")
	setString(&c.Cache.S3.AccessKey, "BOLT_S3_ACCESS_KEY")
	setString(&c.Cache.S3.SecretKey, "BOLT_S3_SECRET_KEY")
	setString(&c.Cache.S3.Bucket, "BOLT_S3_BUCKET")
	setString(&c.Cache.S3.Prefix, "BOLT_S3_PREFIX")

	if raw := env("BOLT_CACHE_MAX_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("BOLT_CACHE_MAX_BYTES: %w", err)
		}
		c.Cache.MaxBytes = n
	}
	if raw := env("BOLT_CACHE_ENTRIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("BOLT_CACHE_ENTRIES: %w", err)
		}
		c.Cache.Entries = n
	}
	for name, dst := range map[string]*bool{
		"BOLT_CACHE_TIERED": &c.Cache.Tiered,
		"BOLT_S3_USE_SSL":   &c.Cache.S3.UseSSL,
	} {
		if raw := env(name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = v
		}
	}
	return nil
}

func env(name string) string { return strings.TrimSpace(os.Getenv(name)) }

func setString(dst *string, name string) {
	if v := env(name); v != "" {
		*dst = v
	}
}
