package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepress/internal/errors"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func() { viper.Reset() },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "src", cfg.Source.Root)
				assert.Equal(t, "build", cfg.Output.Root)
				assert.Equal(t, []string{"CNAME"}, cfg.Source.Passthrough)
				assert.Equal(t, "shell.html", cfg.HTML.Shell)
				assert.Equal(t, "REPLACE_WITH_HTML", cfg.HTML.Placeholder)
				assert.Equal(t, PolicyAbort, cfg.Styles.OnError)
				assert.Equal(t, PolicyAbort, cfg.Deps.OnError)
				assert.Equal(t, time.Minute, cfg.Styles.Timeout)
				assert.Equal(t, "webDependencies", cfg.Deps.Key)
				assert.Equal(t, runtime.NumCPU(), cfg.Build.Concurrency)
				assert.True(t, cfg.Output.Atomic)
			},
		},
		{
			name: "overrides",
			setup: func() {
				viper.Reset()
				viper.Set("source.root", "site")
				viper.Set("output.root", "public")
				viper.Set("styles.on_error", "continue")
				viper.Set("styles.timeout", "5s")
				viper.Set("build.concurrency", 3)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "site", cfg.Source.Root)
				assert.Equal(t, "public", cfg.Output.Root)
				assert.Equal(t, PolicyContinue, cfg.Styles.OnError)
				assert.Equal(t, 5*time.Second, cfg.Styles.Timeout)
				assert.Equal(t, 3, cfg.Build.Concurrency)
			},
		},
		{
			name: "invalid port type",
			setup: func() {
				viper.Reset()
				viper.Set("serve.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "unknown failure policy",
			setup: func() {
				viper.Reset()
				viper.Set("deps.on_error", "retry")
			},
			expectError: true,
		},
		{
			name: "output inside source",
			setup: func() {
				viper.Reset()
				viper.Set("output.root", "src/build")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			config, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".sitepress.yml")
	content := `
source:
  root: www
  passthrough: [CNAME, robots.txt]
styles:
  command: dart-sass
  on_error: continue
deps:
  minify: true
serve:
  port: 9000
  debounce: 150ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "www", cfg.Source.Root)
	assert.Equal(t, []string{"CNAME", "robots.txt"}, cfg.Source.Passthrough)
	assert.Equal(t, "dart-sass", cfg.Styles.Command)
	assert.Equal(t, PolicyContinue, cfg.Styles.OnError)
	assert.True(t, cfg.Deps.Minify)
	assert.Equal(t, 9000, cfg.Serve.Port)
	assert.Equal(t, 150*time.Millisecond, cfg.Serve.Debounce)
	assert.Equal(t, "build", cfg.Output.Root)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SITEPRESS_OUTPUT_ROOT", "dist")

	v := viper.New()
	v.SetEnvPrefix("SITEPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.Output.Root)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	result := ValidateConfigWithDetails(cfg)

	assert.True(t, result.Valid, result.String())
	assert.False(t, result.HasErrors())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "absolute project dir", mutate: func(c *Config) { c.ProjectDir = "/srv/site" }},
		{name: "empty project dir", mutate: func(c *Config) { c.ProjectDir = "" }, field: "project_dir", wantErr: true},
		{name: "command not allowlisted", mutate: func(c *Config) { c.Styles.Command = "bash" }, field: "styles.command", wantErr: true},
		{name: "argument injection", mutate: func(c *Config) { c.Styles.Args = []string{"--x;rm"} }, field: "styles.args[0]", wantErr: true},
		{name: "absolute output", mutate: func(c *Config) { c.Output.Root = "/var/www" }, field: "output.root", wantErr: true},
		{name: "traversal source", mutate: func(c *Config) { c.Source.Root = "../src" }, field: "source.root", wantErr: true},
		{name: "same roots", mutate: func(c *Config) { c.Output.Root = "src" }, field: "output.root", wantErr: true},
		{name: "empty placeholder", mutate: func(c *Config) { c.HTML.Placeholder = " " }, field: "html.placeholder", wantErr: true},
		{name: "bad attribute", mutate: func(c *Config) { c.HTML.CachebustAttribute = "data cachebust" }, field: "html.cachebust_attribute", wantErr: true},
		{name: "include tag without hyphen", mutate: func(c *Config) { c.HTML.IncludeTag = "include" }, field: "html.include_tag", wantErr: true},
		{name: "shell equals homepage", mutate: func(c *Config) { c.HTML.Homepage = "shell.html" }, field: "html.homepage", wantErr: true},
		{name: "nested passthrough", mutate: func(c *Config) { c.Source.Passthrough = []string{"a/CNAME"} }, field: "source.passthrough[0]", wantErr: true},
		{name: "bad glob", mutate: func(c *Config) { c.Styles.Patterns = []string{"[*.scss"} }, field: "styles.patterns[0]", wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Styles.Timeout = 0 }, field: "styles.timeout", wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Serve.Port = 70000 }, field: "serve.port", wantErr: true},
		{name: "host injection", mutate: func(c *Config) { c.Serve.Host = "localhost;rm" }, field: "serve.host", wantErr: true},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }, field: "log.format", wantErr: true},
		{name: "manifest key", mutate: func(c *Config) { c.Deps.Key = "web deps" }, field: "deps.key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindConfig))
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))

			result := ValidateConfigWithDetails(cfg)
			fields := make([]string, 0, len(result.Errors))
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidationWarnings(t *testing.T) {
	cfg := Default()
	cfg.Output.Atomic = false
	cfg.Serve.Port = 80
	cfg.Styles.Patterns = nil

	result := ValidateConfigWithDetails(cfg)
	assert.True(t, result.Valid)
	assert.True(t, result.HasWarnings())
	assert.Len(t, result.Warnings, 3)
	assert.Contains(t, result.String(), "output.atomic")
}
