// Package config provides configuration management for sitepress using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration file is .sitepress.yml in the working directory. Every
// key can be overridden through SITEPRESS_<SECTION>_<KEY> environment
// variables. Load applies defaults and validates the result, so every
// consumer receives a complete Config.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// FailurePolicy decides what a stage does when one of its items fails.
type FailurePolicy string

const (
	// PolicyAbort fails the whole stage when any item fails. Items already
	// started are allowed to finish.
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue records failed items as warnings and lets the stage
	// succeed with the remaining artifacts.
	PolicyContinue FailurePolicy = "continue"
)

type Config struct {
	ProjectDir string        `yaml:"project_dir" mapstructure:"project_dir"`
	Source     SourceConfig  `yaml:"source" mapstructure:"source"`
	Output     OutputConfig  `yaml:"output" mapstructure:"output"`
	HTML       HTMLConfig    `yaml:"html" mapstructure:"html"`
	Styles     StylesConfig  `yaml:"styles" mapstructure:"styles"`
	Bundles    BundlesConfig `yaml:"bundles" mapstructure:"bundles"`
	Deps       DepsConfig    `yaml:"deps" mapstructure:"deps"`
	Build      BuildConfig   `yaml:"build" mapstructure:"build"`
	Serve      ServeConfig   `yaml:"serve" mapstructure:"serve"`
	Log        LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

type SourceConfig struct {
	Root        string   `yaml:"root" mapstructure:"root"`
	CompiledDir string   `yaml:"compiled_dir" mapstructure:"compiled_dir"`
	Passthrough []string `yaml:"passthrough" mapstructure:"passthrough"`
}

type OutputConfig struct {
	Root      string `yaml:"root" mapstructure:"root"`
	AssetsDir string `yaml:"assets_dir" mapstructure:"assets_dir"`
	Atomic    bool   `yaml:"atomic" mapstructure:"atomic"`
}

type HTMLConfig struct {
	Shell              string `yaml:"shell" mapstructure:"shell"`
	Homepage           string `yaml:"homepage" mapstructure:"homepage"`
	PageName           string `yaml:"page_name" mapstructure:"page_name"`
	Placeholder        string `yaml:"placeholder" mapstructure:"placeholder"`
	CachebustAttribute string `yaml:"cachebust_attribute" mapstructure:"cachebust_attribute"`
	IncludeTag         string `yaml:"include_tag" mapstructure:"include_tag"`
}

type StylesConfig struct {
	Patterns []string      `yaml:"patterns" mapstructure:"patterns"`
	Command  string        `yaml:"command" mapstructure:"command"`
	Args     []string      `yaml:"args" mapstructure:"args"`
	OnError  FailurePolicy `yaml:"on_error" mapstructure:"on_error"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type BundlesConfig struct {
	Application       string `yaml:"application" mapstructure:"application"`
	ApplicationTarget string `yaml:"application_target" mapstructure:"application_target"`
	Worker            string `yaml:"worker" mapstructure:"worker"`
	WorkerTarget      string `yaml:"worker_target" mapstructure:"worker_target"`
	Components        string `yaml:"components" mapstructure:"components"`
	CleanCompiled     bool   `yaml:"clean_compiled" mapstructure:"clean_compiled"`
}

type DepsConfig struct {
	Manifest   string        `yaml:"manifest" mapstructure:"manifest"`
	Key        string        `yaml:"key" mapstructure:"key"`
	ScratchDir string        `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	OnError    FailurePolicy `yaml:"on_error" mapstructure:"on_error"`
	Minify     bool          `yaml:"minify" mapstructure:"minify"`
}

type BuildConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

type ServeConfig struct {
	Host       string        `yaml:"host" mapstructure:"host"`
	Port       int           `yaml:"port" mapstructure:"port"`
	LiveReload bool          `yaml:"live_reload" mapstructure:"live_reload"`
	Debounce   time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// SetDefaults registers the default value of every key on v. Values set
// explicitly, from a file, or from the environment take precedence.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project_dir", ".")

	v.SetDefault("source.root", "src")
	v.SetDefault("source.compiled_dir", "_compiled")
	v.SetDefault("source.passthrough", []string{"CNAME"})

	v.SetDefault("output.root", "build")
	v.SetDefault("output.assets_dir", "assets")
	v.SetDefault("output.atomic", true)

	v.SetDefault("html.shell", "shell.html")
	v.SetDefault("html.homepage", "homepage.html")
	v.SetDefault("html.page_name", "index.html")
	v.SetDefault("html.placeholder", "REPLACE_WITH_HTML")
	v.SetDefault("html.cachebust_attribute", "data-cachebust")
	v.SetDefault("html.include_tag", "import-component")

	v.SetDefault("styles.patterns", []string{"**/*.scss", "**/*.sass"})
	v.SetDefault("styles.command", "sass")
	v.SetDefault("styles.args", []string{"--style=compressed", "--no-source-map"})
	v.SetDefault("styles.on_error", string(PolicyAbort))
	v.SetDefault("styles.timeout", time.Minute)

	v.SetDefault("bundles.application", "application.js")
	v.SetDefault("bundles.application_target", "assets/application.js")
	v.SetDefault("bundles.worker", "worker.js")
	v.SetDefault("bundles.worker_target", "worker.js")
	v.SetDefault("bundles.components", "**/*.js")
	v.SetDefault("bundles.clean_compiled", false)

	v.SetDefault("deps.manifest", "package.json")
	v.SetDefault("deps.key", "webDependencies")
	v.SetDefault("deps.scratch_dir", "_packages")
	v.SetDefault("deps.on_error", string(PolicyAbort))
	v.SetDefault("deps.minify", false)

	v.SetDefault("build.concurrency", 0)

	v.SetDefault("serve.host", "localhost")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.live_reload", true)
	v.SetDefault("serve.debounce", 300*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.textfile", "")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults, and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if config.Build.Concurrency <= 0 {
		config.Build.Concurrency = runtime.NumCPU()
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the fully defaulted configuration without reading any
// file or environment.
func Default() *Config {
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}
