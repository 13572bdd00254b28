package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Defaults del pipeline: 10 descargas concurrentes, 3 intentos, 30s
// por intento, 2s de backoff fijo, 10s por sondeo HEAD.
const (
	DefaultConcurrency   = 10
	DefaultProbeWorkers  = 10
	DefaultTimeoutS      = 30
	DefaultProbeTimeoutS = 10
	DefaultRetries       = 3
	DefaultBackoffS      = 2
)

const (
	PassProbe = "probe"
	PassFetch = "fetch"
)

type Config struct {
	Input         string
	OutDir        string
	Passes        []string
	Concurrency   int
	ProbeWorkers  int
	TimeoutS      int
	ProbeTimeoutS int
	Retries       int
	BackoffS      int
	Verbosity     int
}

type fileConfig struct {
	Input         *string     `json:"input" yaml:"input"`
	OutDir        *string     `json:"outdir" yaml:"outdir"`
	Passes        *stringList `json:"passes" yaml:"passes"`
	Concurrency   *int        `json:"concurrency" yaml:"concurrency"`
	ProbeWorkers  *int        `json:"probe_workers" yaml:"probe_workers"`
	TimeoutS      *int        `json:"timeout" yaml:"timeout"`
	ProbeTimeoutS *int        `json:"probe_timeout" yaml:"probe_timeout"`
	Retries       *int        `json:"retries" yaml:"retries"`
	BackoffS      *int        `json:"backoff" yaml:"backoff"`
	Verbosity     *int        `json:"verbosity" yaml:"verbosity"`
}

type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var aux []string
		if err := json.Unmarshal(trimmed, &aux); err != nil {
			return err
		}
		*s = cleanStringSlice(aux)
		return nil
	case '"':
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*s = cleanStringSlice(strings.Split(single, ","))
		return nil
	default:
		return errors.New("passes debe ser un string o una lista")
	}
}

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		aux := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			aux = append(aux, node.Value)
		}
		*s = cleanStringSlice(aux)
		return nil
	case yaml.ScalarNode:
		*s = cleanStringSlice(strings.Split(value.Value, ","))
		return nil
	case yaml.MappingNode, yaml.DocumentNode:
		return errors.New("passes debe ser un string o una lista")
	default:
		*s = nil
		return nil
	}
}

func ParseFlags() (*Config, error) {
	configPath := flag.String("config", "", "Ruta a un archivo de configuración (YAML o JSON)")
	input := flag.String("input", "", "Archivo con URLs de JS, una por línea")
	outdir := flag.String("outdir", ".", "Directorio de salida")
	passes := flag.String("passes", "probe,fetch", "Pasadas a ejecutar, CSV (probe,fetch)")
	concurrency := flag.Int("concurrency", DefaultConcurrency, "Máximo de descargas concurrentes")
	probeWorkers := flag.Int("probe-workers", DefaultProbeWorkers, "Workers de sondeo por host")
	timeout := flag.Int("timeout", DefaultTimeoutS, "Timeout por intento de descarga (segundos)")
	probeTimeout := flag.Int("probe-timeout", DefaultProbeTimeoutS, "Timeout por sondeo HEAD (segundos)")
	retries := flag.Int("retries", DefaultRetries, "Intentos por URL")
	backoff := flag.Int("backoff", DefaultBackoffS, "Espera fija entre intentos (segundos)")
	verbosity := flag.IntP("verbosity", "v", 0, "Verbosity (0=info,2=debug,3=trace)")

	flag.Parse()

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg := &Config{
		Input:         strings.TrimSpace(*input),
		OutDir:        strings.TrimSpace(*outdir),
		Passes:        cleanStringSlice(strings.Split(*passes, ",")),
		Concurrency:   *concurrency,
		ProbeWorkers:  *probeWorkers,
		TimeoutS:      *timeout,
		ProbeTimeoutS: *probeTimeout,
		Retries:       *retries,
		BackoffS:      *backoff,
		Verbosity:     *verbosity,
	}

	if *configPath != "" {
		fc, err := loadConfigFile(*configPath)
		if err != nil {
			return nil, fmt.Errorf("no se pudo leer la configuración desde %q: %w", *configPath, err)
		}
		mergeFileConfig(cfg, fc, setFlags)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFileConfig(cfg *Config, fc *fileConfig, setFlags map[string]bool) {
	if fc == nil {
		return
	}
	if fc.Input != nil && !setFlags["input"] {
		cfg.Input = strings.TrimSpace(*fc.Input)
	}
	if fc.OutDir != nil && !setFlags["outdir"] {
		cfg.OutDir = strings.TrimSpace(*fc.OutDir)
	}
	if fc.Passes != nil && !setFlags["passes"] {
		cfg.Passes = cleanStringSlice([]string(*fc.Passes))
	}
	if fc.Concurrency != nil && !setFlags["concurrency"] {
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.ProbeWorkers != nil && !setFlags["probe-workers"] {
		cfg.ProbeWorkers = *fc.ProbeWorkers
	}
	if fc.TimeoutS != nil && !setFlags["timeout"] {
		cfg.TimeoutS = *fc.TimeoutS
	}
	if fc.ProbeTimeoutS != nil && !setFlags["probe-timeout"] {
		cfg.ProbeTimeoutS = *fc.ProbeTimeoutS
	}
	if fc.Retries != nil && !setFlags["retries"] {
		cfg.Retries = *fc.Retries
	}
	if fc.BackoffS != nil && !setFlags["backoff"] {
		cfg.BackoffS = *fc.BackoffS
	}
	if fc.Verbosity != nil && !setFlags["verbosity"] {
		cfg.Verbosity = *fc.Verbosity
	}
}

func loadConfigFile(path string) (*fileConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("la ruta %q apunta a un directorio", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg fileConfig
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, err
			}
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ProbeWorkers <= 0 {
		c.ProbeWorkers = DefaultProbeWorkers
	}
	if c.TimeoutS <= 0 {
		c.TimeoutS = DefaultTimeoutS
	}
	if c.ProbeTimeoutS <= 0 {
		c.ProbeTimeoutS = DefaultProbeTimeoutS
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.BackoffS < 0 {
		c.BackoffS = DefaultBackoffS
	}
	if len(c.Passes) == 0 {
		c.Passes = []string{PassProbe, PassFetch}
	}
}

func (c *Config) Validate() error {
	for _, pass := range c.Passes {
		switch pass {
		case PassProbe, PassFetch:
		default:
			return fmt.Errorf("pasada desconocida %q (válidas: probe, fetch)", pass)
		}
	}
	return nil
}

func (c *Config) hasPass(name string) bool {
	for _, pass := range c.Passes {
		if pass == name {
			return true
		}
	}
	return false
}

func (c *Config) ProbeEnabled() bool { return c.hasPass(PassProbe) }
func (c *Config) FetchEnabled() bool { return c.hasPass(PassFetch) }

func (c *Config) AttemptTimeout() time.Duration { return time.Duration(c.TimeoutS) * time.Second }
func (c *Config) ProbeTimeout() time.Duration   { return time.Duration(c.ProbeTimeoutS) * time.Second }
func (c *Config) Backoff() time.Duration        { return time.Duration(c.BackoffS) * time.Second }

func cleanStringSlice(values []string) []string {
	list := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			list = append(list, v)
		}
	}
	return list
}
