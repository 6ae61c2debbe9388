// Package cli implements the pricebook-bridge subcommands.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

const (
	exitSuccess    = 0
	exitValidation = 1
	exitRuntime    = 2
	exitInputParse = 4
)

const (
	projectConfigName = "pricebook-bridge.yaml"
	homeConfigDir     = ".pricebook-bridge"
	homeConfigName    = "config.yaml"
)

// fileConfig mirrors pricebook-bridge.yaml. Duration values are strings
// in time.ParseDuration form; string values run through os.ExpandEnv.
type fileConfig struct {
	APIURL        string            `yaml:"api_url"`
	SessionID     string            `yaml:"session_id"`
	Timeout       string            `yaml:"timeout"`
	StatusTimeout string            `yaml:"status_timeout"`
	Journal       journalFileConfig `yaml:"journal"`
	Otel          otelFileConfig    `yaml:"otel"`
	WebUI         webuiFileConfig   `yaml:"webui"`
}

type journalFileConfig struct {
	Path           string `yaml:"path"`
	RetentionAge   string `yaml:"retention_age"`
	RetentionCount int    `yaml:"retention_count"`
}

type otelFileConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type webuiFileConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// settings is the merged per-command configuration. Precedence:
// flag > environment > config file > default.
type settings struct {
	apiURL         string
	sessionID      string
	timeout        time.Duration
	statusTimeout  time.Duration
	journalPath    string
	retentionAge   time.Duration
	retentionCount int
	noJournal      bool
	otelEndpoint   string
	host           string
	port           int
	maxBody        int64
	readTimeout    time.Duration
	writeTimeout   time.Duration
}

// discoverConfigPath resolves the config file location with first-match
// semantics: explicit --config, ./pricebook-bridge.yaml, then
// ~/.pricebook-bridge/config.yaml.
func discoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return discoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// discoverConfigPathFrom is a testable variant of discoverConfigPath.
func discoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// If explicit path is set, not found is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

func loadConfigFile(path string) (fileConfig, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	cfg.APIURL = os.ExpandEnv(cfg.APIURL)
	cfg.SessionID = os.ExpandEnv(cfg.SessionID)
	cfg.Journal.Path = os.ExpandEnv(cfg.Journal.Path)
	cfg.Otel.Endpoint = os.ExpandEnv(cfg.Otel.Endpoint)
	cfg.WebUI.Host = os.ExpandEnv(cfg.WebUI.Host)
	return cfg, nil
}

// resolveSettings merges the command's flags with the discovered config
// file. Flags the command does not define resolve from the file alone.
func resolveSettings(cmd *cobra.Command) (settings, error) {
	explicitPath := flagStringOr(cmd, "config", "")
	path, found, err := discoverConfigPath(explicitPath)
	if err != nil {
		return settings{}, exitError(exitValidation, "%v", err)
	}
	var file fileConfig
	if found {
		if file, err = loadConfigFile(path); err != nil {
			return settings{}, exitError(exitInputParse, "%v", err)
		}
	}

	s := settings{
		sessionID:    flagStringOr(cmd, "session", file.SessionID),
		journalPath:  flagStringOr(cmd, "journal-path", file.Journal.Path),
		apiURL:       flagStringOr(cmd, "api-url", ""),
		otelEndpoint: flagStringOr(cmd, "otel-endpoint", ""),
	}

	if s.apiURL == "" {
		if env := strings.TrimSpace(os.Getenv(pricebook.EnvBaseURL)); env != "" {
			s.apiURL = env
		} else {
			s.apiURL = file.APIURL
		}
	}
	if s.otelEndpoint == "" {
		if env := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); env != "" {
			s.otelEndpoint = env
		} else {
			s.otelEndpoint = file.Otel.Endpoint
		}
	}

	if s.timeout, err = resolveDuration(cmd, "timeout", "timeout", file.Timeout); err != nil {
		return settings{}, err
	}
	if s.statusTimeout, err = resolveDuration(cmd, "status-timeout", "status_timeout", file.StatusTimeout); err != nil {
		return settings{}, err
	}
	if s.retentionAge, err = parseConfigDuration("journal.retention_age", file.Journal.RetentionAge); err != nil {
		return settings{}, err
	}
	s.retentionCount = file.Journal.RetentionCount
	if cmd.Flags().Lookup("no-journal") != nil {
		s.noJournal, _ = cmd.Flags().GetBool("no-journal")
	}

	if cmd.Flags().Lookup("host") != nil {
		s.host, _ = cmd.Flags().GetString("host")
		if !flagChanged(cmd, "host") && strings.TrimSpace(file.WebUI.Host) != "" {
			s.host = file.WebUI.Host
		}
	}
	if cmd.Flags().Lookup("port") != nil {
		s.port, _ = cmd.Flags().GetInt("port")
		if !flagChanged(cmd, "port") && file.WebUI.Port != 0 {
			s.port = file.WebUI.Port
		}
	}
	if cmd.Flags().Lookup("max-body") != nil {
		s.maxBody, _ = cmd.Flags().GetInt64("max-body")
	}
	if cmd.Flags().Lookup("read-timeout") != nil {
		s.readTimeout, _ = cmd.Flags().GetDuration("read-timeout")
	}
	if cmd.Flags().Lookup("write-timeout") != nil {
		s.writeTimeout, _ = cmd.Flags().GetDuration("write-timeout")
	}

	return s, nil
}

// flagChanged reports whether the named flag exists and was set
// explicitly on the command line.
func flagChanged(cmd *cobra.Command, name string) bool {
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}

// flagStringOr returns the flag's value when set to something non-blank,
// otherwise fallback. Commands without the flag resolve to fallback.
func flagStringOr(cmd *cobra.Command, name, fallback string) string {
	value := ""
	if cmd.Flags().Lookup(name) != nil {
		value, _ = cmd.Flags().GetString(name)
	}
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// resolveDuration applies flag > file > flag-default for a duration
// setting. The config key is only used in error messages.
func resolveDuration(cmd *cobra.Command, flagName, configKey, fileValue string) (time.Duration, error) {
	if flagChanged(cmd, flagName) {
		value, _ := cmd.Flags().GetDuration(flagName)
		return value, nil
	}
	if strings.TrimSpace(fileValue) != "" {
		return parseConfigDuration(configKey, fileValue)
	}
	if cmd.Flags().Lookup(flagName) != nil {
		value, _ := cmd.Flags().GetDuration(flagName)
		return value, nil
	}
	return 0, nil
}

func parseConfigDuration(key, value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, exitError(exitInputParse, "config %s: invalid duration %q", key, value)
	}
	return parsed, nil
}
