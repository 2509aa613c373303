// Package config loads scaffold settings from flags, environment, an optional
// YAML file and a .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/agentic-research/scaffold/internal/backup"
	"github.com/agentic-research/scaffold/internal/engine"
	"github.com/agentic-research/scaffold/internal/journal"
)

// Keys understood by Load.
const (
	KeyOutputDir        = "output_dir"
	KeyFormatGo         = "format_go"
	KeyValidateSyntax   = "validate_syntax"
	KeyStrictSyntax     = "strict_syntax"
	KeyLint             = "lint"
	KeyBackupPolicy     = "backup_policy"
	KeyForceOverwrite   = "force_overwrite"
	KeyRequireSessionID = "require_session_id"
	KeyGit              = "git"
	KeyGitRequired      = "git_required"
	KeyJournal          = "journal"
	KeyJournalPath      = "journal_path"
	KeySnapshotPayload  = "snapshot_payload"
	KeyLogLevel         = "log_level"
	KeyLogFile          = "log_file"
)

const (
	EnvPrefix   = "SCAFFOLD"
	DotEnvFile  = ".env"
	DefaultName = "scaffold"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	OutputDir        string `mapstructure:"output_dir"`
	FormatGo         bool   `mapstructure:"format_go"`
	ValidateSyntax   bool   `mapstructure:"validate_syntax"`
	StrictSyntax     bool   `mapstructure:"strict_syntax"`
	Lint             bool   `mapstructure:"lint"`
	BackupPolicy     string `mapstructure:"backup_policy"`
	ForceOverwrite   bool   `mapstructure:"force_overwrite"`
	RequireSessionID bool   `mapstructure:"require_session_id"`
	Git              bool   `mapstructure:"git"`
	GitRequired      bool   `mapstructure:"git_required"`
	Journal          bool   `mapstructure:"journal"`
	JournalPath      string `mapstructure:"journal_path"`
	SnapshotPayload  bool   `mapstructure:"snapshot_payload"`
	LogLevel         string `mapstructure:"log_level"`
	LogFile          string `mapstructure:"log_file"`
}

// New returns a viper instance with defaults and environment bindings set.
// OUTPUT_DIR is honoured without the prefix.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyOutputDir, engine.DefaultOutputRoot)
	v.SetDefault(KeyFormatGo, false)
	v.SetDefault(KeyValidateSyntax, true)
	v.SetDefault(KeyStrictSyntax, false)
	v.SetDefault(KeyLint, false)
	v.SetDefault(KeyBackupPolicy, string(backup.OnChange))
	v.SetDefault(KeyForceOverwrite, false)
	v.SetDefault(KeyRequireSessionID, false)
	v.SetDefault(KeyGit, false)
	v.SetDefault(KeyGitRequired, false)
	v.SetDefault(KeyJournal, true)
	v.SetDefault(KeyJournalPath, "")
	v.SetDefault(KeySnapshotPayload, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyOutputDir, EnvPrefix+"_OUTPUT_DIR", "OUTPUT_DIR")
	return v
}

// LoadDotEnv exports the variables in path that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ReadFile merges a config file into v. With an empty path it looks for
// scaffold.yaml in the working directory and ignores its absence.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName(DefaultName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// FlagKeys maps CLI flag names to config keys.
var FlagKeys = map[string]string{
	"output-dir":         KeyOutputDir,
	"format-go":          KeyFormatGo,
	"validate-syntax":    KeyValidateSyntax,
	"strict-syntax":      KeyStrictSyntax,
	"lint":               KeyLint,
	"backup-policy":      KeyBackupPolicy,
	"force":              KeyForceOverwrite,
	"require-session-id": KeyRequireSessionID,
	"git":                KeyGit,
	"git-required":       KeyGitRequired,
	"journal":            KeyJournal,
	"journal-path":       KeyJournalPath,
	"snapshot-payload":   KeySnapshotPayload,
	"log-level":          KeyLogLevel,
	"log-file":           KeyLogFile,
}

// BindFlags binds every flag in fs that has an entry in FlagKeys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// Load decodes v into a Config and fills derived defaults.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = engine.DefaultOutputRoot
	}
	if _, err := backup.ParsePolicy(cfg.BackupPolicy); err != nil {
		return nil, err
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = filepath.Join(cfg.OutputDir, journal.DefaultFile)
	}
	return &cfg, nil
}

// EngineOptions returns the engine settings carried by cfg. Collaborators
// (sink, version control, recorder) are attached by the caller.
func (c *Config) EngineOptions() engine.Options {
	policy, _ := backup.ParsePolicy(c.BackupPolicy)
	return engine.Options{
		OutputRoot:             c.OutputDir,
		RequireSessionID:       c.RequireSessionID,
		ForceOverwrite:         c.ForceOverwrite,
		BackupPolicy:           policy,
		FormatGo:               c.FormatGo,
		ValidateSyntax:         c.ValidateSyntax,
		StrictSyntax:           c.StrictSyntax,
		Lint:                   c.Lint,
		VersionControlRequired: c.GitRequired,
	}
}
