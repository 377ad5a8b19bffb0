// Package config implements Config & Scope Resolution (C24): reading and
// writing the per-repo `.falcon/config.yaml` scope file, and resolving the
// environment variables spec.md §6 names.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

// File is the on-disk shape of `<repo-root>/.falcon/config.yaml`.
type File struct {
	Version   int           `yaml:"version" validate:"required,min=1"`
	WorkspaceID string      `yaml:"workspaceId" validate:"required"`
	ProjectID string        `yaml:"projectId" validate:"required"`
	Workspace WorkspaceInfo `yaml:"workspace" validate:"required"`
	Project   ProjectInfo   `yaml:"project" validate:"required"`
}

type WorkspaceInfo struct {
	Slug string `yaml:"slug" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

type ProjectInfo struct {
	Name string `yaml:"name" validate:"required"`
}

const configRelPath = ".falcon/config.yaml"

var validate = validator.New()

// Load reads and validates `.falcon/config.yaml` under repoRoot.
func Load(repoRoot string) (*File, error) {
	path := filepath.Join(repoRoot, configRelPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, falconerrors.New(falconerrors.KindNotFound, "load config", err).WithResource(path)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, falconerrors.ConfigurationError(path, "not valid YAML: "+err.Error())
	}
	if err := validate.Struct(&f); err != nil {
		return nil, falconerrors.ConfigurationError(path, err.Error())
	}
	return &f, nil
}

// Save writes f to `.falcon/config.yaml` under repoRoot, creating the
// `.falcon` directory if needed. Mirrors spec.md's on-disk-layout
// permissions discipline (pm.db is written mode 0o600; this config file
// follows the same restrictive-by-default posture).
func Save(repoRoot string, f *File) error {
	if err := validate.Struct(f); err != nil {
		return falconerrors.ConfigurationError(configRelPath, err.Error())
	}
	dir := filepath.Join(repoRoot, ".falcon")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return falconerrors.ConfigurationError(dir, err.Error())
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return falconerrors.ConfigurationError(configRelPath, err.Error())
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o600)
}

// Env is the resolved set of environment variables spec.md §6 names.
type Env struct {
	FalconHome        string
	PMAPIToken        string
	PMAPIAllowedOrigins []string
	AnthropicAPIKey   string
	GitHubToken       string
	// FalconRedisAddr is unset unless FALCON_REDIS_ADDR is present. When
	// set, the framed transport's connection-cap limiter and the kill
	// switch's rolling health counters are backed by Redis instead of an
	// in-process map, per SPEC_FULL.md's C16/C19/transport dependency note.
	FalconRedisAddr string
	// FalconPostgresDSN selects the Postgres repository adapter over the
	// in-memory one when set; unset falls back to pkg/repository/memory.
	FalconPostgresDSN string
	// FalconAgentBinary is the subprocess the invoker execs per spawn; the
	// particular binary is out of scope, only that it is configurable.
	FalconAgentBinary string
	// FalconDefaultModel is the model name the dispatch loop matches idle
	// agents against when an issue names none of its own.
	FalconDefaultModel string
	SlackBotToken      string
	SlackChannel       string
	Debug              bool
}

// ResolveEnv reads and validates the process environment per spec.md §6.
// FALCON_HOME defaults to ~/.falcon when unset; it must be an absolute,
// non-relative, non-root, non-system path, with symlinks resolved.
// PM_API_TOKEN is required (transport auth has nothing to check against
// otherwise). PM_API_ALLOWED_ORIGINS is an optional comma list.
func ResolveEnv() (*Env, error) {
	home, err := resolveFalconHome(os.Getenv("FALCON_HOME"))
	if err != nil {
		return nil, err
	}

	token := os.Getenv("PM_API_TOKEN")
	if token == "" {
		return nil, falconerrors.ConfigurationError("PM_API_TOKEN", "required for transport auth")
	}

	var origins []string
	if raw := os.Getenv("PM_API_ALLOWED_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				origins = append(origins, o)
			}
		}
	}

	agentBinary := os.Getenv("FALCON_AGENT_BINARY")
	if agentBinary == "" {
		agentBinary = "claude"
	}
	defaultModel := os.Getenv("FALCON_DEFAULT_MODEL")
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-5"
	}

	return &Env{
		FalconHome:          home,
		PMAPIToken:          token,
		PMAPIAllowedOrigins: origins,
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		FalconRedisAddr:     os.Getenv("FALCON_REDIS_ADDR"),
		FalconPostgresDSN:   os.Getenv("FALCON_POSTGRES_DSN"),
		FalconAgentBinary:   agentBinary,
		FalconDefaultModel:  defaultModel,
		SlackBotToken:       os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannel:        os.Getenv("SLACK_CHANNEL"),
		Debug:               os.Getenv("FALCON_DEBUG") == "1",
	}, nil
}

var systemDirs = []string{"/", "/etc", "/usr", "/bin", "/sbin", "/var", "/sys", "/proc"}

func resolveFalconHome(raw string) (string, error) {
	if raw == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", falconerrors.ConfigurationError("FALCON_HOME", "could not resolve $HOME for the default: "+err.Error())
		}
		raw = filepath.Join(home, ".falcon")
	}

	if !filepath.IsAbs(raw) {
		return "", falconerrors.ConfigurationError("FALCON_HOME", "must be an absolute path")
	}
	if strings.Contains(raw, "..") {
		return "", falconerrors.ConfigurationError("FALCON_HOME", "must not contain '..'")
	}

	clean := filepath.Clean(raw)
	if clean == "/" {
		return "", falconerrors.ConfigurationError("FALCON_HOME", "must not be the filesystem root")
	}
	for _, dir := range systemDirs {
		if clean == dir {
			return "", falconerrors.ConfigurationError("FALCON_HOME", "must not be a system directory: "+dir)
		}
	}

	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return clean, nil
		}
		return "", falconerrors.ConfigurationError("FALCON_HOME", "could not resolve symlinks: "+err.Error())
	}
	return resolved, nil
}
