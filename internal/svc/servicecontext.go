// Package svc wires the long-lived service dependencies together: settings,
// sessions, history, the profile tracker, context sources and the agent.
// Handlers receive one ServiceContext and reach everything through it.
package svc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/agent"
	"github.com/serendipitylabs/serendipity/internal/discovery"
	"github.com/serendipitylabs/serendipity/internal/history"
	"github.com/serendipitylabs/serendipity/internal/profile"
	"github.com/serendipitylabs/serendipity/internal/session"
	"github.com/serendipitylabs/serendipity/internal/settings"
	"github.com/serendipitylabs/serendipity/internal/sources"
)

// EnvAPIKey names the Anthropic credential variable.
const EnvAPIKey = "ANTHROPIC_API_KEY"

// Config carries the paths and credentials the service context is built
// from. Zero-value fields fall back to the default base directory layout.
type Config struct {
	BaseDir      string
	SettingsPath string
	HistoryPath  string
	APIKey       string
}

func (c *Config) applyDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = settings.DefaultBaseDir()
	}
	if c.SettingsPath == "" {
		c.SettingsPath = filepath.Join(c.BaseDir, "settings.yaml")
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(c.BaseDir, "history.db")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}
}

// ServiceContext is the per-process dependency bundle.
type ServiceContext struct {
	Config       Config
	Logger       *zap.Logger
	Settings     *settings.Resolver
	Sessions     *session.Store
	History      *history.Store
	Tracker      *profile.Tracker
	Agent        agent.Agent
	Orchestrator *discovery.Orchestrator

	mu       sync.Mutex
	registry *sources.Registry
}

// NewServiceContext builds the bundle. The source registry reflects the
// settings at startup; ReloadSources rebuilds it after a settings change.
func NewServiceContext(cfg Config, logger *zap.Logger) (*ServiceContext, error) {
	cfg.applyDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s is not set", EnvAPIKey)
	}

	resolver := settings.NewResolver(cfg.SettingsPath)
	eff, warnings := resolver.Resolve()
	for _, w := range warnings {
		logger.Warn("settings warning", zap.String("warning", w))
	}

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	s := &ServiceContext{
		Config:   cfg,
		Logger:   logger,
		Settings: resolver,
		Sessions: session.NewStore(),
		History:  hist,
		Tracker:  profile.NewTracker(ProfilePath(eff), logger),
		Agent:    agent.NewClaude(cfg.APIKey, logger),
		registry: sources.FromSettings(eff, logger),
	}
	s.Orchestrator = discovery.New(discovery.Config{
		Agent:    s.Agent,
		Settings: resolver,
		Tracker:  s.Tracker,
		Context:  s,
		Recorder: hist,
		Logger:   logger,
	})
	return s, nil
}

// ProfilePath locates the profile document for a settings snapshot.
func ProfilePath(eff *settings.Effective) string {
	return sources.ExpandPath(filepath.Join("{profile_dir}", "{profile_name}"), eff.Profile)
}

// ReloadSources rebuilds the source registry from the current settings.
// Called after every settings update so new sources take effect without a
// restart.
func (s *ServiceContext) ReloadSources() {
	eff, _ := s.Settings.Resolve()
	fresh := sources.FromSettings(eff, s.Logger)

	s.mu.Lock()
	old := s.registry
	s.registry = fresh
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (s *ServiceContext) currentRegistry() *sources.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

// Sections implements discovery.ContextProvider.
func (s *ServiceContext) Sections(ctx context.Context) ([]string, []string) {
	return s.currentRegistry().Sections(ctx)
}

// Tools implements discovery.ContextProvider.
func (s *ServiceContext) Tools() []agent.ToolDef {
	return s.currentRegistry().Tools()
}

// Executor implements discovery.ContextProvider.
func (s *ServiceContext) Executor() agent.ToolExecutor {
	return s.currentRegistry().Executor()
}

// Close releases everything the context holds open.
func (s *ServiceContext) Close() {
	s.Tracker.Close()
	s.currentRegistry().Close()
	if err := s.History.Close(); err != nil {
		s.Logger.Warn("closing history", zap.Error(err))
	}
}
