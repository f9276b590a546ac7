package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/config"
	"github.com/dialtone-ai/greenroom/internal/db"
	"github.com/dialtone-ai/greenroom/internal/llm"
	"github.com/dialtone-ai/greenroom/internal/runtime"
	"gorm.io/gorm"
)

const defaultConfigPath = "greenroom.yaml"

// connectFromConfig loads config and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite", "":
		return db.ConnectLocal(cfg.Database.Path)
	case "mysql":
		return db.Connect(cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// generatorFromConfig builds the OpenAI-backed generator. The API key
// comes from OPENAI_API_KEY.
func generatorFromConfig(cfg *config.Config) (llm.Generator, error) {
	return llm.NewOpenAI(llm.OpenAIOpts{Config: cfg.Generator})
}

// syncerFromConfig builds the runtime syncer, or a no-op when no sync
// endpoint is configured.
func syncerFromConfig(cfg *config.Config) runtime.Syncer {
	if cfg.Runtime.SyncURL == "" {
		return runtime.Nop{}
	}
	s, err := runtime.NewHTTPSyncer(cfg.Runtime)
	if err != nil {
		return runtime.Nop{}
	}
	return s
}

// pushCurrent pushes compiled text to the agent's runtime best-effort.
// Failures are reported, not fatal; the stored version is the source of
// truth.
func pushCurrent(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, agentID, compiledText string) {
	a, err := agent.Get(gormDB, agentID)
	if err != nil || a.RuntimeHandle == "" {
		return
	}
	syncer := syncerFromConfig(cfg)
	if err := syncer.PushScript(cmd.Context(), a.RuntimeHandle, compiledText); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: runtime sync failed: %v\n", err)
	}
}
