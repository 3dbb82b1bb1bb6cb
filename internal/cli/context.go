// Package cli provides the command-line interface for tally.
package cli

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/tally/internal/app"
	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/config"
)

// The config is loaded once per invocation in PersistentPreRunE; the
// application is built on first use so that help, profiles and sessions
// never open the store.
var (
	stateMu   sync.Mutex
	globalCfg *config.Config
	globalApp *app.Application
)

func setConfig(cfg *config.Config) {
	stateMu.Lock()
	defer stateMu.Unlock()
	globalCfg = cfg
}

// currentConfig returns the loaded config, or defaults before loading
func currentConfig() *config.Config {
	stateMu.Lock()
	defer stateMu.Unlock()
	if globalCfg == nil {
		return config.Default()
	}
	return globalCfg
}

// requireApp returns the application, creating it on first call
func requireApp(cmd *cobra.Command) (*app.Application, error) {
	stateMu.Lock()
	defer stateMu.Unlock()
	if globalApp != nil {
		return globalApp, nil
	}
	cfg := globalCfg
	if cfg == nil {
		cfg = config.Default()
	}
	a, err := app.New(commandContext(cmd), cfg)
	if err != nil {
		return nil, err
	}
	globalApp = a
	return a, nil
}

func closeApp() {
	stateMu.Lock()
	a := globalApp
	globalApp = nil
	stateMu.Unlock()
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Close(ctx)
}

// vault returns the session vault without building the application
func vault() *auth.Vault {
	stateMu.Lock()
	a := globalApp
	stateMu.Unlock()
	if a != nil {
		return a.Vault
	}
	return auth.NewVault(app.SessionsDir(currentConfig()))
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
