package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-certwatch/internal/application"
)

type appContextKey struct{}

// AppContext carries what every command needs after root initialization.
type AppContext struct {
	Logger   *zap.SugaredLogger
	DataDir  string
	Config   *CLIConfig
	Services *application.Container
}

// globalAppContext backs getAppContext when a command runs without a
// context, as happens in tests that invoke RunE directly.
var globalAppContext *AppContext

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if ctx := cmd.Context(); ctx != nil {
		if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

// logger returns the desugared logger handed to internal packages.
func (a *AppContext) logger() *zap.Logger {
	if a == nil || a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger.Desugar()
}
