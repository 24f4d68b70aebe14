// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. The
// archive root is created here so the first completed signing does not race
// directory creation against the file server.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := os.MkdirAll(appCfg.MediaRoot, 0o755); err != nil {
		return fmt.Errorf("create media root: %w", err)
	}
	logger.Info("agreement archive ready", zap.String("root", appCfg.MediaRoot))
	return nil
}
