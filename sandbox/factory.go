package sandbox

import (
	"go.uber.org/zap"

	"codesession/config"
)

// NewProvider picks the sandbox backend from configuration: the hosted
// API when an API key is set, local Docker containers otherwise.
func NewProvider(cfg config.Config, logger *zap.Logger) (Provider, error) {
	if cfg.SandboxAPIKey != "" {
		logger.Info("using remote sandbox provider", zap.String("url", cfg.SandboxAPIURL))
		return NewRemoteProvider(cfg.SandboxAPIURL, cfg.SandboxAPIKey), nil
	}

	logger.Info("using local Docker sandbox provider", zap.String("image", cfg.SandboxImage))
	return NewDockerProvider(cfg.SandboxImage)
}
