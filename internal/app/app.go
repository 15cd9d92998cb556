package app

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/config"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/service"
)

// Application bundles the wired components behind the CLI commands.
type Application struct {
	Config    *config.Config
	Logger    ports.Logger
	Pipeline  ports.ProvisioningPipeline
	Inspector *service.Inspector
	Reporter  ports.Reporter
}

// Provision runs the pipeline once and reports the result. The returned
// error reflects the run outcome; the report is written either way so a
// partial run still shows which steps made it.
func (a *Application) Provision(ctx context.Context) error {
	a.Logger.Infof(ctx, "Starting knowledge base provisioning")

	result, runErr := a.Pipeline.Run(ctx)
	if result != nil {
		if repErr := a.Reporter.Report(ctx, result); repErr != nil {
			a.Logger.Errorf(ctx, repErr, "Failed to write run report")
		}
	}
	if runErr != nil {
		a.Logger.Errorf(ctx, runErr, "Provisioning failed")
		return runErr
	}

	a.Logger.Infof(ctx, "Provisioning completed successfully")
	return nil
}
