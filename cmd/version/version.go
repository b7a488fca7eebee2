package version

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/llmscan/pkg/shared/config"
)

var (
	AppConfig     *config.Config
	CoreVersion   = "unknown"
	GolangVersion = "unknown"
	BuildTime     = "unknown"
)

// Versions holds build information of the binary and the configured models.
type Versions struct {
	Version       string `json:"version"`
	GolangVersion string `json:"golang_version"`
	BuildTime     string `json:"build_time"`
	Model         string `json:"model"`
	RefineModel   string `json:"refine_model"`
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// NewVersionCmd creates a new cobra.Command for the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version number of the application and the configured models",
		Run: func(cmd *cobra.Command, args []string) {
			printVersionInfo(cmd.OutOrStdout(), currentVersions(AppConfig))
		},
	}
}

// currentVersions collects build information and the models in use.
func currentVersions(cfg *config.Config) Versions {
	v := Versions{
		Version:       CoreVersion,
		GolangVersion: GolangVersion,
		BuildTime:     BuildTime,
		Model:         "unknown",
		RefineModel:   "unknown",
	}
	if cfg != nil {
		v.Model = config.SetThen(cfg.Oracle.Model, v.Model)
		v.RefineModel = config.SetThen(cfg.Oracle.RefineModel, v.Model)
	}
	return v
}

// printVersionInfo prints the version information for the core application and models.
func printVersionInfo(w io.Writer, versions Versions) {
	fmt.Fprintf(w, "Core Version: v%s\n", versions.Version)
	fmt.Fprintf(w, "Model: %s\n", versions.Model)
	fmt.Fprintf(w, "Refine Model: %s\n", versions.RefineModel)
	fmt.Fprintf(w, "Go Version: %s\n", versions.GolangVersion)
	fmt.Fprintf(w, "Build Time: %s\n", versions.BuildTime)
}
