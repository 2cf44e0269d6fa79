package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/callgate/callgate/internal/output"
)

var (
	versionExtended bool
	versionJSON     bool
)

// buildInfo is the version report; the JSON form is what deploy checks scrape.
type buildInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	EnvPrefix string `json:"env_prefix,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

func currentBuildInfo(extended bool) buildInfo {
	info := buildInfo{Service: serviceName(), Version: versionInfo.Version}
	if !extended {
		return info
	}
	info.Commit = versionInfo.Commit
	info.BuildDate = versionInfo.BuildDate
	info.Go = runtime.Version()
	if appIdentity != nil {
		info.EnvPrefix = appIdentity.EnvPrefix
	}
	v := crucible.GetVersion()
	info.Gofulmen = v.Gofulmen
	info.Crucible = v.Crucible
	return info
}

func writeBuildInfo(w io.Writer, info buildInfo, asJSON bool) error {
	if asJSON {
		return output.WriteJSON(w, info)
	}
	fmt.Fprintf(w, "%s %s\n", info.Service, info.Version)
	if info.Go == "" {
		return nil
	}
	fmt.Fprintf(w, "Commit: %s\n", info.Commit)
	fmt.Fprintf(w, "Built: %s\n", info.BuildDate)
	fmt.Fprintf(w, "Go: %s\n", info.Go)
	if info.EnvPrefix != "" {
		fmt.Fprintf(w, "Env prefix: %s\n", info.EnvPrefix)
	}
	fmt.Fprintf(w, "\nGofulmen: %s\nCrucible: %s\n", info.Gofulmen, info.Crucible)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the gateway version. Use --extended for build, Go and library versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeBuildInfo(cmd.OutOrStdout(), currentBuildInfo(versionExtended), versionJSON)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionExtended, "extended", "e", false, "show extended version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
}
