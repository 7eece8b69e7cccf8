package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// 不需要加载配置
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:   Version,
				Commit:    Commit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, info)
			}
			fmt.Fprintf(a.stdout, "mediaflow %s\n", info.Version)
			fmt.Fprintf(a.stdout, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(a.stdout, "  built:      %s\n", info.BuildDate)
			fmt.Fprintf(a.stdout, "  go version: %s\n", info.GoVersion)
			fmt.Fprintf(a.stdout, "  platform:   %s\n", info.Platform)
			return nil
		},
	}
}
