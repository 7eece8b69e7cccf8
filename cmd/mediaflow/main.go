package main

import (
	"fmt"
	"os"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================
// go build -ldflags "-X main.Version=v1.0.0 -X main.Commit=$(git rev-parse HEAD)"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	app := NewApp()
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
