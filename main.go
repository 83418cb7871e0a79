package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gowvp/moodline/internal/app"
	"github.com/gowvp/moodline/internal/conf"
	"github.com/ixugo/goddd/pkg/system"
)

// buildVersion 编译时通过 -ldflags 注入
var buildVersion = "0.0.1"

var configPath = flag.String("conf", "", "config file path, default configs/config.toml")

func main() {
	flag.Parse()

	path := *configPath
	if path == "" {
		path = filepath.Join(system.Getwd(), "configs", "config.toml")
	}
	bc, err := conf.SetupConfig(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	bc.BuildVersion = buildVersion

	if err := app.Run(bc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
