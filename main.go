// Package main is the entry point for the decibelle application.
package main

import (
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/cmd"
	"github.com/decibelle-cli/decibelle/config"
	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/log"
	"github.com/decibelle-cli/decibelle/style"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	style.ApplyTheme(viper.GetString(key.TUITheme))

	cmd.Execute()
}
