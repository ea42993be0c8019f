// Package cmd implements the command-line interface for decibelle.
package cmd

import (
	"fmt"
	"os"
	"strings"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/color"
	"github.com/decibelle-cli/decibelle/constant"
	"github.com/decibelle-cli/decibelle/icon"
	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/log"
	"github.com/decibelle-cli/decibelle/style"
	"github.com/decibelle-cli/decibelle/termgfx"
	"github.com/decibelle-cli/decibelle/tui"
	"github.com/decibelle-cli/decibelle/util"
	"github.com/decibelle-cli/decibelle/version"
	"github.com/decibelle-cli/decibelle/where"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().BoolP("plain-icons", "I", false, "Use plain ASCII icons instead of Unicode symbols")
	lo.Must0(viper.BindPFlag(key.IconsPlain, rootCmd.PersistentFlags().Lookup("plain-icons")))

	rootCmd.PersistentFlags().StringP("server", "u", "", "Audiobookshelf server URL")
	lo.Must0(viper.BindPFlag(key.ServerURL, rootCmd.PersistentFlags().Lookup("server")))

	rootCmd.PersistentFlags().StringP("protocol", "p", "", "Force a terminal image protocol (kitty, iterm2, sixel, halfblocks)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("protocol", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			termgfx.Kitty.String(),
			termgfx.ITerm2.String(),
			termgfx.Sixel.String(),
			termgfx.Halfblocks.String(),
		}, cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.ImageProtocol, rootCmd.PersistentFlags().Lookup("protocol")))

	rootCmd.PersistentFlags().BoolP("write-history", "H", true, "Persist listening progress to the local history")
	lo.Must0(viper.BindPFlag(key.HistorySaveOnListen, rootCmd.PersistentFlags().Lookup("write-history")))

	rootCmd.Flags().BoolP("continue", "c", false, "Resume the most recently played book")

	helpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpFunc(cmd, args)
		version.Notify()
	})

}

// rootCmd defines the entry point for the decibelle application.
var rootCmd = &cobra.Command{
	Use:   constant.Decibelle,
	Short: "A terminal client for Audiobookshelf with inline cover art",
	Long: constant.AsciiArtLogo + "\n" +
		style.New().Italic(true).Foreground(color.HiRed).Render("    - A terminal client for Audiobookshelf with inline cover art"),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		icon.SetPlain(viper.GetBool(key.IconsPlain))
	},
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}

		// Downloaded track files from previous runs are useless now.
		// Done before the TUI starts so the cleanup cannot race a fresh
		// download landing in the same directory.
		_ = util.Delete(where.Temp())

		options := tui.Options{
			Continue: lo.Must(cmd.Flags().GetBool("continue")),
		}
		handleErr(tui.Run(&options))
	},
}

// Execute initializes child command routing and processes the CLI entry point.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func handleErr(err error) {
	if err != nil {
		log.Error(err)
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Fail), strings.Trim(err.Error(), " \n"))
		os.Exit(1)
	}
}
