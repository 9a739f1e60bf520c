package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	output  string
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "deadbolt",
	Short: "Deadbolt authorization demo server and constraint checker",
}

func Execute() error { return rootCmd.Execute() }

func init() {
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format: json|yaml")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (defaults plus DEADBOLT_ env when empty)")

	rootCmd.AddCommand(cmdServe(), cmdCheck(), cmdToken(), cmdUsers(), cmdVersion())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:   "help",
		Short: "Show help",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Root().Help()
		},
	})
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "Use -h for help, for example: deadbolt check --user greet restrict foo,bar")
	}
}
