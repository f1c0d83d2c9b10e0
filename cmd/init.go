package cmd

import (
	"github.com/spf13/cobra"

	"github.com/semlink/semlink/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize semlink configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure semlink for your vault and generates a .semlink.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
