package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample stratum configuration file.

By default, the configuration file is created at ./config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  stratum init

  # Initialize with custom path
  stratum init --config /etc/stratum/config.yaml

  # Force overwrite existing config
  stratum init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = "config.yaml"
	}

	if err := config.WriteSample(configPath, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Printf("  2. Run the stress harness: stratum stress --config %s\n", configPath)

	return nil
}
