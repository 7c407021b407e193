package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xkonsti/chatd/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Write a configuration file with default values.

The file is written to $XDG_CONFIG_HOME/chatd/config.yaml unless --config
names another path. Existing files are preserved unless --force is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if cfgFile != "" {
		configPath = cfgFile
		err = config.InitConfigToPath(cfgFile, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: chatd start")
	return nil
}
