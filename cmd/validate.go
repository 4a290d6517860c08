package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mqttap/mqttap/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configuration file parses and validates",
	RunE:  validate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cmd.Printf("configuration OK: broker %s, %d topic(s)\n", cfg.Broker.BrokerURL(), len(cfg.Topics))
	return nil
}
