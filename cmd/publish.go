package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mqttap/mqttap/config"
	"github.com/mqttap/mqttap/infra/mqtt"
)

var (
	pubTopic   string
	pubPayload string
	pubQoS     uint8
	pubRetain  bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a one-off message using the configured broker connection",
	RunE:  publish,
}

func init() {
	publishCmd.Flags().StringVarP(&pubTopic, "topic", "t", "", "topic to publish to")
	publishCmd.Flags().StringVarP(&pubPayload, "payload", "p", "", "message payload")
	publishCmd.Flags().Uint8VarP(&pubQoS, "qos", "q", 0, "quality of service (0..2)")
	publishCmd.Flags().BoolVar(&pubRetain, "retain", false, "set the retained flag")
	_ = publishCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(publishCmd)
}

func publish(cmd *cobra.Command, args []string) error {
	if pubQoS > 2 {
		return fmt.Errorf("qos %d out of range", pubQoS)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := mqtt.NewPahoClient(cfg.Broker)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	if err := client.Publish(pubTopic, pubQoS, pubRetain, []byte(pubPayload)); err != nil {
		return err
	}
	cmd.Printf("published %d bytes to %s\n", len(pubPayload), pubTopic)
	return nil
}
