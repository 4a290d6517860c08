package main

import (
	"os"

	"github.com/mqttap/mqttap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
