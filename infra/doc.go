// Package infra contains technical adapters: the Paho MQTT client, the
// zerolog logger, the InfluxDB store and the Prometheus recorder. These
// packages depend only on the interfaces defined under core.
package infra
