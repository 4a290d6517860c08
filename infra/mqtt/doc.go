// Package mqtt wraps the Eclipse Paho client behind a small interface used
// by the rest of the service. It handles connection setup (credentials,
// keep-alive, TLS, last-will), automatic resubscription after reconnects
// and publish retries with exponential backoff.
package mqtt
