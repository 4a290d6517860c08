package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	coresink "github.com/mqttap/mqttap/core/sink"
	"github.com/mqttap/mqttap/infra/store"
)

func TestBuildSink(t *testing.T) {
	t.Run("no backend", func(t *testing.T) {
		s, err := buildSink(store.Config{})
		assert.NoError(t, err)
		assert.IsType(t, coresink.NopSink{}, s)
	})

	t.Run("jsonl only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "messages.jsonl")
		s, err := buildSink(store.Config{JSONLPath: path})
		assert.NoError(t, err)
		assert.IsType(t, &store.JSONLSink{}, s)
		assert.NoError(t, s.Close())
	})

	t.Run("influx and jsonl compose", func(t *testing.T) {
		// The unreachable influx endpoint degrades to a nop sink, but the
		// composition still fans out to both backends.
		path := filepath.Join(t.TempDir(), "messages.jsonl")
		cfg := store.Config{
			URL: "http://127.0.0.1:1", Org: "org", Bucket: "bucket",
			JSONLPath: path,
		}
		s, err := buildSink(cfg)
		assert.NoError(t, err)
		assert.IsType(t, &store.MultiSink{}, s)
		assert.NoError(t, s.Close())
	})

	t.Run("jsonl open failure", func(t *testing.T) {
		_, err := buildSink(store.Config{JSONLPath: filepath.Join(t.TempDir(), "missing", "m.jsonl")})
		assert.Error(t, err)
	})
}
