package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{port: 8080, correctDelay: time.Second, wrongDelay: time.Second}
	}

	require.NoError(t, valid().validate())

	for _, idle := range []time.Duration{0, time.Second, time.Hour} {
		cfg := valid()
		cfg.sessionTimeout = idle
		assert.NoError(t, cfg.validate(), idle)
	}

	for name, mutate := range map[string]func(*Config){
		"port too low":   func(c *Config) { c.port = 0 },
		"port too high":  func(c *Config) { c.port = 70000 },
		"cert only":      func(c *Config) { c.tlsCert = "cert.pem" },
		"key only":       func(c *Config) { c.tlsKey = "key.pem" },
		"negative delay": func(c *Config) { c.wrongDelay = -time.Second },
		"negative idle":  func(c *Config) { c.sessionTimeout = -time.Minute },
		"tiny idle":      func(c *Config) { c.sessionTimeout = time.Nanosecond },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestConfigScheme(t *testing.T) {
	assert.Equal(t, "http", (&Config{}).scheme())
	assert.Equal(t, "https", (&Config{tlsCert: "c", tlsKey: "k"}).scheme())
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 2*time.Second, cfg.correctDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.wrongDelay)
	assert.Equal(t, "memories.json", cfg.memories)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("MEMORYLANE_PORT", "9090")
	t.Setenv("MEMORYLANE_WRONG_DELAY", "3s")
	t.Setenv("MEMORYLANE_BIND", "10.0.0.1")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--bind", "127.0.0.1"}))
	require.NoError(t, bindEnv(newViper(), cmd.Flags()))

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 3*time.Second, cfg.wrongDelay)
	assert.Equal(t, "127.0.0.1", cfg.bind, "flags win over environment")
}

func TestBindEnvRejectsBadValues(t *testing.T) {
	t.Setenv("MEMORYLANE_PORT", "eighty")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Error(t, bindEnv(newViper(), cmd.Flags()))
}

func TestBindEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memorylane.env")
	require.NoError(t, os.WriteFile(path, []byte("MEMORYLANE_MUSIC=song.mp3\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MEMORYLANE_MUSIC") })

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", path}))
	require.NoError(t, bindEnv(newViper(), cmd.Flags()))

	assert.Equal(t, "song.mp3", cfg.music)
}

func TestBindEnvMissingFile(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", filepath.Join(t.TempDir(), "nope.env")}))

	assert.Error(t, bindEnv(newViper(), cmd.Flags()))
}
