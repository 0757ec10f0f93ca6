//go:build unit

/*
Copyright 2024 Alexandre Mahdhaoui

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := defaultConfig()

	assert.Equal(t, "127.0.0.1", config.APIServer.Host)
	assert.Equal(t, 0, config.APIServer.Port)
	assert.Equal(t, "", config.APIServer.BasicAuth.User)
	assert.Equal(t, "/metrics", config.MetricsServer.Path)
	assert.Equal(t, 0, config.MetricsServer.Port)
	assert.Equal(t, "/healthz", config.ProbesServer.LivenessPath)
	assert.Equal(t, "/readyz", config.ProbesServer.ReadinessPath)
	assert.False(t, config.AllowDuplicateNames)
	assert.False(t, config.Development)
}

func TestLoadConfig_EnvUnset(t *testing.T) {
	t.Setenv(ConfigPathEnvKey, "")

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, defaultConfig(), config)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
apiServer:
  host: 0.0.0.0
  port: 8000
  basicAuth:
    user: admin
    password: secret
metricsServer:
  port: 9090
probesServer:
  port: 9091
allowDuplicateNames: true
development: true
`

	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	t.Setenv(ConfigPathEnvKey, configPath)

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", config.APIServer.Host)
	assert.Equal(t, 8000, config.APIServer.Port)
	assert.Equal(t, "admin", config.APIServer.BasicAuth.User)
	assert.Equal(t, "secret", config.APIServer.BasicAuth.Password)
	assert.Equal(t, 9090, config.MetricsServer.Port)
	assert.Equal(t, 9091, config.ProbesServer.Port)
	assert.True(t, config.AllowDuplicateNames)
	assert.True(t, config.Development)

	// Fields the file omits keep their defaults.
	assert.Equal(t, "/metrics", config.MetricsServer.Path)
	assert.Equal(t, "/healthz", config.ProbesServer.LivenessPath)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("apiServer: [not a mapping"), 0o600)
	require.NoError(t, err)

	t.Setenv(ConfigPathEnvKey, configPath)

	config, err := loadConfig()
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Setenv(ConfigPathEnvKey, "/nonexistent/path/config.yaml")

	config, err := loadConfig()
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "reading config file")
}
