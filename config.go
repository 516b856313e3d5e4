// Package forseti ties the telemetry recorder to its process-level
// surroundings: configuration, the bridge runtime and child process, the
// session history store and the session handoff staging area.
package forseti

import (
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/daztec2025/forseti-recorder/internal/recorder"
)

type Config struct {
	Bridge  BridgeConfig     `yaml:"bridge"`
	HTTP    HTTPConfig       `yaml:"http"`
	Storage StorageConfig    `yaml:"storage"`
	Profile recorder.Profile `yaml:"profile"`
}

type BridgeConfig struct {
	// URL of the bridge service, e.g. http://localhost:5555
	URL            string `yaml:"url"`
	RequestTimeout string `yaml:"request_timeout"`

	// ScriptPath locates the bridge script launched by the supervisor.
	// Empty disables process supervision (an externally managed bridge).
	ScriptPath string `yaml:"script_path"`

	// BundledRuntimePath is the highest-priority python runtime candidate.
	BundledRuntimePath string `yaml:"bundled_runtime_path"`
	RuntimeRetryWait   string `yaml:"runtime_retry_wait"`
	RuntimeRetryLimit  int    `yaml:"runtime_retry_limit"`
}

func (bc BridgeConfig) GetRequestTimeout() time.Duration {
	return parseDuration(bc.RequestTimeout, time.Second*2)
}

func (bc BridgeConfig) GetRuntimeRetryWait() time.Duration {
	return parseDuration(bc.RuntimeRetryWait, time.Second*30)
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type StorageConfig struct {
	// DataFile is the bbolt database holding session history.
	DataFile string `yaml:"data_file"`

	// StagingDir receives serialized session documents during handoff.
	StagingDir string `yaml:"staging_dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			URL:               "http://localhost:5555",
			RequestTimeout:    "2s",
			RuntimeRetryWait:  "30s",
			RuntimeRetryLimit: 20,
		},
		HTTP: HTTPConfig{
			Port: 5560,
		},
		Storage: StorageConfig{
			DataFile:   "./forseti-sessions.db",
			StagingDir: "./staging",
		},
	}
}

func ReadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := ioutil.ReadFile(path)

	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}

	d, err := time.ParseDuration(value)

	if err != nil {
		return fallback
	}

	return d
}
