package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML configuration file
type FileConfig struct {
	Accounts  []FileAccount `yaml:"accounts"`
	Responder FileResponder `yaml:"responder"`
}

// FileAccount declares one account in the YAML file
type FileAccount struct {
	ID             string               `yaml:"id"`
	AppID          string               `yaml:"app_id"`
	AppSecret      string               `yaml:"app_secret"`
	Domain         string               `yaml:"domain"`
	DebounceMS     int                  `yaml:"debounce_ms"`
	RequireMention *bool                `yaml:"require_mention"`
	SessionPrefix  string               `yaml:"session_prefix"`
	Groups         map[string]FileGroup `yaml:"groups"`
}

// FileGroup contains per-conversation overrides
type FileGroup struct {
	RequireMention *bool `yaml:"require_mention"`
}

// FileResponder contains responder settings
type FileResponder struct {
	SystemPrompt string `yaml:"system_prompt"`
	HistoryLimit int    `yaml:"history_limit"`
}

func (a FileAccount) toAccountConfig() AccountConfig {
	acct := AccountConfig{
		ID:             a.ID,
		AppID:          os.ExpandEnv(a.AppID),
		AppSecret:      os.ExpandEnv(a.AppSecret),
		Domain:         a.Domain,
		DebounceWindow: time.Duration(a.DebounceMS) * time.Millisecond,
		RequireMention: a.RequireMention,
		SessionPrefix:  a.SessionPrefix,
	}
	if len(a.Groups) > 0 {
		acct.Groups = make(map[string]GroupConfig, len(a.Groups))
		for id, g := range a.Groups {
			acct.Groups[id] = GroupConfig{RequireMention: g.RequireMention}
		}
	}
	return acct
}

// LoadFile loads the YAML configuration. An explicit path must exist;
// without one the default locations are tried and a missing file yields nil.
func LoadFile(configPath string) (*FileConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/relay.yaml",
			"/etc/feishu-relay/relay.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "relay.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
		if configPath != "" {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}
	if data == nil {
		return nil, nil
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", loadedPath, err)
	}
	return &cfg, nil
}
