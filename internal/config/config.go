package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir             string `json:"data_dir"`
	LogLevel            string `json:"log_level"`
	MaxCollabConcurrent int    `json:"max_collab_concurrent"`
	LLM                 struct {
		Provider    string  `json:"provider"`
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`
	Compression struct {
		BudgetTokens  int `json:"budget_tokens"`
		CeilingTokens int `json:"ceiling_tokens"`
		TargetTokens  int `json:"target_tokens"`
		IdleTurns     int `json:"idle_turns"`
		ChunkTokens   int `json:"chunk_tokens"`
	} `json:"compression"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:             filepath.Join(os.Getenv("HOME"), ".chronicler"),
		LogLevel:            "info",
		MaxCollabConcurrent: 2,
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 1000
	cfg.LLM.Temperature = 0.8
	cfg.Compression.BudgetTokens = 1500
	cfg.Compression.CeilingTokens = 3000
	cfg.Compression.TargetTokens = 256
	cfg.Compression.IdleTurns = 6
	cfg.Compression.ChunkTokens = 1500

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if dataDir := os.Getenv("CHRONICLER_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, nil
}

// Save writes the config atomically (temp file then rename).
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
