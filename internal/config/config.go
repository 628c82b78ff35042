package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Polling struct {
		ScrapeSeconds int `yaml:"scrape_seconds" json:"scrape_seconds"`
	} `yaml:"polling" json:"polling"`

	// Searches are the terms every poll cycle runs against the active CV.
	Searches []string `yaml:"searches" json:"searches"`

	CV struct {
		Path        string `yaml:"path" json:"path"`
		DisplayName string `yaml:"display_name" json:"display_name"`
		SummaryPath string `yaml:"summary_path" json:"summary_path"`
	} `yaml:"cv" json:"cv"`

	Scrape struct {
		MaxPages           int     `yaml:"max_pages" json:"max_pages"`
		DuplicatePageLimit int     `yaml:"duplicate_page_limit" json:"duplicate_page_limit"`
		MaxPageFailures    int     `yaml:"max_page_failures" json:"max_page_failures"`
		RequestsPerSec     float64 `yaml:"requests_per_sec" json:"requests_per_sec"`
		Burst              int     `yaml:"burst" json:"burst"`
	} `yaml:"scrape" json:"scrape"`

	Extractor struct {
		BaseURL        string `yaml:"base_url" json:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"extractor" json:"extractor"`

	Evaluator struct {
		BaseURL string `yaml:"base_url" json:"base_url"`
	} `yaml:"evaluator" json:"evaluator"`

	Retention struct {
		MatchMaxAgeDays int `yaml:"match_max_age_days" json:"match_max_age_days"`
	} `yaml:"retention" json:"retention"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
