package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// EnsureUserConfig makes sure a config.yml exists in the data dir,
// seeding it from defaultPath on first run, or from the built-in
// defaults when no default file ships alongside the binary.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	src, err := os.Open(defaultPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if werr := os.WriteFile(userPath, []byte(defaultYAML), 0o644); werr != nil {
				return "", werr
			}
			return userPath, nil
		}
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(userPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return userPath, nil
}

const defaultYAML = `app:
  port: 38471
  data_dir: .

polling:
  scrape_seconds: 3600

searches:
  - "IT"

cv:
  path: ""
  display_name: ""
  summary_path: ""

scrape:
  max_pages: 10
  duplicate_page_limit: 1
  max_page_failures: 3
  requests_per_sec: 1
  burst: 2

extractor:
  base_url: "http://127.0.0.1:39200"
  timeout_seconds: 60

evaluator:
  base_url: "http://127.0.0.1:39300"

retention:
  match_max_age_days: 90
`
