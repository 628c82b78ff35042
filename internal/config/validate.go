package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything wrong
// or suspicious about it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Searches = trimList(out.Searches)

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Polling.ScrapeSeconds <= 0 {
		res.addErr("polling.scrape_seconds must be > 0")
	} else if out.Polling.ScrapeSeconds < 60 {
		res.addWarn("polling.scrape_seconds is very low (%d) and may hammer the extractor.", out.Polling.ScrapeSeconds)
	}

	if len(out.Searches) == 0 {
		res.addWarn("searches is empty; the poller will have nothing to do.")
	}

	if out.Scrape.MaxPages < 0 {
		res.addErr("scrape.max_pages must be >= 0")
	}
	if out.Scrape.DuplicatePageLimit < 0 {
		res.addErr("scrape.duplicate_page_limit must be >= 0")
	}
	if out.Scrape.RequestsPerSec < 0 {
		res.addErr("scrape.requests_per_sec must be >= 0")
	}

	if strings.TrimSpace(out.Extractor.BaseURL) == "" {
		res.addErr("extractor.base_url is required")
	}
	if strings.TrimSpace(out.Evaluator.BaseURL) == "" {
		res.addWarn("evaluator.base_url is empty; scraped listings will not be scored.")
	}

	if out.CV.Path == "" {
		res.addWarn("cv.path is empty; register a CV before running searches.")
	}

	if out.Retention.MatchMaxAgeDays < 0 {
		res.addErr("retention.match_max_age_days must be >= 0")
	}

	return out, res
}
