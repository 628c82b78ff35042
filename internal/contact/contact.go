// Package contact derives a recipient address for an application from
// the posting itself. An address actually present in the posting is
// trusted; anything guessed is flagged low-confidence so the UI forces
// explicit confirmation before sending.
package contact

import (
	"context"
	"database/sql"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobmatch-engine/internal/queue"
	"jobmatch-engine/internal/store"
)

var addressRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Derive finds the best recipient for a match. Order of preference:
// a mailto: link in the posting HTML, a plain address in the text, and
// last a role-based guess against the company's mail domain.
func Derive(ctx context.Context, db *sql.DB, m store.MatchRecord) (queue.Recipient, error) {
	if email := fromHTML(string(m.RawPayload)); email != "" {
		return queue.Recipient{Email: email}, nil
	}

	domain, err := companyDomain(ctx, db, m)
	if err != nil {
		return queue.Recipient{}, err
	}
	if domain == "" {
		return queue.Recipient{}, store.ErrNotFound
	}
	return queue.Recipient{Email: "jobs@" + domain, LowConfidence: true}, nil
}

// fromHTML scans the raw posting payload for an explicit address.
func fromHTML(raw string) string {
	if raw == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err == nil {
		var found string
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			href = strings.TrimSpace(href)
			if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
				return true
			}
			addr := strings.TrimPrefix(href, "mailto:")
			if i := strings.IndexAny(addr, "?&"); i >= 0 {
				addr = addr[:i]
			}
			if addressRe.MatchString(addr) {
				found = strings.ToLower(addr)
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
		// plain-text address somewhere in the document body
		if addr := addressRe.FindString(doc.Text()); addr != "" {
			return strings.ToLower(addr)
		}
	}

	// payload wasn't HTML at all; scan it as plain text
	return strings.ToLower(addressRe.FindString(raw))
}

// companyDomain answers "where does this company read mail", backed by
// the company_domains cache and seeded from the job URL host.
func companyDomain(ctx context.Context, db *sql.DB, m store.MatchRecord) (string, error) {
	if cached, err := store.GetCompanyDomain(ctx, db, m.Company); err != nil {
		return "", err
	} else if cached != "" {
		return cached, nil
	}

	u, err := url.Parse(m.JobURL)
	if err != nil || u.Host == "" {
		return "", nil
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	// job-board hosts tell us nothing about the employer
	for _, board := range []string{"linkedin.com", "indeed.com", "jobs.ch", "greenhouse.io", "lever.co", "myworkdayjobs.com"} {
		if host == board || strings.HasSuffix(host, "."+board) {
			return "", nil
		}
	}

	if err := store.UpsertCompanyDomain(ctx, db, m.Company, host); err != nil {
		return "", err
	}
	return host, nil
}
