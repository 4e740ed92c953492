package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// opportunityKeywords mark a link as worth following from a landing page.
var opportunityKeywords = []string{
	"project",
	"tender",
	"rfp",
	"rfq",
	"bid",
	"solicitation",
	"procurement",
	"contract",
	"grant",
	"opportunit",
}

// documentExtensions identify attachment links worth recording.
var documentExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".rtf"}

// imageExtensions identify inline images worth recording.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// harvestLinks collects same-host links whose anchor text or href matches an
// opportunity keyword, de-duplicated, capped at max.
func harvestLinks(doc *goquery.Document, pageURL string, max int) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	links := make([]string, 0, max)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		resolved := resolveLink(base, href)
		if resolved == "" || seen[resolved] || resolved == pageURL {
			return true
		}
		if !sameHost(base, resolved) {
			return true
		}

		haystack := strings.ToLower(sel.Text() + " " + href)
		if !containsAny(haystack, opportunityKeywords) {
			return true
		}

		seen[resolved] = true
		links = append(links, resolved)
		return len(links) < max
	})

	return links
}

// documentLinks collects attachment URLs by extension or download keyword.
func documentLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved := resolveLink(base, href)
		if resolved == "" || seen[resolved] {
			return
		}

		lower := strings.ToLower(resolved)
		isDoc := hasAnySuffix(strings.SplitN(lower, "?", 2)[0], documentExtensions)
		if !isDoc {
			text := strings.ToLower(sel.Text())
			isDoc = strings.Contains(text, "download") || strings.Contains(text, "attachment")
		}
		if !isDoc {
			return
		}

		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}

// imageLinks collects image URLs by extension.
func imageLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		resolved := resolveLink(base, src)
		if resolved == "" || seen[resolved] {
			return
		}
		lower := strings.SplitN(strings.ToLower(resolved), "?", 2)[0]
		if !hasAnySuffix(lower, imageExtensions) {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}

// resolveLink resolves href against base, dropping fragments and
// non-HTTP schemes.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "tel:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func sameHost(base *url.URL, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Host == base.Host
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
