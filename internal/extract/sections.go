package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// sectionHeadings are matched case-insensitively against h1-h4 text to find
// the block describing the project. Most specific first.
var sectionHeadings = []string{
	"project overview",
	"project details",
	"project description",
	"opportunity details",
	"scope of work",
	"description",
}

// sectionSelectors locate the main content block when no heading matches.
var sectionSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
}

// strippedSelectors are removed from any candidate block before text
// extraction.
const strippedSelectors = "script, style, nav, header, footer, noscript, form"

// sectionText returns the cleaned text of the most relevant content section
// and whether a markup section (rather than the excerpt fallback) supplied
// it.
func sectionText(doc *goquery.Document, excerptRunes int) (text string, fromSection bool) {
	if heading := headingSection(doc); heading != "" {
		return heading, true
	}

	for _, selector := range sectionSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		cleaned := cleanText(sel.Clone().Find(strippedSelectors).Remove().End().Text())
		if cleaned != "" {
			return cleaned, true
		}
	}

	body := doc.Find("body").Clone()
	body.Find(strippedSelectors).Remove()
	return excerpt(cleanText(body.Text()), excerptRunes), false
}

// headingSection finds a heading matching a known section name and gathers
// the text of its following siblings up to the next heading.
func headingSection(doc *goquery.Document) string {
	var result string

	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		title := strings.ToLower(strings.TrimSpace(heading.Text()))
		matched := false
		for _, known := range sectionHeadings {
			if strings.Contains(title, known) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}

		var sb strings.Builder
		sb.WriteString(strings.TrimSpace(heading.Text()))
		heading.NextUntil("h1, h2, h3, h4").Not(strippedSelectors).Each(func(_ int, sibling *goquery.Selection) {
			sb.WriteString("\n")
			sb.WriteString(sibling.Text())
		})

		cleaned := cleanText(sb.String())
		if cleaned != "" {
			result = cleaned
			return false
		}
		return true
	})

	return result
}

// cleanText collapses runs of whitespace, keeping single newlines as line
// separators for the pattern extractors.
func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// excerpt truncates on a rune boundary.
func excerpt(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

// pageTitle prefers og:title, then <title>, then the first h1.
func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if title := strings.TrimSpace(og); title != "" {
			return title
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
