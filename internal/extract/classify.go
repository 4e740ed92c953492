package extract

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Defaults applied when no keyword set matches.
const (
	DefaultProjectStatus = "Lead"
	DefaultSector        = "Technology"
)

// statusKeywords classify a coarse project status.
var statusKeywords = map[string][]string{
	"In Progress": {"in progress", "under construction", "ongoing", "underway", "active project"},
	"Planned":     {"planned", "upcoming", "proposed", "pre-solicitation", "request for proposal", "accepting bids", "accepting proposals"},
	"Completed":   {"completed", "awarded", "closed", "finished", "contract award"},
}

// sectorKeywords classify a market sector.
var sectorKeywords = map[string][]string{
	"Construction":   {"construction", "renovation", "paving", "roofing", "hvac", "building", "infrastructure", "water main"},
	"Healthcare":     {"healthcare", "hospital", "medical", "clinic", "health services"},
	"Technology":     {"software", "technology", "it services", "cloud", "network", "cybersecurity", "data center"},
	"Education":      {"school", "university", "education", "campus", "district"},
	"Transportation": {"transportation", "transit", "highway", "bridge", "airport", "railway"},
	"Energy":         {"energy", "solar", "utility", "electric", "water treatment", "wastewater"},
}

// Classifier matches keyword sets against page text in one automaton pass
// per category.
type Classifier struct {
	status *keywordMatcher
	sector *keywordMatcher
}

// NewClassifier builds the keyword automatons.
func NewClassifier() *Classifier {
	return &Classifier{
		status: newKeywordMatcher(statusKeywords),
		sector: newKeywordMatcher(sectorKeywords),
	}
}

// ClassifyStatus returns the best project status label, or empty with zero
// confidence when no keyword hits. The caller applies the safe default after
// the model pass had its chance.
func (c *Classifier) ClassifyStatus(text string) (string, float64) {
	label, hits := c.status.best(strings.ToLower(text))
	if hits == 0 {
		return "", 0
	}
	return label, confidenceHigh
}

// ClassifySector returns the best market sector label, or empty with zero
// confidence when no keyword hits.
func (c *Classifier) ClassifySector(text string) (string, float64) {
	label, hits := c.sector.best(strings.ToLower(text))
	if hits == 0 {
		return "", 0
	}
	return label, confidenceHigh
}

// keywordMatcher maps automaton hit indices back to their labels.
type keywordMatcher struct {
	matcher *ahocorasick.Matcher
	labels  []string // label per keyword index
	order   []string // stable label order for tie breaking
}

func newKeywordMatcher(sets map[string][]string) *keywordMatcher {
	// Stable iteration so ties always break the same way.
	order := make([]string, 0, len(sets))
	for label := range sets {
		order = append(order, label)
	}
	sort.Strings(order)

	var keywords []string
	var labels []string
	for _, label := range order {
		for _, kw := range sets[label] {
			keywords = append(keywords, strings.ToLower(kw))
			labels = append(labels, label)
		}
	}

	return &keywordMatcher{
		matcher: ahocorasick.NewStringMatcher(keywords),
		labels:  labels,
		order:   order,
	}
}

// best returns the label with the most unique keyword hits.
func (m *keywordMatcher) best(lowerText string) (string, int) {
	hits := make(map[string]int)
	for _, idx := range m.matcher.Match([]byte(lowerText)) {
		hits[m.labels[idx]]++
	}

	bestLabel := ""
	bestCount := 0
	for _, label := range m.order {
		if hits[label] > bestCount {
			bestLabel = label
			bestCount = hits[label]
		}
	}
	return bestLabel, bestCount
}
