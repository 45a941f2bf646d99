// Package readiness decides whether enough article text has rendered to
// make extraction worthwhile.
package readiness

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/pagerender/internal/models"
	"golang.org/x/net/html"
)

// ContainerSelectors are the article-like regions scanned for paragraphs.
// Keep in step with internal/scripts/readiness.js.
var ContainerSelectors = []string{
	"article",
	`[role="article"]`,
	`[role="main"]`,
	"main",
	`[itemprop="articleBody"]`,
	".article-body",
	".article-content",
	".post-content",
	".entry-content",
	".story-body",
	".content",
	"#content",
	"#main-content",
}

// Criteria are the thresholds of the readiness predicate
type Criteria struct {
	MinParagraphs      int // meaningful paragraphs required
	MinTotalText       int // summed length of meaningful paragraphs required
	MinParagraphLength int // a paragraph is meaningful when longer than this
}

// DefaultCriteria returns 3 paragraphs, 500 characters, paragraphs over 50 characters
func DefaultCriteria() Criteria {
	return Criteria{
		MinParagraphs:      3,
		MinTotalText:       500,
		MinParagraphLength: 50,
	}
}

// Evaluate builds a report from raw counts
func (c Criteria) Evaluate(paragraphCount, totalTextLength int) models.ReadinessReport {
	return models.ReadinessReport{
		HasContent:      paragraphCount >= c.MinParagraphs && totalTextLength >= c.MinTotalText,
		ParagraphCount:  paragraphCount,
		TotalTextLength: totalTextLength,
	}
}

// Measure parses an HTML snapshot and applies the predicate to it
func Measure(markup string, c Criteria) (models.ReadinessReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return models.ReadinessReport{}, fmt.Errorf("failed to parse html: %w", err)
	}
	return MeasureDocument(doc, c), nil
}

// MeasureDocument applies the predicate to a parsed document. A paragraph
// inside several matching containers is counted once.
func MeasureDocument(doc *goquery.Document, c Criteria) models.ReadinessReport {
	counted := make(map[*html.Node]struct{})
	count, total := 0, 0
	doc.Find(strings.Join(ContainerSelectors, ", ")).Find("p").Each(func(_ int, p *goquery.Selection) {
		node := p.Get(0)
		if _, dup := counted[node]; dup {
			return
		}
		counted[node] = struct{}{}

		length := utf8.RuneCountInString(strings.TrimSpace(p.Text()))
		if length > c.MinParagraphLength {
			count++
			total += length
		}
	})

	return c.Evaluate(count, total)
}
