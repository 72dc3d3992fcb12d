package discovery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stupside/plarchive/internal/fsname"
)

// DefaultCategory tags questions listed before any category header.
const DefaultCategory = "General"

const questionHrefKey = "/instance_question/"

// headerArtifacts mark column header cells that are not categories.
var headerArtifacts = []string{"Question", "Value"}

// Question is one question row of an assessment page.
type Question struct {
	Category string
	Title    string
	URL      string
}

// Questions scans an assessment page. Rows with a spanning header cell set the
// current category; rows linking to a question instance become questions.
// Links are resolved against base, the assessment page URL.
func Questions(doc *goquery.Document, base *url.URL, nameMaxLength int) []Question {
	if nameMaxLength == 0 {
		nameMaxLength = fsname.DefaultMaxLength
	}

	category := DefaultCategory
	var out []Question

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if th := row.Find("th[colspan]").First(); th.Length() > 0 {
			label := text(th)
			if label != "" && !containsAny(label, headerArtifacts) {
				category = fsname.Clean(label, nameMaxLength)
			}
			return
		}

		href, ok := row.Find("a[href]").First().Attr("href")
		if !ok || !strings.Contains(href, questionHrefKey) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		out = append(out, Question{
			Category: category,
			Title:    fsname.Clean(text(row.Find("a[href]").First()), nameMaxLength),
			URL:      base.ResolveReference(ref).String(),
		})
	})

	return out
}
