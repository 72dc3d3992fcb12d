package discovery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RowKind tells the discovery loop what a listing row is.
type RowKind int

const (
	RowOther RowKind = iota
	RowHeader
	RowItem
)

// Classification is the result of classifying one listing row.
type Classification struct {
	Kind RowKind

	// Header rows.
	Week    int
	HasWeek bool

	// Item rows.
	Badge   string
	Title   string
	Href    string
	TypeKey string
	Group   bool
}

// Classifier maps a listing row to a Classification. Rows a classifier does
// not recognize are RowOther and are skipped by the discovery loop.
type Classifier interface {
	Classify(row *goquery.Selection) Classification
}

var (
	weekPattern  = regexp.MustCompile(`(?i)Week\s+(\d+)`)
	typePattern  = regexp.MustCompile(`^([A-Z]+)`)
	itemHrefKeys = []string{"/assessment/", "/assessment_instance/"}
	spaceRun     = regexp.MustCompile(`\s+`)
)

// PlatformClassifier recognizes the assessments table of the course
// platform: week headers, badge-labelled assessment links and the users icon
// marking group work.
type PlatformClassifier struct{}

func (PlatformClassifier) Classify(row *goquery.Selection) Classification {
	if th := row.Find(`th[data-testid="assessment-group-heading"]`).First(); th.Length() > 0 {
		c := Classification{Kind: RowHeader}
		if m := weekPattern.FindStringSubmatch(text(th)); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				c.Week, c.HasWeek = n, true
			}
		}
		return c
	}

	badge := row.Find("span.badge").First()
	if badge.Length() == 0 {
		return Classification{}
	}
	link := row.Find("a[href]").First()
	href, _ := link.Attr("href")
	if href == "" || !containsAny(href, itemHrefKeys) {
		return Classification{}
	}

	badgeText := text(badge)
	m := typePattern.FindStringSubmatch(badgeText)
	if m == nil {
		return Classification{}
	}

	return Classification{
		Kind:    RowItem,
		Badge:   badgeText,
		Title:   text(link),
		Href:    href,
		TypeKey: m[1],
		Group:   link.Find(`i[class*="fa-users"]`).Length() > 0,
	}
}

// text returns the selection's text with whitespace runs collapsed.
func text(s *goquery.Selection) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s.Text(), " "))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
