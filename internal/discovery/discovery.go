// Package discovery reads the platform's listing pages: the course
// assessments table (weeks, typed assessments, group work) and each
// assessment's question table.
package discovery

import (
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/PuerkitoBio/goquery"

	"github.com/stupside/plarchive/internal/fsname"
)

// ModuleType aggregates the assessments sharing a badge prefix.
type ModuleType struct {
	Key         string
	Count       int
	GroupCount  int
	Group       bool
	SampleTitle string
}

// Assessment is one assessment row of the course listing.
type Assessment struct {
	Week  string
	Name  string
	Title string
	URL   string
	Type  string
	Group bool
}

// Options configure Discover.
type Options struct {
	// Origin resolves relative assessment links.
	Origin *url.URL
	// WeekMin and WeekMax bound the week numbers collected; headers outside
	// the range suspend collection until a valid header appears.
	WeekMin int
	WeekMax int
	// NameMaxLength bounds sanitized names; zero means fsname.DefaultMaxLength.
	NameMaxLength int
	// Classifier defaults to PlatformClassifier.
	Classifier Classifier
}

// Catalog is the result of one discovery pass. It is not modified after
// Discover returns.
type Catalog struct {
	types       map[string]*ModuleType
	assessments []Assessment
}

// Discover scans every table row of the listing document. Rows that do not
// match the expected layout are skipped.
func Discover(doc *goquery.Document, opts Options) (*Catalog, error) {
	if opts.Origin == nil {
		return nil, fmt.Errorf("discovery: origin is required")
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = PlatformClassifier{}
	}
	maxLen := opts.NameMaxLength
	if maxLen == 0 {
		maxLen = fsname.DefaultMaxLength
	}

	cat := &Catalog{types: map[string]*ModuleType{}}
	var week *int

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		c := classifier.Classify(row)

		switch c.Kind {
		case RowHeader:
			if !c.HasWeek {
				return
			}
			if c.Week >= opts.WeekMin && c.Week <= opts.WeekMax {
				w := c.Week
				week = &w
			} else {
				week = nil
			}

		case RowItem:
			if week == nil {
				return
			}
			ref, err := url.Parse(c.Href)
			if err != nil {
				return
			}
			cat.add(c, Assessment{
				Week:  fsname.Clean(fmt.Sprintf("Week_%d", *week), maxLen),
				Name:  fsname.Clean(c.Badge, maxLen),
				Title: c.Title,
				URL:   opts.Origin.ResolveReference(ref).String(),
				Type:  c.TypeKey,
				Group: c.Group,
			})
		}
	})

	return cat, nil
}

func (c *Catalog) add(row Classification, a Assessment) {
	t, ok := c.types[row.TypeKey]
	if !ok {
		t = &ModuleType{Key: row.TypeKey, SampleTitle: row.Title, Group: true}
		c.types[row.TypeKey] = t
	}
	t.Count++
	if row.Group {
		t.GroupCount++
	} else {
		t.Group = false
	}
	c.assessments = append(c.assessments, a)
}

// Types returns every discovered type sorted by key.
func (c *Catalog) Types() []ModuleType {
	return c.sortedTypes(func(*ModuleType) bool { return true })
}

// Available returns the selectable (non-group) types sorted by key.
func (c *Catalog) Available() []ModuleType {
	return c.sortedTypes(func(t *ModuleType) bool { return !t.Group })
}

// Excluded returns the group-only types sorted by key.
func (c *Catalog) Excluded() []ModuleType {
	return c.sortedTypes(func(t *ModuleType) bool { return t.Group })
}

func (c *Catalog) sortedTypes(keep func(*ModuleType) bool) []ModuleType {
	var out []ModuleType
	for _, k := range slices.Sorted(maps.Keys(c.types)) {
		if t := c.types[k]; keep(t) {
			out = append(out, *t)
		}
	}
	return out
}

// Assessments returns every discovered assessment in listing order.
func (c *Catalog) Assessments() []Assessment {
	return slices.Clone(c.assessments)
}

// Candidates returns the non-group assessments in listing order.
func (c *Catalog) Candidates() []Assessment {
	return c.filter(func(a Assessment) bool { return !a.Group })
}

// Grouped returns the group assessments in listing order.
func (c *Catalog) Grouped() []Assessment {
	return c.filter(func(a Assessment) bool { return a.Group })
}

// Select returns the non-group assessments whose type is selected, in
// listing order.
func (c *Catalog) Select(selected func(typeKey string) bool) []Assessment {
	return c.filter(func(a Assessment) bool { return !a.Group && selected(a.Type) })
}

func (c *Catalog) filter(keep func(Assessment) bool) []Assessment {
	var out []Assessment
	for _, a := range c.assessments {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
