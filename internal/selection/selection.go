// Package selection resolves the operator's choice of module types.
package selection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/stupside/plarchive/internal/discovery"
	"github.com/stupside/plarchive/internal/prompt"
)

// ErrInvalidSelection is returned for expressions that do not resolve to a
// non-empty set of types.
var ErrInvalidSelection = errors.New("invalid selection")

// All selects every available type.
const All = "all"

const sampleWidth = 50

// Set is a resolved selection of type keys.
type Set map[string]struct{}

// Has reports whether key is selected.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the selected keys sorted.
func (s Set) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Parse resolves expr against available, which must be sorted by key. expr is
// either "all" or a comma-separated list of 1-based indices. Unparsable
// tokens, out-of-range indices and empty results are errors; no partial
// selection is returned.
func Parse(expr string, available []discovery.ModuleType) (Set, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	if len(available) == 0 {
		return nil, fmt.Errorf("%w: no module types to choose from", ErrInvalidSelection)
	}

	set := Set{}
	if expr == All {
		for _, t := range available {
			set[t.Key] = struct{}{}
		}
		return set, nil
	}

	for token := range strings.SplitSeq(expr, ",") {
		token = strings.TrimSpace(token)
		idx, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, token)
		}
		if idx < 1 || idx > len(available) {
			return nil, fmt.Errorf("%w: %d is out of range 1-%d", ErrInvalidSelection, idx, len(available))
		}
		set[available[idx-1].Key] = struct{}{}
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("%w: nothing selected", ErrInvalidSelection)
	}
	return set, nil
}

// Render prints the numbered menu of available types and, when present, the
// excluded group types.
func Render(w io.Writer, available, excluded []discovery.ModuleType) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("Module types")
	t.AppendHeader(table.Row{"#", "Type", "Items", "Sample"})
	for i, mt := range available {
		t.AppendRow(table.Row{i + 1, mt.Key, mt.Count, text.Trim(mt.SampleTitle, sampleWidth)})
	}
	t.Render()

	if len(excluded) == 0 {
		return
	}

	x := table.NewWriter()
	x.SetStyle(table.StyleRounded)
	x.SetOutputMirror(w)
	x.SetTitle("Excluded (group modules)")
	x.AppendHeader(table.Row{"Type", "Items", "Sample"})
	for _, mt := range excluded {
		x.AppendRow(table.Row{mt.Key, mt.Count, text.Trim(mt.SampleTitle, sampleWidth)})
	}
	x.Render()
}

// Ask renders the menu, prompts for a selection and parses it.
func Ask(ctx context.Context, p *prompt.Prompter, available, excluded []discovery.ModuleType) (Set, error) {
	Render(p.Out(), available, excluded)

	fmt.Fprintln(p.Out(), "\nSelect module types to download:")
	fmt.Fprintln(p.Out(), "  Enter numbers separated by commas (e.g., 1,2,5)")
	fmt.Fprintln(p.Out(), "  Or enter 'all' to download all non-group types")

	answer, err := p.Ask(ctx, ">>> Your selection: ")
	if err != nil {
		return nil, err
	}
	return Parse(answer, available)
}
