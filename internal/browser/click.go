package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
)

// clickLinkJS clicks the first anchor whose text contains prefix and any of
// the names, and returns whether one was found.
const clickLinkJS = `(() => {
	const prefix = %s.toLowerCase();
	const names = %s.map(n => n.toLowerCase());
	for (const a of document.querySelectorAll("a")) {
		const text = (a.textContent || "").toLowerCase();
		if (text.includes(prefix) && names.some(n => text.includes(n))) {
			a.click();
			return true;
		}
	}
	return false;
})()`

// expandPanelsJS clicks every button whose text contains one of the labels
// and returns the number of clicks.
const expandPanelsJS = `(() => {
	const labels = %s.map(l => l.toLowerCase());
	let clicked = 0;
	for (const b of document.querySelectorAll("button")) {
		const text = (b.textContent || "").toLowerCase();
		if (!labels.some(l => text.includes(l))) continue;
		try { b.click(); clicked++; } catch (e) {}
	}
	return clicked;
})()`

// ClickSignIn clicks a "Sign in with <provider>" link when one is present.
func (s *Session) ClickSignIn(ctx context.Context, providers []string) (bool, error) {
	prefix, err := json.Marshal("Sign in with")
	if err != nil {
		return false, err
	}
	names, err := json.Marshal(providers)
	if err != nil {
		return false, err
	}

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickLinkJS, prefix, names), &clicked)); err != nil {
		return false, fmt.Errorf("clicking sign-in link: %w", err)
	}
	return clicked, nil
}

// ExpandPanels clicks the buttons revealing answers, solutions and
// submissions. It returns how many were clicked.
func (s *Session) ExpandPanels(ctx context.Context, labels []string) (int, error) {
	if len(labels) == 0 {
		return 0, nil
	}
	list, err := json.Marshal(labels)
	if err != nil {
		return 0, err
	}

	var clicked int
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(expandPanelsJS, list), &clicked)); err != nil {
		return 0, fmt.Errorf("expanding panels: %w", err)
	}
	return clicked, nil
}
