// Package prompt implements the blocking operator prompts of an archive run.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Prompter reads operator answers line by line.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New returns a Prompter reading from in and printing prompts to out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Out is where prompts and menus are printed.
func (p *Prompter) Out() io.Writer { return p.out }

// Ask prints question and returns the trimmed answer line. It returns early
// with the context error when ctx is cancelled while waiting.
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	fmt.Fprint(p.out, question)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case a := <-ch:
		if a.err != nil && (a.err != io.EOF || a.line == "") {
			return "", fmt.Errorf("reading answer: %w", a.err)
		}
		return strings.TrimSpace(a.line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// WaitForEnter prints message and blocks until the operator presses Enter.
func (p *Prompter) WaitForEnter(ctx context.Context, message string) error {
	_, err := p.Ask(ctx, message)
	return err
}
