package cleanup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ConfirmPolicy decides whether an orphaned index directory may be removed.
type ConfirmPolicy interface {
	Confirm(ctx context.Context, c Candidate) (bool, error)
}

// ConfirmFunc adapts a function to ConfirmPolicy.
type ConfirmFunc func(ctx context.Context, c Candidate) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, c Candidate) (bool, error) {
	return f(ctx, c)
}

// AlwaysYes approves every removal.
func AlwaysYes() ConfirmPolicy {
	return ConfirmFunc(func(context.Context, Candidate) (bool, error) { return true, nil })
}

// AlwaysNo keeps every orphan.
func AlwaysNo() ConfirmPolicy {
	return ConfirmFunc(func(context.Context, Candidate) (bool, error) { return false, nil })
}

// Interactive asks on out and reads answers from in. Only y, yes, n and no
// are accepted (case-insensitive); anything else asks again. Running out of
// input is an error, never an implicit answer.
func Interactive(in io.Reader, out io.Writer) ConfirmPolicy {
	return &interactive{in: bufio.NewReader(in), out: out}
}

type interactive struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *interactive) Confirm(ctx context.Context, c Candidate) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(p.out, "%q (%s) not found in config. Ready to remove it? (Y/n) ", c.Name, c.Path)

		line, err := p.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			fmt.Fprintln(p.out)
			return false, fmt.Errorf("read confirmation for %q: %w", c.Name, err)
		}

		if yes, ok := parseAnswer(line); ok {
			return yes, nil
		}
		fmt.Fprintln(p.out, "Please answer y, yes, n or no.")
	}
}

func parseAnswer(line string) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}
