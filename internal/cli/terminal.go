package cli

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/Dirstral/ragmcp/internal/cleanup"
)

// IsTTY returns true if stdin is a terminal (for interactive prompts).
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmPolicy picks how orphaned indices are confirmed: --yes approves
// all, a terminal asks, and anything else keeps every orphan.
func confirmPolicy(assumeYes, interactive bool, in io.Reader, out io.Writer, logger logrus.FieldLogger) cleanup.ConfirmPolicy {
	switch {
	case assumeYes:
		return cleanup.AlwaysYes()
	case interactive:
		return cleanup.Interactive(in, out)
	default:
		return cleanup.ConfirmFunc(func(_ context.Context, c cleanup.Candidate) (bool, error) {
			logger.WithField("path", c.Path).Warnf("%q not found in config; keeping it (rerun with --yes to remove)", c.Name)
			return false, nil
		})
	}
}
