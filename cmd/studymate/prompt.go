package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// readPassword reads a secret without echo when stdin is a terminal and falls
// back to a plain line otherwise, so passwords can be piped in.
func (c *cli) readPassword(prompt string) (string, error) {
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return c.readLine(prompt)
}

// isTerminal reports whether stdout is an interactive terminal.
func (c *cli) isTerminal() bool {
	f, ok := c.stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
