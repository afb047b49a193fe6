package client

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
)

// TermPrompt reads the master password from the controlling terminal with
// echo disabled, the fallback used when no pinentry binary is configured or
// available.
type TermPrompt struct{}

func (TermPrompt) Prompt(ctx context.Context, message string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s ", message)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// ChainPrompt tries each prompt in order, returning the first successful
// result, or the last error if every prompt in the chain failed (a missing
// pinentry binary falls through to the terminal prompt instead of failing
// outright).
type ChainPrompt []PasswordPrompt

func (c ChainPrompt) Prompt(ctx context.Context, message string) (string, error) {
	var lastErr error
	for _, p := range c {
		pw, err := p.Prompt(ctx, message)
		if err == nil {
			return pw, nil
		}
		lastErr = err
	}
	return "", lastErr
}
