package client

import "context"

// PasswordPrompt is the external collaborator a protocol manager asks for
// the master password. Implementations typically shell out to a pinentry
// program; a cancelled prompt must return errs.ErrCancelled.
type PasswordPrompt interface {
	Prompt(ctx context.Context, message string) (string, error)
}
