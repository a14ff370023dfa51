package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
)

// SessionIssuer opens and revokes API sessions.
type SessionIssuer interface {
	Create(ctx context.Context, userID int64) (string, error)
	Destroy(ctx context.Context, token string) error
}

// SessionCLI issues bearer tokens for operators and integration clients.
type SessionCLI struct {
	Sessions SessionIssuer
}

// Run executes `session issue -user N` or `session revoke -token T`.
func (c SessionCLI) Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: session issue|revoke [flags]")
		return 2
	}
	fs := flag.NewFlagSet("session "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	switch args[0] {
	case "issue":
		userID := fs.Int64("user", 0, "user id")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *userID <= 0 {
			_, _ = fmt.Fprintln(stderr, "session issue: -user is required and must be positive")
			return 2
		}
		token, err := c.Sessions.Create(ctx, *userID)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "session issue: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, token)
		return 0
	case "revoke":
		token := fs.String("token", "", "session token")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *token == "" {
			_, _ = fmt.Fprintln(stderr, "session revoke: -token is required")
			return 2
		}
		if err := c.Sessions.Destroy(ctx, *token); err != nil {
			_, _ = fmt.Fprintf(stderr, "session revoke: %v\n", err)
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "session: unknown subcommand %q\n", args[0])
		return 2
	}
}
