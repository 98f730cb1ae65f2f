// Package gcloud implements the Google Cloud Translation client used for
// string-table translation, including bearer-token session management.
//
// Tokens are short-lived and come from an external authority (normally the
// gcloud CLI). A Session holds the token for the remainder of one run;
// nothing is ever persisted to disk. When a token has to be fetched
// mid-action the client refuses to blindly retry the original request:
// the caller gets ErrTokenRefreshed and instructs the operator to re-run.
package gcloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// TokenEnvVar is checked before asking the external auth provider. Useful
// in CI where a token is provisioned up front.
const TokenEnvVar = "STRKIT_ACCESS_TOKEN"

// ErrTokenRefreshed signals that a fresh access token was acquired and
// stored in the session. The current action must be aborted and the
// operator told to retry: the token authority is external, and a blind
// retry of the failed request risks looping on a bad credential.
var ErrTokenRefreshed = errors.New("access token refreshed, retry the operation")

// TokenSource produces a fresh access token from the external auth
// provider. Implementations block until the token is available or the
// context is cancelled.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// CLITokenSource obtains tokens by invoking the gcloud CLI.
type CLITokenSource struct {
	// Command overrides the executable name, for tests. Default "gcloud".
	Command string
}

// Token runs `gcloud auth print-access-token`.
func (s *CLITokenSource) Token(ctx context.Context) (string, error) {
	command := s.Command
	if command == "" {
		command = "gcloud"
	}
	if _, err := exec.LookPath(command); err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", command, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, "auth", "print-access-token")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("fetching access token: %s: %w", msg, err)
		}
		return "", fmt.Errorf("fetching access token: %w", err)
	}

	token := strings.TrimSpace(stdout.String())
	if token == "" {
		return "", fmt.Errorf("auth provider returned an empty token")
	}
	return token, nil
}

// StaticTokenSource returns a fixed token. Used in tests and when the
// operator passes a token on the command line.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no token configured")
	}
	return string(s), nil
}

// Session owns the access token for one process run. The token starts
// unset, is set at most once per run, and is discarded at process exit.
type Session struct {
	source TokenSource
	token  string
}

// NewSession creates a session backed by the given token source.
func NewSession(source TokenSource) *Session {
	return &Session{source: source}
}

// Token returns the current token, falling back to the environment.
// An empty return means a refresh is required.
func (s *Session) Token() string {
	if s.token != "" {
		return s.token
	}
	if env := os.Getenv(TokenEnvVar); env != "" {
		s.token = env
	}
	return s.token
}

// Invalidate discards the current token after an authentication failure.
func (s *Session) Invalidate() {
	s.token = ""
}

// Refresh synchronously fetches a fresh token from the auth provider and
// stores it for the remainder of the run.
func (s *Session) Refresh(ctx context.Context) error {
	token, err := s.source.Token(ctx)
	if err != nil {
		return err
	}
	s.token = token
	return nil
}

// MaskToken renders a token safe for log output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
