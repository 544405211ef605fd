package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves the passphrase protecting an encrypted key file, checking
// an environment variable before falling back to a terminal prompt. The
// first successful resolution is cached, so the operator is asked at most
// once per process even when several components open the same keystore.
type Source struct {
	envVar string
	label  string

	once  sync.Once
	value string
	err   error
}

// NewSource builds a source for the named environment variable. label names
// the key being unlocked (for example "node key") and appears in prompts and
// errors so the operator knows which secret is being requested.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore"
	}
	return &Source{envVar: strings.TrimSpace(envVar), label: label}
}

// Get returns the passphrase, resolving it on the first call. An env value
// is taken verbatim; without one the operator is prompted on stderr, which
// requires an interactive terminal. Whitespace-only passphrases are rejected
// so a key file is never silently left unprotected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s passphrase required; set %s or run interactively", s.label, s.envVar)
			} else {
				s.err = fmt.Errorf("%s passphrase required and no terminal available", s.label)
			}
			return
		}

		fmt.Fprintf(os.Stderr, "Enter %s passphrase: ", s.label)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("read passphrase: %w", err)
			return
		}

		pass := string(raw)
		if strings.TrimSpace(pass) == "" {
			s.err = errors.New("passphrase cannot be empty")
			return
		}

		s.value = pass
	})

	return s.value, s.err
}
