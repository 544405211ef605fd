package passphrase

import (
	"os"
	"strings"
	"testing"

	"golang.org/x/term"
)

func TestGetPrefersEnvironment(t *testing.T) {
	t.Setenv("TIPVAULT_TEST_PASS", "s3cret")
	pass, err := NewSource("TIPVAULT_TEST_PASS", "node key").Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pass != "s3cret" {
		t.Fatalf("expected env passphrase, got %q", pass)
	}
}

func TestGetRejectsBlankEnvValue(t *testing.T) {
	t.Setenv("TIPVAULT_TEST_PASS", "   ")
	if _, err := NewSource("TIPVAULT_TEST_PASS", "node key").Get(); err == nil {
		t.Fatal("expected rejection of a blank env passphrase")
	}
}

func TestGetCachesFirstResolution(t *testing.T) {
	t.Setenv("TIPVAULT_TEST_PASS", "first")
	source := NewSource("TIPVAULT_TEST_PASS", "node key")
	if pass, err := source.Get(); err != nil || pass != "first" {
		t.Fatalf("initial get: %q, %v", pass, err)
	}
	t.Setenv("TIPVAULT_TEST_PASS", "second")
	if pass, err := source.Get(); err != nil || pass != "first" {
		t.Fatalf("expected cached passphrase, got %q, %v", pass, err)
	}
}

func TestGetErrorNamesKeyAndVariable(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("interactive terminal attached")
	}
	t.Setenv("TIPVAULT_TEST_PASS", "")
	os.Unsetenv("TIPVAULT_TEST_PASS")
	_, err := NewSource("TIPVAULT_TEST_PASS", "node key").Get()
	if err == nil {
		t.Fatal("expected an error without env value or terminal")
	}
	if !strings.Contains(err.Error(), "node key") || !strings.Contains(err.Error(), "TIPVAULT_TEST_PASS") {
		t.Fatalf("error must name the key and the variable: %v", err)
	}
}
