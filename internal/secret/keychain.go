package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the keychain service name items are filed under.
const DefaultKeychainService = "pagebuilder"

// exit status of `security` when no matching item exists
const keychainItemNotFound = 44

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool.
type KeychainStore struct {
	service string
	// security runs the security tool with args and returns its stdout.
	security func(args ...string) ([]byte, error)
}

// NewKeychainStore creates a KeychainStore filing items under service, or
// DefaultKeychainService when service is empty.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{service: service, security: runSecurity}
}

func runSecurity(args ...string) ([]byte, error) {
	cmd := exec.Command("security", args...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return out, fmt.Errorf("%s: %w", strings.TrimSpace(string(exitErr.Stderr)), err)
	}
	return out, err
}

// missing reports whether err means there is nothing to read: the item does
// not exist, or the machine has no keychain tool at all.
func missing(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
		return true
	}
	return errors.Is(err, exec.ErrNotFound)
}

// Set stores a secret, replacing any existing item for key.
func (k *KeychainStore) Set(key string, value []byte) error {
	if err := k.Delete(key); err != nil {
		return err
	}
	_, err := k.security("add-generic-password", "-a", key, "-s", k.service, "-w", string(value), "-U")
	if err != nil {
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Get returns nil and no error when the item does not exist. Other
// failures, such as a locked keychain, are returned.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.security("find-generic-password", "-a", key, "-s", k.service, "-w")
	if missing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes the item for key. Missing items are not an error.
func (k *KeychainStore) Delete(key string) error {
	_, err := k.security("delete-generic-password", "-a", key, "-s", k.service)
	if err != nil && !missing(err) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
