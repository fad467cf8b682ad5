package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alkime/consults/internal/keyring"
)

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey   SetKeyCmd   `cmd:"" help:"Store a secret in the system keychain"`
	ListKeys ListKeysCmd `cmd:"" name:"list-keys" help:"Show which secrets are configured"`
}

// SetKeyCmd stores a secret in the system keychain.
type SetKeyCmd struct {
	Name   string `arg:"" enum:"backend,storage" help:"Secret name (backend or storage)"`
	Secret string `arg:"" help:"Secret value"`
}

func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("secret cannot be empty")
	}

	secret, err := keyring.SecretFromName(c.Name)
	if err != nil {
		return fmt.Errorf("invalid secret: %w", err)
	}

	if err := keyring.Set(secret, c.Secret); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	fmt.Printf("%s secret stored in keychain\n", c.Name)

	return nil
}

// ListKeysCmd shows which secrets are configured.
type ListKeysCmd struct{}

//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, secret := range keyring.AllSecrets() {
		if keyring.IsSet(secret) {
			fmt.Printf("%s: configured\n", secret.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", secret.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'consult config set-key <name> <secret>' to configure.")
	}

	return nil
}
