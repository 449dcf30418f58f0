// Command rotatepw re-encrypts every wallet in a vault store under a new
// password. Each key envelope gets a fresh salt and nonce; the wallet
// records themselves are untouched.
//
// Usage: rotatepw -dir ./svsim-data [-backend file|bolt]
// Old and new passwords are prompted on the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/akarpov/svsim/internal/crypto"
	"github.com/akarpov/svsim/internal/storage"
)

func main() {
	dir := flag.String("dir", "./svsim-data", "vault storage directory")
	backend := flag.String("backend", "file", "storage backend: file or bolt")
	flag.Parse()

	if err := run(*dir, *backend); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(dir, backend string) error {
	var store storage.Store
	var err error
	switch backend {
	case "bolt":
		store, err = storage.NewBoltStore(filepath.Join(dir, "svsim.db"))
	case "file":
		store, err = storage.NewFileStore(dir)
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	oldPw, err := promptPassword("Current vault password: ")
	if err != nil {
		return err
	}
	defer clear(oldPw)
	newPw, err := promptPassword("New vault password: ")
	if err != nil {
		return err
	}
	defer clear(newPw)
	if err := crypto.ValidatePassword(newPw); err != nil {
		return err
	}

	ctx := context.Background()
	wallets, err := store.ListWallets(ctx)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return fmt.Errorf("store holds no wallets")
	}

	for _, w := range wallets {
		km, err := crypto.DecryptKeyMaterial(w.EncryptedKey, oldPw)
		if err != nil {
			return fmt.Errorf("wallet %s: %w", w.ID, err)
		}
		blob, err := crypto.EncryptKeyMaterial(km, newPw)
		clear(km.SecretKey)
		if err != nil {
			return fmt.Errorf("wallet %s: %w", w.ID, err)
		}
		w.EncryptedKey = blob
		if err := store.SaveWallet(ctx, w); err != nil {
			return fmt.Errorf("wallet %s: %w", w.ID, err)
		}
		fmt.Printf("rotated %s (%s)\n", w.ID, w.PublicKey)
	}

	fmt.Printf("re-encrypted %d wallet(s)\n", len(wallets))
	return nil
}

func promptPassword(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal: run interactively")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("password cannot be empty")
	}
	return raw, nil
}
