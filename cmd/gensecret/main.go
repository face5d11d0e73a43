// Command gensecret writes a fresh hex session secret for the web server.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rafyaudit/internal/crypto"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var (
		file  string
		size  int
		force bool
	)
	cmd := &cobra.Command{
		Use:           "gensecret",
		Short:         "Generate the session.secret value",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			if size < crypto.MinSecretLength {
				return fmt.Errorf("%w: %d bytes, need %d", crypto.ErrSecretTooShort, size, crypto.MinSecretLength)
			}
			secret, err := crypto.NewSecret(size)
			if err != nil {
				return fmt.Errorf("generating secret: %w", err)
			}
			hexSecret := hex.EncodeToString(secret)
			if file == "" {
				fmt.Fprintln(out, hexSecret)
				return nil
			}
			if !force {
				if _, err := os.Stat(file); err == nil {
					return fmt.Errorf("%s already exists, refusing to overwrite", file)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			if err := os.WriteFile(file, []byte(hexSecret+"\n"), 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", file, err)
			}
			fmt.Fprintf(out, "Secret written to %s\n", file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "output", "o", "", "Write the secret to this file instead of stdout.")
	cmd.Flags().IntVar(&size, "bytes", crypto.MinSecretLength, "Secret length in bytes.")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing output file.")
	return cmd
}
