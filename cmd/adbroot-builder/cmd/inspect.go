package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oshokin/adbroot-builder/internal/archive"
	"github.com/oshokin/adbroot-builder/internal/signing"
)

// verifyKey is the armored public key used to check a detached signature.
var verifyKey string

// inspectCmd lists the entries of a built module and optionally verifies its signature.
var inspectCmd = &cobra.Command{
	Use:   "inspect [archive]",
	Short: "List the entries of a built module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		entries, err := archive.List(path)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

		_, _ = fmt.Fprintln(w, "MODE\tSIZE\tCOMPRESSED\tCRC32\tNAME")

		for _, entry := range entries {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%08x\t%s\n",
				entry.Mode, entry.Size, entry.CompressedSize, entry.CRC32, entry.Name)
		}

		if err = w.Flush(); err != nil {
			return err
		}

		if verifyKey == "" {
			return nil
		}

		sigPath := path + signing.SignatureExt
		if _, err = os.Stat(sigPath); err != nil {
			return fmt.Errorf("signature: %w", err)
		}

		keyID, err := signing.Verify(verifyKey, path, sigPath)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Good signature from key %s\n", keyID)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	inspectCmd.Flags().StringVar(&verifyKey, "verify-key", "", "armored OpenPGP public key; verifies <archive>"+signing.SignatureExt)
}
