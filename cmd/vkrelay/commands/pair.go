package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vkrelay/internal/crypto"
	"vkrelay/internal/domain"
)

// pair <bundle.json>: import a pairing bundle produced by the host's
// pairing flow.
func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair <bundle.json>",
		Short: "Import a pairing bundle for a local host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var host domain.PairedHost
			if err := json.Unmarshal(raw, &host); err != nil {
				return fmt.Errorf("parsing pairing bundle: %w", err)
			}
			if host.HostID == "" {
				return fmt.Errorf("pairing bundle has no host_id")
			}
			if host.SigningSessionID == "" {
				return fmt.Errorf("host %s: %w", host.HostID, domain.ErrPairingOutdated)
			}

			// Reject unusable key material at import time rather than on
			// the first signed request.
			if _, err := crypto.DecodeClientKeyJWK(host.PrivateKeyJWK); err != nil {
				return fmt.Errorf("pairing bundle: %w", err)
			}
			pub, err := crypto.DecodeServerKeyB64(host.ServerPublicKeyB64)
			if err != nil {
				return fmt.Errorf("pairing bundle: %w", err)
			}

			if err := wire.Pairings.SavePairedHost(host); err != nil {
				return err
			}
			fmt.Printf("paired %s (server key %s)\n", host.HostID, crypto.Fingerprint(pub))
			return nil
		},
	}
}
