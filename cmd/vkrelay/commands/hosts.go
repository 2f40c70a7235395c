package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"vkrelay/internal/crypto"
)

// hosts: list paired hosts and their signing sessions.
func hostsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List paired hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}

			hosts, err := wire.Pairings.ListPairedHosts(cmd.Context())
			if err != nil {
				return err
			}
			if len(hosts) == 0 {
				fmt.Println("no paired hosts")
				return nil
			}
			for _, h := range hosts {
				fp := "-"
				if pub, err := crypto.DecodeServerKeyB64(h.ServerPublicKeyB64); err == nil {
					fp = crypto.Fingerprint(pub)
				}
				session := string(h.SigningSessionID)
				if session == "" {
					session = "OUTDATED (re-pair)"
				}
				fmt.Printf("%s\tsession=%s\tserver=%s\n", h.HostID, session, fp)
			}
			return nil
		},
	}
}
