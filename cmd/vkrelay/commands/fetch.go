package commands

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vkrelay/internal/domain"
	"vkrelay/internal/relay"
)

// fetch <host> <path>: issue one signed request through the relay and print
// the response body.
func fetchCmd() *cobra.Command {
	var (
		method  string
		data    string
		headers []string
	)
	cmd := &cobra.Command{
		Use:   "fetch <host> <path>",
		Short: "Issue a signed request to a host through the relay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if relayURL == "" {
				return fmt.Errorf("no relay configured. use --relay")
			}

			hdr := http.Header{}
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("bad header %q (want name: value)", h)
				}
				hdr.Add(strings.TrimSpace(k), strings.TrimSpace(v))
			}

			req := relay.Request{Method: method, Header: hdr}
			if data != "" {
				req.Body = strings.NewReader(data)
			}

			resp, err := wire.Relay.Do(cmd.Context(), domain.HostID(args[0]), args[1], req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			fmt.Fprintln(os.Stderr, resp.Status)
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header (name: value)")
	return cmd
}
