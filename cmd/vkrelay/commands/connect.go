package commands

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/spf13/cobra"

	"vkrelay/internal/domain"
	"vkrelay/internal/ws"
)

// connect <host> <path>: open a signed websocket to a host and stream stdin
// lines as text frames, printing whatever the host sends back.
func connectCmd() *cobra.Command {
	var reconnect bool
	cmd := &cobra.Command{
		Use:   "connect <host> <path>",
		Short: "Open a signed websocket session to a host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if relayURL == "" {
				return fmt.Errorf("no relay configured. use --relay")
			}
			hostID := domain.HostID(args[0])
			path := args[1]

			b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Jitter: true}
			for {
				err := runSession(cmd, hostID, path)
				if err == nil || !reconnect {
					return err
				}
				d := b.Duration()
				fmt.Fprintf(os.Stderr, "connection lost (%v), retrying in %s\n", err, d)
				time.Sleep(d)
			}
		},
	}
	cmd.Flags().BoolVar(&reconnect, "reconnect", false, "redial with backoff when the connection drops")
	return cmd
}

func runSession(cmd *cobra.Command, hostID domain.HostID, path string) error {
	errc := make(chan error, 1)
	conn, err := wire.WS.Dial(cmd.Context(), hostID, path, ws.Handlers{
		OnMessage: func(t ws.MsgType, payload []byte) {
			if t == ws.MsgBinary {
				fmt.Printf("<binary %d bytes>\n", len(payload))
				return
			}
			fmt.Println(string(payload))
		},
		OnClose: func(code int, reason string) {
			if code != websocket.CloseNormalClosure && code != websocket.CloseNoStatusReceived {
				errc <- fmt.Errorf("closed by host: %d %s", code, reason)
				return
			}
			errc <- nil
		},
		OnError: func(err error) {
			errc <- err
		},
	})
	if err != nil {
		return err
	}

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if err := conn.SendText(sc.Text()); err != nil {
				return
			}
		}
		_ = conn.Close(websocket.CloseNormalClosure, "stdin closed")
	}()

	select {
	case err := <-errc:
		<-conn.Done()
		return err
	case <-conn.Done():
		select {
		case err := <-errc:
			return err
		default:
			return nil
		}
	}
}
