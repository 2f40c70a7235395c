package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vkrelay/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string
	debug      bool

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "vkrelay",
		Short: "Signed relay transport for paired local hosts",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".vkrelay")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			logger, err := buildLogger()
			if err != nil {
				return err
			}

			wire, err = app.NewWire(app.Config{
				Home:        home,
				RelayAPIURL: relayURL,
				Passphrase:  passphrase,
				Logger:      logger,
			})
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.vkrelay)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the pairing store")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay API base URL (e.g. https://relay.example.com)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")

	root.AddCommand(pairCmd(), hostsCmd(), fetchCmd(), connectCmd())
	return root.Execute()
}

func buildLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
