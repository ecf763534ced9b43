package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/utxochain/app/services/node/handlers"
	"github.com/ardanlabs/utxochain/business/node"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/logger"
	"github.com/spf13/cobra"
)

func startNodeCmd(opts *options) *cobra.Command {
	var (
		listen  string
		web     string
		keyPath string
	)

	cmd := cobra.Command{
		Use:   "startnode <wallet_address> [<bootstrap_peer_address>]",
		Short: "Run a node mining for the wallet address",
		Long: "Runs a node that mines blocks paying the reward to the wallet address. The optional\n" +
			"bootstrap address is the full multiaddr of a peer, including its /p2p id.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minerAddress := args[0]
			if !database.ValidateAddress(minerAddress) {
				return fmt.Errorf("wallet address %q: %w", minerAddress, database.ErrInvalidAddress)
			}

			var bootstrap []string
			if len(args) == 2 {
				bootstrap = append(bootstrap, args[1])
			}

			log, err := logger.New("NODE")
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mux := func(st *state.State, evts *events.Events, shutdown chan os.Signal) (http.Handler, http.Handler) {
				public := handlers.PublicMux(handlers.MuxConfig{
					Shutdown: shutdown,
					Log:      log,
					State:    st,
					Evts:     evts,
				})

				return public, handlers.DebugMux("cli", log, st)
			}

			return node.Run(ctx, log, node.Config{
				DBPath:       opts.dbPath,
				MinerAddress: minerAddress,
				P2P: node.P2PConfig{
					ListenAddrs: []string{listen},
					Bootstrap:   bootstrap,
					KeyPath:     keyPath,
				},
				Web: node.WebConfig{
					ReadTimeout:     5 * time.Second,
					WriteTimeout:    10 * time.Second,
					IdleTimeout:     120 * time.Second,
					ShutdownTimeout: 20 * time.Second,
					PublicHost:      web,
				},
				Mux: mux,
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "/ip4/0.0.0.0/tcp/3000", "Multiaddr the node listens on for peers.")
	cmd.Flags().StringVar(&web, "web", "0.0.0.0:8080", "Host for the public api, empty disables it.")
	cmd.Flags().StringVar(&keyPath, "key", "zblock/node.key", "Path to the node identity key.")

	return &cmd
}
