package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/utxochain/app/services/node/handlers"
	"github.com/ardanlabs/utxochain/business/node"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		State struct {
			DBPath       string `conf:"default:zblock/ledger.db"`
			MinerAddress string
			WalletPath   string `conf:"default:zblock/wallets/"`
		}
		P2P struct {
			ListenAddr string   `conf:"default:/ip4/0.0.0.0/tcp/3000"`
			Bootstrap  []string
			KeyPath    string `conf:"default:zblock/node.key"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "utxo proof of work blockchain node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`  _   _ _______  _____     ____ _   _    _    ___ _   _ `)
	fmt.Println(` | | | |_   _\ \/ / _ \   / ___| | | |  / \  |_ _| \ | |`)
	fmt.Println(` | | | | | |  \  / | | | | |   | |_| | / _ \  | ||  \| |`)
	fmt.Println(` | |_| | | |  /  \ |_| | | |___|  _  |/ ___ \ | || |\  |`)
	fmt.Println(`  \___/  |_| /_/\_\___/   \____|_| |_/_/   \_\___|_| \_|`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Wallet Support

	// The wallets folder holds the keys this operator controls. The node only
	// needs them to report which addresses are local.
	wallets, err := wallet.New(cfg.State.WalletPath)
	if err != nil {
		return fmt.Errorf("unable to load wallets: %w", err)
	}

	// Logging the addresses for documentation in the logs.
	for _, address := range wallets.Addresses() {
		log.Infow("startup", "status", "wallet", "address", address)
	}

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Cancelling the context starts the node shutdown sequence.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := func(st *state.State, evts *events.Events, shutdown chan os.Signal) (http.Handler, http.Handler) {
		public := handlers.PublicMux(handlers.MuxConfig{
			Shutdown: shutdown,
			Log:      log,
			State:    st,
			Evts:     evts,
		})

		return public, handlers.DebugMux(build, log, st)
	}

	return node.Run(ctx, log, node.Config{
		DBPath:       cfg.State.DBPath,
		MinerAddress: cfg.State.MinerAddress,
		P2P: node.P2PConfig{
			ListenAddrs: []string{cfg.P2P.ListenAddr},
			Bootstrap:   cfg.P2P.Bootstrap,
			KeyPath:     cfg.P2P.KeyPath,
		},
		Web: node.WebConfig{
			ReadTimeout:     cfg.Web.ReadTimeout,
			WriteTimeout:    cfg.Web.WriteTimeout,
			IdleTimeout:     cfg.Web.IdleTimeout,
			ShutdownTimeout: cfg.Web.ShutdownTimeout,
			DebugHost:       cfg.Web.DebugHost,
			PublicHost:      cfg.Web.PublicHost,
		},
		Mux: mux,
	})
}
