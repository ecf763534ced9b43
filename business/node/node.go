// Package node assembles a running blockchain node from its parts: disk
// storage, state, the libp2p transport, the gossip worker and the http
// services. Both the node service and the cli start nodes through Run.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/network/p2p"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/utxochain/foundation/blockchain/worker"
	"github.com/ardanlabs/utxochain/foundation/events"
	"go.uber.org/zap"
)

// MuxFunc constructs the public and debug http handlers over the running
// node. The shutdown channel is signaled by the web framework when an
// integrity issue is identified.
type MuxFunc func(st *state.State, evts *events.Events, shutdown chan os.Signal) (public http.Handler, debug http.Handler)

// Config represents everything required to run a node.
type Config struct {
	DBPath       string
	MinerAddress string
	P2P          P2PConfig
	Web          WebConfig
	Mux          MuxFunc
}

// P2PConfig represents the settings for the peer to peer transport.
type P2PConfig struct {
	ListenAddrs []string
	Bootstrap   []string
	KeyPath     string
}

// WebConfig represents the settings for the http services. An empty host
// or a missing MuxFunc disables that service.
type WebConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	DebugHost       string
	PublicHost      string
}

// Run starts the node and blocks until the context is cancelled or the
// public service fails.
func Run(ctx context.Context, log *zap.SugaredLogger, cfg Config) error {

	// =========================================================================
	// Events Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	defer evts.Shutdown()

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// =========================================================================
	// Blockchain Support

	strg, err := disk.New(cfg.DBPath)
	if err != nil {
		return err
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		MinerAddress: cfg.MinerAddress,
		Storage:      strg,
		EvHandler:    ev,
	})
	if err != nil {
		strg.Close()
		return err
	}

	if st.RetrieveTipHash() == "" {
		log.Infow("startup", "status", "no local chain, waiting for peers to sync")
	}

	// The transport connects this node to its peers. Connection events from
	// the bootstrap peers are buffered until the worker starts reading.
	transport, err := p2p.New(ctx, p2p.Config{
		ListenAddrs: cfg.P2P.ListenAddrs,
		Bootstrap:   cfg.P2P.Bootstrap,
		KeyPath:     cfg.P2P.KeyPath,
		EvHandler:   ev,
	})
	if err != nil {
		st.Shutdown()
		return err
	}
	defer transport.Close()

	for _, addr := range transport.Addrs() {
		log.Infow("startup", "status", "p2p listening", "addr", addr)
	}

	// The worker package implements the gossip protocol and mining. The
	// worker will register itself with the state.
	worker.Run(st, transport, ev)
	defer st.Shutdown()

	if cfg.Mux == nil || cfg.Web.PublicHost == "" {
		<-ctx.Done()
		log.Infow("shutdown", "status", "shutdown started", "cause", ctx.Err())
		return nil
	}

	// The web framework signals an integrity issue through this channel.
	shutdown := make(chan os.Signal, 1)

	publicMux, debugMux := cfg.Mux(st, evts, shutdown)

	// =========================================================================
	// Start Debug Service

	if cfg.Web.DebugHost != "" {
		log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

		// Not concerned with shutting this down with load shedding.
		go func() {
			if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
				log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
			}
		}()
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking and waiting for shutdown.
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "integrity shutdown started", "signal", sig)

	case <-ctx.Done():
		log.Infow("shutdown", "status", "shutdown started", "cause", ctx.Err())
	}

	// Release any web sockets that are currently active.
	log.Infow("shutdown", "status", "shutdown web socket channels")
	evts.Shutdown()

	// Give outstanding requests a deadline for completion.
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()

	// Asking listener to shut down and shed load.
	log.Infow("shutdown", "status", "shutdown public API started")
	if err := public.Shutdown(sctx); err != nil {
		public.Close()
		return fmt.Errorf("could not stop public service gracefully: %w", err)
	}

	return nil
}
