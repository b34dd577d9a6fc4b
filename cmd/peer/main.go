// Command peer runs a single Chord ring node: an RPC listener for the
// control plane, an HTTP server for the data plane, and the periodic
// stabilization loop that keeps both in sync with the rest of the ring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/retorded/chordkv/internal/httpapi"
	"github.com/retorded/chordkv/internal/peer"
	"github.com/retorded/chordkv/internal/rpc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var stabilizationPeriodMs int
	var ttlMinutes int

	cmd := &cobra.Command{
		Use:   "peer <rpc_addr> <http_addr>",
		Short: "Run one node of a Chord ring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1], time.Duration(stabilizationPeriodMs)*time.Millisecond, time.Duration(ttlMinutes)*time.Minute)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&stabilizationPeriodMs, "stabilization-period", 1000, "interval between stabilization rounds, in milliseconds")
	flags.IntVar(&ttlMinutes, "ttl", 10, "minutes before this process self-terminates")

	return cmd
}

func run(rpcAddr, httpAddr string, stabilizationPeriod, ttl time.Duration) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("peer: building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	p, err := peer.New(rpcAddr, httpAddr, log)
	if err != nil {
		return fmt.Errorf("peer: constructing node: %w", err)
	}
	log.Info("node identity", zap.Uint64("id", uint64(p.ID())), zap.String("rpc_addr", rpcAddr), zap.String("http_addr", httpAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		if err := rpc.ListenAndServe(ctx, rpcAddr, 3*time.Second, p.HandleMessage, log); err != nil {
			errs <- fmt.Errorf("rpc listener: %w", err)
		}
	}()

	httpSrv := httpapi.New(httpAddr, p, log)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	go p.RunMaintenance(ctx, stabilizationPeriod)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var ttlTimer <-chan time.Time
	if ttl > 0 {
		t := time.NewTimer(ttl)
		defer t.Stop()
		ttlTimer = t.C
	}

	select {
	case <-stop:
		log.Info("received shutdown signal")
	case <-ttlTimer:
		log.Info("ttl expired, self-terminating")
	case err := <-errs:
		log.Error("fatal error", zap.Error(err))
		cancel()
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", zap.Error(err))
	}
	return nil
}
