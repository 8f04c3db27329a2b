/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

# Buffer Tree Monitoring API

This is the monitoring HTTP surface for a running buffertreed instance.

Version: 1.0.0
Host: localhost:8080
BasePath: /

swagger:meta
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/graphstream/buffertree/pkg/monitor"
	"github.com/graphstream/buffertree/pkg/sink"
)

// serveCmd runs the ingestion tree alongside its monitoring server and
// a demonstration downstream sink that drains every flushed batch.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the buffer tree with its monitoring server and downstream sink",
	Long: `Start a buffer tree, a demonstration downstream sink that applies
every drained batch into an embedded store, and a monitoring HTTP
server exposing Prometheus metrics and a structural debug dump.

Example:
  buffertreed serve --data-dir ./data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}

		t, err := newTree(cfg)
		if err != nil {
			return fmt.Errorf("failed to start tree: %w", err)
		}

		sk, err := sink.Open(cfg.DataDir + "/sink")
		if err != nil {
			return fmt.Errorf("failed to open sink: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		drainErrCh := make(chan error, 1)
		go func() {
			drainErrCh <- sk.Drain(ctx, t)
		}()

		var monitorErrCh chan error
		if cfg.Monitor.Enabled {
			m := monitor.NewMetrics()
			srv := monitor.NewServer(monitor.Config{
				Bind: cfg.Monitor.Bind,
				Port: cfg.Monitor.Port,
				Tree: t,
				Sink: sk,
			}, m)

			monitorErrCh = make(chan error, 1)
			go func() { monitorErrCh <- srv.ListenAndServe() }()
		}

		cmd.Printf("buffertreed serving: data-dir=%s n=%d b=%d\n", cfg.DataDir, cfg.Tree.N, cfg.Tree.B)

		select {
		case <-ctx.Done():
			cmd.Println("shutting down: draining and flushing tree")
		case err := <-drainErrCh:
			if err != nil {
				cmd.Printf("sink drain stopped: %v\n", err)
			}
		case err := <-monitorErrCh:
			if err != nil {
				cmd.Printf("monitoring server stopped: %v\n", err)
			}
		}

		if err := t.Close(); err != nil {
			cmd.Printf("error closing tree: %v\n", err)
		}
		if err := sk.Close(); err != nil {
			cmd.Printf("error closing sink: %v\n", err)
		}

		batches, records := sk.Stats()
		cmd.Printf("applied %d batches, %d records\n", batches, records)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
