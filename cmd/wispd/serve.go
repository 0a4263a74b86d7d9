package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/kristofer/wisp/pkg/hostops"
	"github.com/kristofer/wisp/pkg/kernel"
	"github.com/kristofer/wisp/pkg/pubsub"
	"github.com/kristofer/wisp/pkg/registry"
	"github.com/kristofer/wisp/pkg/stdlib"
	"github.com/kristofer/wisp/pkg/terminal"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxConnections bounds how many client connections wispd serves at
// once; beyond it, the accept loop holds the connection it just
// accepted and stops accepting until a slot frees, so a burst of
// connects can't unbound the kernel's process table.
const maxConnections = 256

// runDaemon binds cfg.SocketPath and serves connections until ctx is
// cancelled, returning once every in-flight connection has wound down.
//
// Grounded on other_examples/07cb6442_cmcoffee-go-ezipc's
// net.Listen("unix", ...) + Accept loop handing each connection to its
// own goroutine; restructured here onto golang.org/x/sync/errgroup so
// the daemon can wait for every per-connection terminal to exit on
// shutdown instead of leaking goroutines, and golang.org/x/sync/semaphore
// to bound concurrent connections.
func runDaemon(ctx context.Context, cfg daemonConfig, log *logrus.Entry) error {
	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o700); err != nil {
		return fmt.Errorf("wispd: create socket dir: %w", err)
	}
	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wispd: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("wispd: listen on %s: %w", cfg.SocketPath, err)
	}
	defer ln.Close()
	log.WithField("socket", cfg.SocketPath).Info("wispd: listening")

	host := hostops.OS{}
	standard := stdlib.Standard(host)
	reg := registry.New()
	defer reg.Close()
	ps := pubsub.New()
	defer ps.Close()
	k := kernel.New(ctx, standard, reg, ps)
	defer k.Close()

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxConnections)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("wispd: accept: %w", err)
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				conn.Close()
				continue
			}
			log.WithFields(logrus.Fields{
				"processes": k.ProcessCount(gctx),
				"uptime":    k.Uptime().Round(time.Second),
			}).Debug("wispd: accepted connection")
			g.Go(func() error {
				defer sem.Release(1)
				serveConn(gctx, conn, k, ps, standard, log)
				return nil
			})
		}
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// serveConn runs one connection's Terminal to completion, logging (but
// not propagating) its error: a single misbehaving client must not tear
// down the daemon or the errgroup guarding the rest of its peers.
func serveConn(ctx context.Context, conn net.Conn, k *kernel.Kernel, ps *pubsub.PubSub, standard value.Env, log *logrus.Entry) {
	defer conn.Close()
	connLog := log.WithField("remote", conn.RemoteAddr())
	term := terminal.New(conn, k, ps, connLog)
	if err := term.Serve(ctx, standard); err != nil {
		connLog.WithError(err).Warn("wispd: connection terminated")
	}
}
