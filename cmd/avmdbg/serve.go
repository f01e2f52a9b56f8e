// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/algorand/avm-debugger/config"
	"github.com/algorand/avm-debugger/debugger/assets"
	"github.com/algorand/avm-debugger/debugger/dap"
	"github.com/algorand/avm-debugger/logging"
	"github.com/algorand/avm-debugger/util/metrics"
)

var listenAddress string
var listenPort int
var stdio bool
var metricsAddress string

func init() {
	serveCmd.Flags().StringVar(&listenAddress, "listen", "", "Network interface to listen to")
	serveCmd.Flags().IntVar(&listenPort, "port", config.DefaultPort, "Debugger port to listen to")
	serveCmd.Flags().BoolVar(&stdio, "stdio", false, "Serve a single session over stdin and stdout")
	serveCmd.Flags().StringVar(&metricsAddress, "metrics", "", "Address of the /metrics endpoint, disabled when empty")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the debug adapter",
	Long:  `Start the debug adapter and serve Debug Adapter Protocol sessions until interrupted`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.ListenAddress = listenAddress
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = listenPort
		}
		if cmd.Flags().Changed("stdio") {
			cfg.StdioTransport = stdio
		}
		if cmd.Flags().Changed("metrics") {
			cfg.MetricsAddress = metricsAddress
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := setupLogging(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg, log)
	},
}

// runServer serves DAP sessions, and metrics when configured, until ctx is
// done or the stdio session ends.
func runServer(ctx context.Context, cfg config.Local, log logging.Logger) error {
	s := makeServer(cfg, assets.MakeLoader(nil, log), log)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddress != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           makeMetricsRouter(metrics.DefaultRegistry()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		eg.Go(func() error {
			log.Infof("serving metrics at %s/metrics", cfg.MetricsAddress)
			err := metricsServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.StdioTransport {
		eg.Go(func() error {
			// the process ends with the only session
			defer cancel()
			return s.serveSession(stdioConn{Reader: os.Stdin, Writer: os.Stdout}, "stdio")
		})
	} else {
		listener, err := net.Listen("tcp", cfg.Address())
		if err != nil {
			cancel()
			return errors.Join(err, eg.Wait())
		}
		log.Infof("Started server at %s", listener.Addr())
		eg.Go(func() error {
			return s.serve(ctx, listener)
		})
	}
	return eg.Wait()
}

func makeMetricsRouter(reg *metrics.Registry) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	return router
}

type stdioConn struct {
	io.Reader
	io.Writer
}

// server accepts client connections and runs one session per connection.
type server struct {
	cfg    config.Local
	loader *assets.Loader
	log    logging.Logger

	mu    deadlock.Mutex
	conns map[net.Conn]struct{}
}

func makeServer(cfg config.Local, loader *assets.Loader, log logging.Logger) *server {
	return &server{
		cfg:    cfg,
		loader: loader,
		log:    log,
		conns:  make(map[net.Conn]struct{}),
	}
}

// serve accepts connections on listener until ctx is done. Open
// connections are closed on return, and serve waits for their sessions.
func (s *server) serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var eg errgroup.Group
	defer func() {
		s.closeAll()
		eg.Wait()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warnf("Connection failed: %v", err)
			continue
		}
		s.log.Infof("Accepted connection from %s", conn.RemoteAddr())
		s.track(conn)
		eg.Go(func() error {
			defer s.untrack(conn)
			defer conn.Close()
			if err := s.serveSession(conn, conn.RemoteAddr().String()); err != nil {
				s.log.Warnf("session with %s failed: %v", conn.RemoteAddr(), err)
			}
			return nil
		})
	}
}

func (s *server) serveSession(rw io.ReadWriter, remote string) error {
	session := dap.NewSession(rw, s.loader, s.log.With("remote", remote))
	session.DefaultStopOnEntry = s.cfg.StopOnEntry
	return session.Run()
}

func (s *server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// activeSessions returns the number of open client connections.
func (s *server) activeSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
