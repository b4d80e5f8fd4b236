package commands

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agiangrant/gobridge/internal/channel"
)

// Serve implements the 'gobridge serve' command
func Serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to gobridge.toml")
	listen := fs.String("listen", "", "Listen address (overrides server.listen)")
	fs.Parse(args)

	s, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := s.cfg.Server.Listen
	if *listen != "" {
		addr = *listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := channel.NewServer(s.bridge, addr, s.logger.Named("channel"))
	backend, audio := s.bridge.Channels()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-srv.Ready():
			s.logger.Info("serving method channels",
				zap.String("url", "ws://"+srv.BoundAddr()+"/ws"),
				zap.String("backend", backend),
				zap.String("audio", audio),
				zap.Stringer("module", s.bridge.ModuleState()))
		case <-gctx.Done():
		}
		return nil
	})

	return g.Wait()
}
