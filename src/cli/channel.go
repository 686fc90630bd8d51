// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/channel"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/logger"
)

// loadSession builds the session context named by --config. A nil crls gives
// the session a private CRL cache.
func (a *app) loadSession(cmd *cobra.Command, path, passphraseEnv string, crls *x509chain.CRLCache) (*session.Context, logger.Logger, error) {
	if path == "" {
		return nil, nil, ErrConfigRequired
	}
	log, err := a.loggerFor(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := session.LoadFile(path, session.LoadOptions{
		Passphrase: passphraseFromEnv(passphraseEnv),
		Logger:     log,
		Version:    a.version,
		CRLCache:   crls,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (a *app) serveCommand() *cobra.Command {
	var (
		configPath    string
		listen        string
		passphraseEnv string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept secure channels and echo what each peer sends",
		Long: `Accept secure channels on --listen and echo application data back to each peer.

The session (versions, cipher suites, verify mode, certificate, key and
anchors) is loaded from --config. The server stops on SIGINT or SIGTERM after
closing every open channel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := a.loadSession(cmd, configPath, passphraseEnv, serveCRLCache(cmd.Context()))
			if err != nil {
				return err
			}
			defer cfg.Close()

			if !cfg.HasCertificate() {
				return fmt.Errorf("%w: serving requires a certificate and key", session.ErrConfiguration)
			}

			var lc net.ListenConfig
			ln, err := lc.Listen(cmd.Context(), "tcp", listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listen, err)
			}
			log.Printf("listening on %s", ln.Addr())
			return serve(cmd.Context(), ln, cfg, timeout, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "session config file (JSON or YAML)")
	flags.StringVarP(&listen, "listen", "l", "127.0.0.1:8443", "address to listen on")
	flags.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the key passphrase")
	flags.DurationVar(&timeout, "handshake-timeout", 10*time.Second, "time allowed for each handshake")
	return cmd
}

// serveCRLCache returns the CRL cache shared by every channel a serve
// instance accepts. Expired CRLs are dropped in the background until ctx is done.
func serveCRLCache(ctx context.Context) *x509chain.CRLCache {
	cache := x509chain.NewCRLCache(nil)
	cache.StartCleanup(ctx)
	return cache
}

// serve accepts channels on ln until ctx is done. It closes ln and every
// open channel on the way out and returns once all handlers have finished.
func serve(ctx context.Context, ln net.Listener, cfg *session.Context, timeout time.Duration, log logger.Logger) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			ln.Close()
			return fmt.Errorf("accept: %w", err)
		}
		wg.Go(func() { echo(ctx, conn, cfg, timeout, log) })
	}
}

func echo(ctx context.Context, conn net.Conn, cfg *session.Context, timeout time.Duration, log logger.Logger) {
	peer := conn.RemoteAddr()
	ch := channel.Server(cfg, conn)
	defer ch.Close()

	stop := context.AfterFunc(ctx, func() { ch.Close() })
	defer stop()

	hctx, cancel := context.WithTimeout(ctx, timeout)
	err := ch.HandshakeContext(hctx)
	cancel()
	if err != nil {
		log.Printf("%s: handshake failed: %v", peer, err)
		return
	}

	cs := ch.ConnectionState()
	log.Printf("%s: established %s %s", peer, cs.Version, cs.CipherSuite)

	n, err := io.Copy(ch, ch)
	if err != nil && !errors.Is(err, channel.ErrClosed) {
		log.Printf("%s: %v", peer, err)
	}
	log.Printf("%s: closed after %d bytes", peer, n)
}

func (a *app) connectCommand() *cobra.Command {
	var (
		configPath    string
		passphraseEnv string
		message       string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect ADDRESS",
		Short: "Open a secure channel to ADDRESS",
		Long: `Open a secure channel to ADDRESS (HOST:PORT).

With --message the message is sent, the same number of bytes is read back and
printed, and the channel is closed. Without it stdin is sent to the peer and
whatever the peer sends is written to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.loadSession(cmd, configPath, passphraseEnv, nil)
			if err != nil {
				return err
			}
			defer cfg.Close()

			return connect(cmd.Context(), args[0], cfg, connectOptions{
				in:      cmd.InOrStdin(),
				out:     cmd.OutOrStdout(),
				message: message,
				timeout: timeout,
			}, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "session config file (JSON or YAML)")
	flags.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the key passphrase")
	flags.StringVarP(&message, "message", "m", "", "send MESSAGE, print the reply and exit")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "dial and handshake timeout")
	return cmd
}

type connectOptions struct {
	in      io.Reader
	out     io.Writer
	message string
	timeout time.Duration
}

func connect(ctx context.Context, addr string, cfg *session.Context, opts connectOptions, log logger.Logger) error {
	hctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(hctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	ch := channel.Client(cfg, conn)
	defer ch.Close()

	stop := context.AfterFunc(ctx, func() { ch.Close() })
	defer stop()

	if err := ch.HandshakeContext(hctx); err != nil {
		return err
	}

	cs := ch.ConnectionState()
	log.Printf("connected to %s: %s %s", addr, cs.Version, cs.CipherSuite)
	if cs.Verdict != nil {
		log.Printf("peer chain %s", cs.Verdict)
	}

	if opts.message != "" {
		if _, err := io.WriteString(ch, opts.message); err != nil {
			return err
		}
		reply := make([]byte, len(opts.message))
		if _, err := io.ReadFull(ch, reply); err != nil {
			return err
		}
		fmt.Fprintf(opts.out, "%s\n", reply)
		return ch.Close()
	}

	go func() {
		if _, err := io.Copy(ch, opts.in); err != nil && !errors.Is(err, channel.ErrClosed) {
			log.Printf("send: %v", err)
		}
		ch.Close()
	}()

	if _, err := io.Copy(opts.out, ch); err != nil && !errors.Is(err, channel.ErrClosed) {
		return err
	}
	return nil
}
