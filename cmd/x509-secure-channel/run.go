// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/cli"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/logger"
	verpkg "github.com/H0llyW00dzZ/x509-secure-channel/src/version"
)

var version string // set by ldflags or defaults to imported version

// shutdownGrace bounds how long open channels get to send close_notify after a signal.
const shutdownGrace = 2 * time.Second

func init() {
	if version == "" {
		version = verpkg.Version
	}
}

func main() {
	log := logger.NewCLILogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- cli.Execute(ctx, version, log)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("Error: %v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Println("Received termination signal, closing channels...")
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			log.Println("Shutdown timed out.")
		}
		os.Exit(130) // Standard exit code for SIGINT
	}
}
