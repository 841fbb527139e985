// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// furbySession is a running supervisor bound to the connection flags
type furbySession struct {
	*session.Supervisor

	info   string
	cancel context.CancelFunc
}

// commandContext returns a context cancelled on Ctrl+C or SIGTERM
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// startSession opens the configured dialer, runs a supervisor and waits for
// the first connection. Every event before Connected is consumed.
func startSession(ctx context.Context, opts ...session.Option) (*furbySession, error) {
	dialer, info, err := OpenDialer()
	if err != nil {
		return nil, connectionError("%v", err)
	}

	opts = append([]session.Option{session.WithLogger(zap.L().Named("session"))}, opts...)
	sup := session.New(dialer, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := sup.Run(runCtx); err != nil {
			zap.L().Error("supervisor stopped", zap.Error(err))
		}
	}()

	fs := &furbySession{Supervisor: sup, info: info, cancel: cancel}

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sup.Events():
			if !ok {
				fs.Close()
				return nil, connectionError("session ended before connecting to %s", info)
			}
			if _, isConnected := ev.(session.Connected); isConnected {
				return fs, nil
			}

		case <-timer.C:
			fs.Close()
			return nil, connectionError("no connection to %s within %v", info, connectTimeout)

		case <-ctx.Done():
			fs.Close()
			return nil, connectionError("interrupted while connecting to %s", info)
		}
	}
}

// Close stops the supervisor and waits for it to release the connection
func (fs *furbySession) Close() {
	fs.Stop()
	fs.cancel()
	<-fs.Done()
}

func printHeader(title, info string) {
	fmt.Printf("Fluffstat - %s\n", title)
	fmt.Printf("Connection: %s\n", info)
}

// printConnectionEvent reports link changes; other events are ignored
func printConnectionEvent(ev session.Event) {
	timestamp := time.Now().Format("15:04:05.000")
	switch e := ev.(type) {
	case session.Connected:
		fmt.Printf("[%s] \033[1;32mCONNECTED\033[0m\n", timestamp)
	case session.Disconnected:
		if e.Err != nil {
			fmt.Printf("[%s] \033[1;31mDISCONNECTED:\033[0m %v\n", timestamp, e.Err)
		} else {
			fmt.Printf("[%s] \033[1;31mDISCONNECTED\033[0m\n", timestamp)
		}
	}
}

// withSession runs fn against a connected session
func withSession(cmd *cobra.Command, fn func(ctx context.Context, fs *furbySession) error) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	return fn(ctx, fs)
}
