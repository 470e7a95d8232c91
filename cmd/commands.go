package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gennadis/groqchat/internal/repl"
	"github.com/gennadis/groqchat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return repl.New(a.svc, a.cfg.Model, os.Stdin, cmd.OutOrStdout()).Run(cmd.Context())
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           server.NewServer(a.svc, a.journal),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", a.cfg.Addr, "model", a.cfg.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := a.svc.Store().SelectedID()
	out, err := a.svc.Send(cmd.Context(), id, strings.Join(args, " "), a.cfg.Model)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out.Session.Last().Content)
	if !out.Result.Success {
		return errors.New(out.Result.Error)
	}
	return nil
}
