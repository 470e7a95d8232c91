package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gennadis/groqchat/internal/chat"
	"github.com/gennadis/groqchat/internal/client"
	"github.com/gennadis/groqchat/internal/config"
	"github.com/gennadis/groqchat/internal/conversation"
	"github.com/gennadis/groqchat/internal/observability"
	"github.com/gennadis/groqchat/internal/session"
	"github.com/gennadis/groqchat/storage"
)

var (
	// Global flags
	envFile string
	model   string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "groqchat",
	Short: "Multi-session chat client for Groq hosted models",
	Long: `groqchat keeps several in-memory chat sessions and forwards the
selected session's history to the Groq chat completions API.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive terminal chat",
	RunE:  runChat,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API used by the browser front-end",
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question in a fresh session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known model identifiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, m := range chat.KnownModels() {
			suffix := ""
			if m == chat.DefaultModel {
				suffix = " (default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", m, suffix)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "model identifier (default from GROQ_MODEL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(chatCmd, serveCmd, askCmd, modelsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app is the object graph shared by every command
type app struct {
	cfg     *config.Config
	svc     *conversation.Service
	journal *storage.Journal
}

func newApp() (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.Model = chat.ChatModel(model)
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	observability.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	completionClient, err := client.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	journal, err := storage.NewJournal(cfg.JournalDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	store := session.New(
		session.WithTitle(cfg.Title),
		session.WithGreeting(cfg.Greeting),
		session.WithObserver(journal),
	)

	return &app{
		cfg:     cfg,
		svc:     conversation.NewService(store, completionClient),
		journal: journal,
	}, nil
}

func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		slog.Error("Failed to close journal", "error", err)
	}
}
