// Terminal client for the auditsseus chat relay
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/ashureev/auditsseus-chat/internal/chat"
	"github.com/ashureev/auditsseus-chat/internal/config"
	"github.com/ashureev/auditsseus-chat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewJSONHandler(logOut, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	widget := chat.New(chat.NewRelayClient(cfg.RelayURL), chat.WithTimeout(cfg.ChatTimeout))
	defer widget.Close()

	logger.Info("chat client started", "relay", cfg.RelayURL, "timeout", cfg.ChatTimeout)

	p := tea.NewProgram(tui.New(ctx, widget, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("chat client failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
