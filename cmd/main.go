package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/rag"
	"pdf-rag/internal/server"
	"pdf-rag/internal/tui"
)

const (
	configFilePath = "./configs/config.yaml"
	tuiLogFile     = "pdf-rag.log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	setLogOutput(os.Stdout)

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the PDF file")
	query := flag.String("query", "", "Question to be answered")
	serve := flag.Bool("serve", false, "Start the HTTP server")
	addr := flag.String("addr", "", "HTTP listen address, overrides server.addr")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setLogLevel(cfg.Log.Level, *debug)
	if *debug {
		cfg.Log.Level = zerolog.LevelDebugValue
	}
	log.Info().Str("config", cfg.String()).Msg("Loaded config")
	log.Debug().Interface("config", cfg.Redacted()).Msg("Config details")

	switch {
	case *serve:
		if *filePath != "" || *query != "" {
			log.Fatal().Msg("-serve cannot be combined with -file or -query")
		}
		if *addr != "" {
			cfg.Server.Addr = *addr
		}
		runServer(cfg)
	case *filePath != "" && *query != "":
		askOnce(cfg, *filePath, *query)
	case *filePath != "":
		runTUI(cfg, *filePath)
	case *query != "":
		log.Fatal().Msg("A question needs a document, provide it with the -file flag")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func setLogOutput(w io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func setLogLevel(level string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

func newSession(cfg *config.Config) *rag.Session {
	pipeline, err := rag.NewRAGFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg(llmservice.UserMessage(err))
	}
	return rag.NewSession(pipeline)
}

func upload(ctx context.Context, session *rag.Session, filePath string) *rag.BuildSummary {
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading document")
	}
	summary, err := session.Upload(ctx, filepath.Base(filePath), data)
	if err != nil {
		log.Fatal().Err(err).Msg(llmservice.UserMessage(err))
	}
	return summary
}

// askOnce builds the knowledge base, answers a single question and prints it.
func askOnce(cfg *config.Config, filePath, query string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := newSession(cfg)
	defer session.Reset()

	summary := upload(ctx, session, filePath)
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		helper.PrettyPrint(summary)
	}

	response, err := session.Ask(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg(llmservice.UserMessage(err))
		stop()
		os.Exit(1)
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)

	if response.Usage != nil {
		fmt.Printf("%s\n", response.Usage)
	}
}

// runTUI builds the knowledge base and hands the terminal to the question loop.
func runTUI(cfg *config.Config, filePath string) {
	f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening log file")
	}
	defer f.Close()

	session := newSession(cfg)
	defer session.Reset()

	fmt.Printf("Building knowledge base from %s...\n", filePath)
	summary := upload(context.Background(), session, filePath)
	log.Info().Str("log_file", tuiLogFile).Msg("Switching logs to file")
	setLogOutput(f)

	title := fmt.Sprintf("%s: %d pages, %d chunks, built in %s",
		summary.Filename, summary.Pages, summary.Chunks, summary.Duration.Round(time.Millisecond))
	if _, err := tea.NewProgram(tui.New(session, title), tea.WithAltScreen()).Run(); err != nil {
		setLogOutput(os.Stdout)
		log.Fatal().Err(err).Msg("Error running TUI")
	}
}

func runServer(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := newSession(cfg)
	defer session.Reset()

	if err := server.Run(ctx, cfg, session, cfg.Server.Addr); err != nil {
		log.Error().Err(err).Msg("HTTP server stopped")
		stop()
		os.Exit(1)
	}
}
