// Command bluebook tracks a writing session on a document and exports
// it with the session's telemetry embedded as invisible markers.
//
// Usage:
//
//	bluebook [flags] <essay.txt>
//
// The tool watches the document while the author writes, counting write
// activity as input events and accruing active time while the author is
// neither idle nor away. On SIGINT or SIGTERM it freezes the session,
// encodes the telemetry record, and writes the exported artifact.
//
// Examples:
//
//	# Track an essay, export on Ctrl-C
//	bluebook -title "My Essay" -name "A. Writer" essay.txt
//
//	# Explicit output path
//	bluebook -title "My Essay" -name "A. Writer" -out submission.txt essay.txt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bluebook/internal/collector"
	"bluebook/internal/config"
	"bluebook/internal/logging"
	"bluebook/internal/record"
	"bluebook/internal/stego"
)

var (
	// Version information (set at build time)
	version = "dev"
)

func main() {
	title := flag.String("title", "", "essay title (defaults to "+record.DefaultTitle+")")
	name := flag.String("name", "", "author name (defaults to "+record.DefaultName+")")
	configPath := flag.String("config", config.DefaultPath(), "configuration file (toml or yaml)")
	out := flag.String("out", "", "output file (default: \"<Title> - <Name>.txt\")")
	versionFlag := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "bluebook - Track a writing session and export a verifiable document\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <essay.txt>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("bluebook %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: essay file required\n\n")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *title, *name, *configPath, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(essayPath, title, name, configPath, out string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	log := logging.FromNames(cfg.Logging.Level, cfg.Logging.Format, "bluebook")

	alphabet, err := cfg.Alphabet()
	if err != nil {
		return err
	}
	codec, err := stego.NewCodec(alphabet)
	if err != nil {
		return err
	}

	session := collector.NewSession(cfg.Collector.IdleThreshold())
	tracker, err := collector.NewTracker(session, essayPath, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go collector.RunFocusProbe(ctx, session, cfg.Collector.IdleThreshold(), log)

	log.Info("tracking session started",
		"session_id", session.ID(), "document", tracker.Path())
	fmt.Fprintf(os.Stderr, "Tracking %s. Press Ctrl-C to export.\n", tracker.Path())

	if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	session.End()

	essay, err := os.ReadFile(tracker.Path())
	if err != nil {
		return fmt.Errorf("read essay: %w", err)
	}

	rec, err := session.Snapshot(string(essay), strings.TrimSpace(title), strings.TrimSpace(name))
	if err != nil {
		return err
	}

	markers, err := codec.Encode(rec)
	if err != nil {
		return err
	}

	outPath := out
	if outPath == "" {
		exportTitle := rec.Title
		if exportTitle == "" {
			exportTitle = record.DefaultTitle
		}
		exportName := rec.Name
		if exportName == "" {
			exportName = record.DefaultName
		}
		outPath = fmt.Sprintf("%s - %s.txt", exportTitle, exportName)
	}

	artifact := stego.Compose(string(essay), markers)
	if err := os.WriteFile(outPath, []byte(artifact), 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	log.Info("session exported",
		"session_id", rec.SessionID,
		"keystrokes", rec.Keystrokes,
		"active_minutes", rec.ActiveMinutes,
		"word_count", rec.WordCount,
		"output", outPath)
	fmt.Printf("Exported %s (%d words, %d keystrokes, %d active minutes)\n",
		outPath, rec.WordCount, rec.Keystrokes, rec.ActiveMinutes)

	return nil
}
