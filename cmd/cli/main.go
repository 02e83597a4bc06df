// Package main is a terminal client for the scripture engine. It runs the
// engine in-process with the same configuration as the REST server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bibleai-be/internal/bootstrap"
	"bibleai-be/internal/config"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/rag/executor"
	"bibleai-be/pkg/store"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
)

// CLI defines the command-line interface using Kong
var CLI struct {
	Manifest string `name:"manifest" short:"m" help:"Corpus manifest (default: CORPUS_MANIFEST)" type:"path"`

	Ingest  IngestCmd  `cmd:"" help:"Load the corpus into the verse store and vector index"`
	Chat    ChatCmd    `cmd:"" help:"Interactive conversation"`
	Search  SearchCmd  `cmd:"" help:"Retrieve verses for a query without generation"`
	Chapter ChapterCmd `cmd:"" help:"Print a whole chapter"`
	Health  HealthCmd  `cmd:"" help:"Show corpus and backend status"`
}

// boot builds the container. The in-memory store starts empty, so it is
// loaded on every run; persistent stores are filled by the ingest command.
func boot(ctx context.Context, forceLoad bool) (*bootstrap.Container, error) {
	cfg := config.Load()
	if CLI.Manifest != "" {
		cfg.Corpus.ManifestPath = CLI.Manifest
	}

	c, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if forceLoad || cfg.Database.Driver == "" || cfg.Database.Driver == "memory" {
		stats, err := c.LoadCorpus(ctx)
		if err != nil {
			c.Close(ctx)
			return nil, err
		}
		if forceLoad {
			for translation, n := range stats.Translations {
				color.Green("  %s: %d verses", translation, n)
			}
			color.Cyan("Loaded %d verses, embedded %d, skipped %d", stats.Verses, stats.Embedded, stats.Skipped)
		}
	}
	return c, nil
}

type IngestCmd struct{}

func (i *IngestCmd) Run(ctx context.Context) error {
	c, err := boot(ctx, true)
	if err != nil {
		return err
	}
	return c.Close(ctx)
}

type ChatCmd struct {
	Session      string `name:"session" help:"Resume a session id"`
	Translation  string `name:"translation" short:"t" help:"Preferred translation (KJV, WEB, KRV, ...)"`
	Denomination string `name:"denomination" short:"d" help:"Denomination perspective"`
}

func (ch *ChatCmd) Run(ctx context.Context) error {
	c, err := boot(ctx, false)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	var prefs *store.Preferences
	if ch.Translation != "" || ch.Denomination != "" {
		prefs = &store.Preferences{Denomination: ch.Denomination}
		if t, ok := bible.LookupTranslation(ch.Translation); ok && t.Language == bible.Korean {
			prefs.TranslationKR = t.Code
		} else {
			prefs.TranslationEN = ch.Translation
		}
	}

	sessionID := ch.Session
	color.Cyan("Ask anything. An empty line or Ctrl-D quits.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.YellowString("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}

		res, err := c.Engine.Chat(ctx, executor.ChatRequest{Message: line, SessionID: sessionID, Preferences: prefs})
		if err != nil {
			color.Red("Failed: %v", err)
			continue
		}
		sessionID = res.SessionID
		prefs = nil

		fmt.Println(res.Text)
		for _, src := range res.Sources {
			color.Green("  [%s] %s (%s, %.2f)", src.Kind, src.Reference, src.Translation, src.Score)
		}
		for i, f := range res.Fetched {
			color.Cyan("  %s (%s): %s", f.Reference, f.Translation, f.Text)
			if i == len(res.Fetched)-1 {
				color.HiBlack("  %s", f.Notice)
			}
		}
		note := fmt.Sprintf("  %s, confidence %.2f, session %s", res.Mode, res.Confidence, res.SessionID)
		if res.Usage.InputTokens+res.Usage.OutputTokens > 0 {
			note += fmt.Sprintf(", tokens %d/%d", res.Usage.InputTokens, res.Usage.OutputTokens)
		}
		if res.Degraded {
			note += ", semantic search unavailable"
		}
		color.HiBlack(note)
	}
}

type SearchCmd struct {
	Limit       int      `name:"limit" short:"n" default:"5" help:"Number of results"`
	Translation string   `name:"translation" short:"t" help:"Translation to search"`
	Query       []string `arg:"" required:"" help:"Query text or reference"`
}

func (s *SearchCmd) Run(ctx context.Context) error {
	c, err := boot(ctx, false)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	res, err := c.Engine.Search(ctx, strings.Join(s.Query, " "), s.Translation, s.Limit)
	if err != nil {
		return err
	}

	color.Cyan("%s (%s, %s, confidence %.2f)", res.Query, res.Translation, res.Mode, res.Confidence)
	for _, cand := range res.Candidates {
		src := cand.Source()
		color.Green("%.3f  %-8s %s / %s", src.Score, src.Kind, src.Reference, src.ReferenceKR)
		fmt.Printf("       %s\n", src.Text)
	}
	return nil
}

type ChapterCmd struct {
	Translation string   `name:"translation" short:"t" help:"Translation to read"`
	Reference   []string `arg:"" required:"" help:"Chapter reference, e.g. \"Psalm 23\" or \"시편 23편\""`
}

func (ch *ChapterCmd) Run(ctx context.Context) error {
	c, err := boot(ctx, false)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	res, err := c.Engine.Chapter(ctx, strings.Join(ch.Reference, " "), ch.Translation)
	if err != nil {
		return err
	}

	color.Cyan("%s %d / %s %d (%s)", res.BookName, res.Chapter, res.BookNameKR, res.Chapter, res.Translation)
	for _, v := range res.Verses {
		fmt.Printf("%s %s\n", color.YellowString("%3d", v.ID.Verse), v.Text)
	}
	return nil
}

type HealthCmd struct{}

func (h *HealthCmd) Run(ctx context.Context) error {
	c, err := boot(ctx, false)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	status := c.Engine.Health(ctx)
	printStatus := color.Green
	if status.Status != "ok" {
		printStatus = color.Red
	}
	printStatus("status:       %s", status.Status)
	fmt.Printf("verses:       %d\n", status.Verses)
	fmt.Printf("translations: %s\n", strings.Join(status.Translations, ", "))
	fmt.Printf("vectors:      %d (%s)\n", status.VectorCount, status.VectorBackend)
	fmt.Printf("model:        %s\n", status.Model)
	fmt.Printf("threshold:    %.2f\n", status.Threshold)
	fmt.Printf("esv:          %t\n", status.ESVEnabled)
	return nil
}

func main() {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx := kong.Parse(&CLI,
		kong.Name("bibleai"),
		kong.Description("Bilingual scripture search and conversation"),
		kong.UsageOnError(),
		kong.BindTo(sigCtx, (*context.Context)(nil)),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
