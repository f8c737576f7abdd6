// lumenctl runs one intent against a lumend server from the terminal. It
// registers the built-in file tools over a local workspace, plays UI effects
// as log lines, and prints the run's event history when the run ends.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/lumenos/lumen/internal/client"
	"github.com/lumenos/lumen/internal/domain"
	"github.com/lumenos/lumen/internal/tools"
	"github.com/lumenos/lumen/internal/ui"
	"github.com/lumenos/lumen/internal/vfs"
)

type attachList []string

func (a *attachList) String() string { return strings.Join(*a, ",") }

func (a *attachList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

func run() error {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "lumend base URL")
		workDir   = flag.String("dir", "", "workspace directory for file tools (in-memory when empty)")
		resume    = flag.Bool("continue", false, "continue the previous session's context")
		label     = flag.String("label", "", "session record label")
		attaches  attachList
	)
	flag.Var(&attaches, "attach", "file to attach to the intent (repeatable)")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	intent := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if intent == "" {
		return fmt.Errorf("usage: lumenctl [flags] <intent text>")
	}

	fs := buildWorkspace(*workDir)

	registry := tools.NewRegistry()
	registry.RegisterAll(tools.FileTools(fs, "file-browser"))

	executor := ui.NewExecutor()
	defer executor.Close()
	executor.RegisterSurface("file-browser", ui.SurfaceFunc(logEffect))

	files, err := readAttachments(attaches)
	if err != nil {
		return err
	}

	loop := client.NewLoop(*serverURL, registry, executor)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rec, err := loop.ExecuteIntent(ctx, intent, client.Options{
		ContinueSession: *resume,
		Label:           *label,
		AttachedFiles:   files,
	})
	if err != nil {
		return err
	}

	printHistory(rec)

	if rec.CurrentStatus() != domain.RunStatusCompleted {
		return fmt.Errorf("run ended with status %s", rec.CurrentStatus())
	}
	return nil
}

// buildWorkspace roots the file tools in a real directory when one is given,
// otherwise in a throwaway in-memory tree.
func buildWorkspace(dir string) vfs.FileSystem {
	if dir == "" {
		return vfs.NewMem()
	}
	return vfs.New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

func readAttachments(paths []string) ([]domain.AttachedFile, error) {
	var files []domain.AttachedFile
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", p, err)
		}
		files = append(files, domain.AttachedFile{Path: p, Content: string(content)})
	}
	return files, nil
}

func logEffect(u domain.UIUpdate) error {
	log.Info().
		Str("type", string(u.Type)).
		Str("target", u.TargetID).
		Str("path", u.Path).
		Msg("ui effect")
	return nil
}

func printHistory(rec *client.Record) {
	for _, ev := range rec.Events() {
		switch ev.Type {
		case domain.EventAgentStart:
			fmt.Printf("> %s (session %s)\n", ev.Intent, ev.SessionID)
		case domain.EventToolCall:
			fmt.Printf("  tool: %s %v\n", ev.ToolName, ev.Args)
		case domain.EventToolResult:
			status := "ok"
			if ev.Result != nil && !ev.Result.Success {
				status = "failed: " + ev.Result.Error
			}
			fmt.Printf("  result: %s (%s)\n", ev.ToolName, status)
		case domain.EventAgentComplete:
			fmt.Printf("%s\n", ev.Message)
		case domain.EventAgentTimeout:
			fmt.Printf("timed out: %s\n", ev.Message)
		case domain.EventError:
			fmt.Printf("error: %s\n", ev.Message)
		}
	}
}
