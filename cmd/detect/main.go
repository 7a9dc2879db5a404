package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	appdet "github.com/bryanwahyu/deepfake-detector/internal/application/detection"
	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/db/migrations"
	sqlitep "github.com/bryanwahyu/deepfake-detector/internal/infra/db/sqlite"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/provider/mock"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/storage"
)

// Local CLI: runs the detection workflow on a file without the HTTP server.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}
	switch args[0] {
	case "analyze":
		return runAnalyze(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "types":
		return printJSON(domain.AcceptedTypes())
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  detect analyze [-db path] [-tick 200ms] [-settle 500ms] [-quiet] FILE
  detect history [-db path] [-limit 20]
  detect types`)
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	dbPath := fs.String("db", "", "sqlite history database (empty: do not record)")
	tick := fs.Duration("tick", appdet.DefaultTick, "progress tick interval")
	settle := fs.Duration("settle", appdet.DefaultSettle, "pause between 100% and the result")
	quiet := fs.Bool("quiet", false, "do not print progress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("analyze needs exactly one file")
	}

	file, err := readFile(fs.Arg(0))
	if err != nil {
		return err
	}

	svc := &appdet.Service{
		Providers: mock.Providers(),
		Previews:  storage.NewMemoryStore(""),
		Simulation: appdet.SimulationConfig{
			Tick:   *tick,
			Settle: *settle,
		},
	}
	if *dbPath != "" {
		db, err := sqlitep.Open(ctx, *dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.Up(ctx, db, "sqlite"); err != nil {
			return err
		}
		svc.Repo = sqlitep.NewAnalysisRepository(db)
	}
	defer svc.Shutdown(context.Background())

	snap, err := svc.CreateSession(ctx)
	if err != nil {
		return err
	}
	ctrl, err := svc.Controller(snap.SessionID)
	if err != nil {
		return err
	}
	if _, err := svc.Intake(ctx, snap.SessionID, file); err != nil {
		return err
	}

	events, unsubscribe := ctrl.Subscribe(256)
	defer unsubscribe()

	_, task, err := svc.StartAnalysis(ctx, snap.SessionID)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			task.Cancel()
			return ctx.Err()
		case ev := <-events:
			if ev.Type == appdet.EventProgress && !*quiet && ev.Snapshot.Analysis != nil {
				fmt.Fprintf(os.Stderr, "\ranalyzing %s %5.1f%%", file.Name, ev.Snapshot.Analysis.Progress)
			}
		case <-task.Done():
			if !*quiet {
				fmt.Fprintln(os.Stderr)
			}
			if err := task.Err(); err != nil {
				return err
			}
			out := ctrl.Snapshot()
			out.Preview = nil
			return printJSON(out)
		}
	}
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dbPath := fs.String("db", "data/detector.db", "sqlite history database")
	limit := fs.Int("limit", 20, "max records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqlitep.Open(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Up(ctx, db, "sqlite"); err != nil {
		return err
	}
	svc := &appdet.Service{Repo: sqlitep.NewAnalysisRepository(db)}

	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	list, err := svc.History(ctx2, *limit)
	if err != nil {
		return err
	}
	return printJSON(list)
}

// readFile loads path, taking the MIME type from the extension and falling
// back to content sniffing.
func readFile(path string) (domain.SubmittedFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return domain.SubmittedFile{}, err
	}
	if st.Size() > domain.MaxFileSize {
		// do not read it; intake rejects by size alone
		return domain.SubmittedFile{Name: filepath.Base(path), Size: st.Size()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SubmittedFile{}, err
	}
	mimeType := domain.TypeForExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = domain.SniffMIME(data)
	}
	return domain.SubmittedFile{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Content:  data,
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
