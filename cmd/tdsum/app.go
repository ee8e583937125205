package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	digest "github.com/porticus-lab/tdnet-digest"
	"github.com/porticus-lab/tdnet-digest/internal/config"
	"github.com/porticus-lab/tdnet-digest/internal/server"
	"github.com/porticus-lab/tdnet-digest/internal/tdnet"
	"github.com/porticus-lab/tdnet-digest/pdf"
	"github.com/porticus-lab/tdnet-digest/relay"
	"github.com/porticus-lab/tdnet-digest/settings"
)

// newLogger is the CLI logger for commands that run without loading the
// full configuration.
func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

// app holds the components shared by serve and summarize.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   settings.Store
	relay   *relay.Relay
	fetcher *digest.Fetcher
	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: cfg.Logger()}

	if cfg.SettingsDSN != "" {
		pg, err := settings.OpenPGStore(ctx, cfg.SettingsDSN)
		if err != nil {
			return nil, err
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
		a.log.Info("settings stored in PostgreSQL")
	} else {
		a.store = settings.NewFileStore(cfg.SettingsFile)
		a.log.WithField("path", cfg.SettingsFile).Info("settings stored in file")
	}

	spawner, err := a.spawner()
	if err != nil {
		a.close()
		return nil, err
	}
	a.relay = relay.New(spawner, relay.WithLogger(a.log))
	a.closers = append(a.closers, func() {
		if err := a.relay.Close(); err != nil {
			a.log.WithError(err).Warn("closing worker")
		}
	})

	a.fetcher = digest.NewFetcher(digest.WithOrigin(cfg.Origin), digest.WithFetchLogger(a.log))
	return a, nil
}

// spawner returns the worker factory for the configured mode. A child
// process re-runs this binary as "tdsum worker".
func (a *app) spawner() (relay.Spawner, error) {
	if a.cfg.Worker == config.WorkerInProc {
		load, err := pdf.LoaderByName(a.cfg.Engine)
		if err != nil {
			return nil, err
		}
		return relay.InProcess{
			Extractor: pdf.NewExtractor(pdf.WithLoader(load), pdf.WithLogger(a.log)),
			Logger:    a.log,
		}, nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	return relay.ProcessSpawner{Path: self, Args: []string{"worker"}}, nil
}

func (a *app) pipeline(opts ...digest.Option) *digest.Pipeline {
	opts = append([]digest.Option{digest.WithSource(a.fetcher), digest.WithLogger(a.log)}, opts...)
	return digest.NewPipeline(a.store, a.relay, opts...)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// runServe implements the "serve" command.
func runServe(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	enabled, err := settings.Enabled(ctx, a.store)
	if err != nil {
		return err
	}

	var loader tdnet.Loader = tdnet.HTTPLoader{}
	if a.cfg.Browser == config.BrowserChrome {
		opts := []tdnet.BrowserOption{tdnet.WithAutoDownload()}
		if a.cfg.ChromePath != "" {
			opts = append(opts, tdnet.WithChromePath(a.cfg.ChromePath))
		}
		if a.cfg.NoSandbox {
			opts = append(opts, tdnet.WithNoSandbox())
		}
		b, err := tdnet.NewBrowser(opts...)
		if err != nil {
			return err
		}
		defer b.Close()
		loader = b
	}

	p := a.pipeline()
	srv := server.New(server.Options{
		Summarizer:     p,
		Store:          a.store,
		State:          tdnet.NewState(enabled),
		Loader:         loader,
		ListingURL:     a.cfg.ListingURL,
		AllowedOrigins: a.cfg.AllowedOrigins,
		Logger:         a.log,
	})
	return srv.ListenAndServe(ctx, a.cfg.Addr)
}

// fileSource reads disclosures from the local filesystem, falling back to
// the network for anything that is not an existing file.
type fileSource struct {
	next digest.Source
}

func (s fileSource) Fetch(ctx context.Context, link string) (*digest.Document, error) {
	if st, err := os.Stat(link); err == nil && !st.IsDir() {
		data, err := os.ReadFile(link)
		if err != nil {
			return nil, &digest.FetchError{URL: link, Err: err}
		}
		return digest.NewDocument(link, data), nil
	}
	return s.next.Fetch(ctx, link)
}

// fetchedSource hands out a document that was already downloaded for link,
// so the pipeline does not fetch it a second time.
type fetchedSource struct {
	link string
	doc  *digest.Document
	next digest.Source
}

func (s fetchedSource) Fetch(ctx context.Context, link string) (*digest.Document, error) {
	if link == s.link && s.doc != nil {
		return s.doc, nil
	}
	return s.next.Fetch(ctx, link)
}

// runSummarize implements the "summarize" command.
func runSummarize(args []string, stdout io.Writer) error {
	var (
		saveFile string
		textOnly bool
		link     string
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-save":
			v, err := nextArg(args, &i)
			if err != nil {
				return err
			}
			saveFile = v
		case "-text":
			textOnly = true
		default:
			if strings.HasPrefix(args[i], "-") {
				return fmt.Errorf("unknown option: %s", args[i])
			}
			link = args[i]
		}
	}
	if link == "" {
		return fmt.Errorf("no PDF URL specified")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var src digest.Source = fileSource{next: a.fetcher}
	if saveFile != "" || textOnly {
		doc, err := src.Fetch(ctx, link)
		if err != nil {
			return err
		}
		if saveFile != "" {
			if err := doc.WriteToFile(saveFile, 0o644); err != nil {
				return err
			}
		}
		if textOnly {
			text, err := a.relay.Extract(ctx, doc.Bytes())
			if err != nil {
				return &digest.ExtractionError{Err: err}
			}
			_, err = fmt.Fprintln(stdout, text)
			return err
		}
		src = fetchedSource{link: link, doc: doc, next: src}
	}

	summary, err := a.pipeline(digest.WithSource(src)).Summarize(ctx, digest.SummarizeRequest{
		Action: relay.ActionSummarize,
		PDFURL: link,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, summary)
	return err
}

// runRows implements the "rows" command.
func runRows(args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	listingURL := cfg.ListingURL
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-url":
			if listingURL, err = nextArg(args, &i); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown option: %s", args[i])
		}
	}

	listing, err := tdnet.HTTPLoader{}.Load(context.Background(), listingURL)
	if err != nil {
		return err
	}
	doc, err := tdnet.ParseHTML(strings.NewReader(listing.HTML))
	if err != nil {
		return err
	}
	rows := tdnet.Rows(doc)
	base := digest.NewFetcher(digest.WithOrigin(listing.URL))
	for i := range rows {
		if abs, err := base.Resolve(rows[i].PDFURL); err == nil {
			rows[i].PDFURL = abs
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// runWorker implements the "worker" command: the extraction side of the
// relay, speaking on stdin and stdout. Logs go to stderr only.
func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.Logger()
	load, err := pdf.LoaderByName(cfg.Engine)
	if err != nil {
		return err
	}
	ext := pdf.NewExtractor(pdf.WithLoader(load), pdf.WithLogger(log))

	rw := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	return relay.Serve(context.Background(), rw, ext, log)
}
