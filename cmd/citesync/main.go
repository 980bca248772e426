// Command citesync keeps the citations of a document in step with a
// bibliography database. It works on document snapshots (.json.xz) produced
// by "doc import" and on SQLite bibliography databases filled by "db import".
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/core/document"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/memdoc"
	"github.com/FocuswithJustin/citesync/core/session"
	"github.com/FocuswithJustin/citesync/core/sqlite"
	"github.com/FocuswithJustin/citesync/internal/config"
	"github.com/FocuswithJustin/citesync/internal/logging"
	"github.com/FocuswithJustin/citesync/internal/validation"
)

const version = "0.1.0"

// CLI defines the command-line interface for citesync.
type CLI struct {
	Globals

	// Command groups (noun-first organization)
	Doc       DocGroup   `cmd:"" help:"Document snapshots (import, show)"`
	Group     GroupGroup `cmd:"" help:"Citation groups (add, remove, list)"`
	Order     OrderGroup `cmd:"" help:"Compute the order of citation groups"`
	Check     CheckGroup `cmd:"" help:"Consistency checks"`
	Bib       BibGroup   `cmd:"" help:"Bibliography (build, show)"`
	Databases DBGroup    `cmd:"" name:"db" help:"Bibliography databases (import, list)"`
	Version   VersionCmd `cmd:"" help:"Print version information"`
}

// Globals are the flags shared by every command.
type Globals struct {
	Config    string   `name:"config" short:"c" help:"Configuration file (YAML)" type:"path"`
	LogLevel  string   `name:"log-level" help:"Override the log level (debug, info, warn, error)"`
	LogFormat string   `name:"log-format" help:"Override the log format (text, json)"`
	DB        []string `name:"db" help:"SQLite bibliography database; repeat to search several in order"`

	out io.Writer      `kong:"-"`
	cfg *config.Config `kong:"-"`
}

// setup loads the configuration, applies flag overrides and starts logging.
func (g *Globals) setup(stderr io.Writer) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.LogFormat = g.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, format := cfg.Logging()
	logging.InitLoggerTo(stderr, level, format)
	g.cfg = cfg
	return nil
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.out, format, args...)
}

// openDatabases opens every --db database, cached as configured. The
// returned function closes them.
func (g *Globals) openDatabases(ctx context.Context) ([]bibdb.Database, func(), error) {
	var opened []*bibdb.SQLiteDatabase
	var cached []*bibdb.CachedDatabase
	closeAll := func() {
		for _, c := range cached {
			st := c.Stats()
			logging.Debug("lookup cache", "database", c.Name(), "hits", st.Hits, "misses", st.Misses)
		}
		for _, db := range opened {
			if err := db.Close(); err != nil {
				logging.Warn("close database", "database", db.Name(), "error", err)
			}
		}
	}
	var dbs []bibdb.Database
	for _, path := range g.DB {
		if err := validation.CheckFile(path, validation.FileTypeSQLite); err != nil {
			closeAll()
			return nil, nil, errors.Wrapf(err, "database %s", path)
		}
		db, err := bibdb.OpenSQLiteReadOnly(ctx, filepath.Base(path), path)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, db)
		if size := g.cfg.LookupCacheSize; size > 0 {
			c := bibdb.NewCachedDatabase(db, size)
			cached = append(cached, c)
			dbs = append(dbs, c)
		} else {
			dbs = append(dbs, db)
		}
	}
	return dbs, closeAll, nil
}

// workspace is an open snapshot with its session.
type workspace struct {
	path  string
	doc   *memdoc.Document
	sess  *session.Session
	close func()
}

func (w *workspace) save() error {
	return w.doc.SaveFile(w.path)
}

// open loads the snapshot at path and opens a session over it with the
// configured options and databases.
func (g *Globals) open(ctx context.Context, path string) (*workspace, error) {
	if err := validation.CheckFile(path, validation.FileTypeSnapshot); err != nil {
		return nil, err
	}
	doc, err := memdoc.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return g.openDocument(ctx, path, doc)
}

func (g *Globals) openDocument(ctx context.Context, path string, doc *memdoc.Document) (*workspace, error) {
	opts, err := g.cfg.SessionOptions()
	if err != nil {
		return nil, err
	}
	dbs, closeDBs, err := g.openDatabases(ctx)
	if err != nil {
		return nil, err
	}
	opts.Databases = dbs
	sess, err := session.Open(ctx, doc, opts)
	if err != nil {
		closeDBs()
		return nil, err
	}
	for _, p := range sess.Problems() {
		g.printf("warning: skipped %s: %s\n", p.Name, errors.UserMessage(p.Err))
	}
	return &workspace{path: path, doc: doc, sess: sess, close: closeDBs}, nil
}

// findStream resolves a stream by id, or "body" for the main text.
func findStream(doc *memdoc.Document, id string) (document.Stream, error) {
	if id == "" || id == memdoc.BodyStreamID {
		return doc.Body(), nil
	}
	for _, s := range doc.Streams() {
		if s.ID == id {
			return s, nil
		}
	}
	return document.Stream{}, errors.NewNotFound("stream", id)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	g.printf("citesync version %s\n", version)
	info := sqlite.GetInfo()
	g.printf("sqlite driver: %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

func newParser(cli *CLI, stdout, stderr io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("citesync"),
		kong.Description("Citation groups and bibliographies for documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
	)
}

// run parses args and executes the selected command.
func run(args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := newParser(&cli, stdout, stderr)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cli.Globals.out = stdout
	if err := cli.Globals.setup(stderr); err != nil {
		return err
	}
	return ctx.Run(&cli.Globals)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "citesync: %s\n", errors.UserMessage(err))
		os.Exit(1)
	}
}
