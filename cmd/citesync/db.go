package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/FocuswithJustin/citesync/core/bibdb"
	"github.com/FocuswithJustin/citesync/internal/validation"
)

// DBGroup contains bibliography database operations.
type DBGroup struct {
	Import DBImportCmd `cmd:"" help:"Import entries from a YAML file into a SQLite database"`
	List   DBListCmd   `cmd:"" help:"List the entries of a database"`
}

// DBImportCmd loads YAML entries into a database, creating it if needed.
type DBImportCmd struct {
	YAML string `arg:"" name:"yaml" help:"YAML entries file" type:"existingfile"`
	Into string `required:"" help:"SQLite database to fill" type:"path"`
}

func (c *DBImportCmd) Run(g *Globals) error {
	ctx := context.Background()
	if err := validation.CheckFile(c.YAML, validation.FileTypeText); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := validation.ValidatePath(c.Into); err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}
	f, err := os.Open(c.YAML)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.YAML, err)
	}
	defer f.Close()
	entries, err := bibdb.LoadEntriesYAML(f)
	if err != nil {
		return err
	}

	db, err := bibdb.OpenSQLite(ctx, filepath.Base(c.Into), c.Into)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Import(ctx, entries); err != nil {
		return err
	}
	g.printf("Imported %d entries into %s\n", len(entries), c.Into)
	return nil
}

// DBListCmd prints every entry of a database.
type DBListCmd struct {
	Database string `arg:"" help:"SQLite database" type:"existingfile"`
}

func (c *DBListCmd) Run(g *Globals) error {
	ctx := context.Background()
	if err := validation.CheckFile(c.Database, validation.FileTypeSQLite); err != nil {
		return err
	}
	db, err := bibdb.OpenSQLiteReadOnly(ctx, filepath.Base(c.Database), c.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	keys, err := db.Keys(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(g.out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "KEY\tAUTHOR\tYEAR\tTITLE")
	for _, k := range keys {
		e, ok, err := db.Lookup(ctx, k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k, bibdb.AuthorLabel(e), e.Field(bibdb.FieldYear), e.Field(bibdb.FieldTitle))
	}
	return nil
}
