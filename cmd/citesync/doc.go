package main

import (
	"context"
	"fmt"
	"os"

	"github.com/FocuswithJustin/citesync/core/memdoc"
	"github.com/FocuswithJustin/citesync/core/session"
	"github.com/FocuswithJustin/citesync/internal/validation"
)

// DocGroup contains document snapshot operations.
type DocGroup struct {
	Import DocImportCmd `cmd:"" help:"Import an XML document and turn its <cite/> elements into citation groups"`
	Show   DocShowCmd   `cmd:"" help:"Print the text of every stream of a snapshot"`
}

// DocImportCmd converts an XML document into a snapshot.
type DocImportCmd struct {
	XML string `arg:"" help:"XML document to import" type:"existingfile"`
	Out string `required:"" short:"o" help:"Snapshot to write (.json.xz)" type:"path"`
}

func (c *DocImportCmd) Run(g *Globals) error {
	ctx := context.Background()
	if err := validation.CheckFile(c.XML, validation.FileTypeXML); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	data, err := os.ReadFile(c.XML)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.XML, err)
	}
	doc, cites, err := memdoc.LoadXML(data)
	if err != nil {
		return err
	}

	w, err := g.openDocument(ctx, c.Out, doc)
	if err != nil {
		return err
	}
	defer w.close()

	placeholders := make([]session.Placeholder, len(cites))
	for i, cite := range cites {
		placeholders[i] = session.Placeholder{Mark: cite.Mark, Attrs: cite.Attrs}
	}
	ids, importErr := w.sess.ImportPlaceholders(placeholders)
	if err := w.save(); err != nil {
		return err
	}
	g.printf("Imported %d citation groups into %s\n", len(ids), c.Out)
	return importErr
}

// DocShowCmd prints a snapshot's text.
type DocShowCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
}

func (c *DocShowCmd) Run(g *Globals) error {
	if err := validation.CheckFile(c.Snapshot, validation.FileTypeSnapshot); err != nil {
		return err
	}
	doc, err := memdoc.LoadFile(c.Snapshot)
	if err != nil {
		return err
	}
	for _, st := range doc.Streams() {
		text, err := doc.StreamText(st)
		if err != nil {
			return err
		}
		g.printf("[%s %s]\n%s\n", st.Kind, st.ID, text)
	}
	return nil
}
