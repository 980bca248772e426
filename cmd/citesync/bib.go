package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/errors"
)

// OrderGroup contains the ordering commands.
type OrderGroup struct {
	Visual  OrderVisualCmd  `cmd:"" help:"Order groups by their position on the page"`
	Textual OrderTextualCmd `cmd:"" help:"Order groups by stream, then by position in the stream"`
}

// OrderVisualCmd prints the visual order of the groups.
type OrderVisualCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
}

func (c *OrderVisualCmd) Run(g *Globals) error {
	return g.printOrder(c.Snapshot, true)
}

// OrderTextualCmd prints the textual order of the groups.
type OrderTextualCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
}

func (c *OrderTextualCmd) Run(g *Globals) error {
	return g.printOrder(c.Snapshot, false)
}

func (g *Globals) printOrder(path string, visual bool) error {
	w, err := g.open(context.Background(), path)
	if err != nil {
		return err
	}
	defer w.close()

	var ids []citation.GroupID
	if visual {
		ids, err = w.sess.VisualOrder()
	} else {
		ids, err = w.sess.TextualOrder()
	}
	if err != nil {
		return err
	}
	for i, id := range ids {
		g.printf("%d. %s\n", i+1, w.sess.Describe(id))
	}
	return nil
}

// CheckGroup contains consistency checks.
type CheckGroup struct {
	Overlaps CheckOverlapsCmd `cmd:"" help:"Report citations sharing or overlapping text"`
	Cursor   CheckCursorCmd   `cmd:"" help:"Report citations in the way of an edit at a position"`
}

// CheckOverlapsCmd reports overlapping anchors.
type CheckOverlapsCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
}

func (c *CheckOverlapsCmd) Run(g *Globals) error {
	w, err := g.open(context.Background(), c.Snapshot)
	if err != nil {
		return err
	}
	defer w.close()
	return g.reportOverlaps(w.sess.CheckRangeOverlaps())
}

// CheckCursorCmd reports anchors at a position.
type CheckCursorCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
	Stream   string `default:"body" help:"Stream of the position"`
	Offset   int    `required:"" help:"Character offset in the stream"`
}

func (c *CheckCursorCmd) Run(g *Globals) error {
	w, err := g.open(context.Background(), c.Snapshot)
	if err != nil {
		return err
	}
	defer w.close()
	st, err := findStream(w.doc, c.Stream)
	if err != nil {
		return err
	}
	at, err := w.doc.PointAt(st, c.Offset)
	if err != nil {
		return err
	}
	return g.reportOverlaps(w.sess.CheckCursorOverlap(at))
}

func (g *Globals) reportOverlaps(err error) error {
	if err == nil {
		g.printf("No overlapping citations\n")
		return nil
	}
	var overlap *errors.OverlapError
	if errors.As(err, &overlap) {
		for _, r := range overlap.Reports {
			g.printf("  %s\n", r)
		}
	}
	return err
}

// BibGroup contains bibliography operations.
type BibGroup struct {
	Build BibBuildCmd `cmd:"" help:"Look citations up, number them and rewrite their text"`
	Show  BibShowCmd  `cmd:"" help:"Print the bibliography without changing the snapshot"`
}

// BibBuildCmd runs a full refresh and saves the snapshot.
type BibBuildCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
	DryRun   bool   `name:"dry-run" help:"Do not write the snapshot"`
}

func (c *BibBuildCmd) Run(g *Globals) error {
	w, err := g.open(context.Background(), c.Snapshot)
	if err != nil {
		return err
	}
	defer w.close()

	sum, err := w.sess.Refresh(context.Background())
	if err != nil {
		return err
	}
	if !c.DryRun {
		if err := w.save(); err != nil {
			return err
		}
	}
	g.printf("Synchronized %d citation groups, %d cited keys (sync %s)\n", sum.Groups, sum.CitedKeys, sum.SyncID)
	if len(sum.Unresolved) > 0 {
		g.printf("Not found in any database: %s\n", strings.Join(sum.Unresolved, ", "))
	}
	return nil
}

// BibShowCmd prints the bibliography.
type BibShowCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
}

func (c *BibShowCmd) Run(g *Globals) error {
	w, err := g.open(context.Background(), c.Snapshot)
	if err != nil {
		return err
	}
	defer w.close()

	if _, err := w.sess.Refresh(context.Background()); err != nil {
		return err
	}
	lines, ok := w.sess.BibliographyLines()
	if !ok {
		return fmt.Errorf("no bibliography was built")
	}
	for _, line := range lines {
		g.printf("%s\n", line)
	}
	return nil
}
