package main

import (
	"context"
	"strings"
	"text/tabwriter"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/session"
)

// GroupGroup contains citation group operations.
type GroupGroup struct {
	Add    GroupAddCmd    `cmd:"" help:"Insert a citation group"`
	Remove GroupRemoveCmd `cmd:"" help:"Remove citation groups"`
	List   GroupListCmd   `cmd:"" help:"List citation groups"`
}

// GroupAddCmd inserts a citation group at a position.
type GroupAddCmd struct {
	Snapshot  string   `arg:"" help:"Document snapshot" type:"existingfile"`
	Keys      []string `required:"" short:"k" help:"Citation keys, comma separated"`
	Kind      string   `default:"parenthetical" enum:"parenthetical,in-text,invisible" help:"Citation kind (parenthetical, in-text, invisible)"`
	Page      []string `sep:"none" help:"Page info; once for the group, or once per key under the citation page info model"`
	Stream    string   `default:"body" help:"Stream to insert into"`
	Offset    int      `required:"" help:"Character offset in the stream"`
	Separator bool     `help:"Insert a space after the citation"`
	Force     bool     `help:"Insert even where another citation is in the way"`
}

func (c *GroupAddCmd) Run(g *Globals) error {
	ctx := context.Background()
	w, err := g.open(ctx, c.Snapshot)
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
	if !c.Force {
		if err := w.sess.CheckCursorOverlap(at); err != nil {
			return err
		}
	}
	kind, err := citation.ParseKind(c.Kind)
	if err != nil {
		return err
	}

	req := session.GroupRequest{Keys: c.Keys, Kind: kind, At: at, TrailingSeparator: c.Separator}
	switch {
	case len(c.Page) == 0:
	case w.sess.Options().DataModel == citation.CitationPageInfo:
		req.CitationPageInfo = c.Page
	case len(c.Page) == 1:
		req.PageInfo = c.Page[0]
	default:
		return errors.NewValidation("page", "the group page info model takes a single --page")
	}

	id, err := w.sess.CreateGroup(req)
	if err != nil {
		return err
	}
	if err := w.save(); err != nil {
		return err
	}
	g.printf("%s\n", id)
	return nil
}

// GroupRemoveCmd removes citation groups by id.
type GroupRemoveCmd struct {
	Snapshot string   `arg:"" help:"Document snapshot" type:"existingfile"`
	IDs      []string `arg:"" name:"id" help:"Ids of the groups to remove"`
}

func (c *GroupRemoveCmd) Run(g *Globals) error {
	ctx := context.Background()
	w, err := g.open(ctx, c.Snapshot)
	if err != nil {
		return err
	}
	defer w.close()

	ids := make([]citation.GroupID, len(c.IDs))
	for i, id := range c.IDs {
		ids[i] = citation.GroupID(id)
	}
	removeErr := w.sess.RemoveGroups(ids)
	if err := w.save(); err != nil {
		return err
	}
	return removeErr
}

// GroupListCmd lists the groups of a snapshot with their current text.
type GroupListCmd struct {
	Snapshot string `arg:"" help:"Document snapshot" type:"existingfile"`
}

func (c *GroupListCmd) Run(g *Globals) error {
	ctx := context.Background()
	w, err := g.open(ctx, c.Snapshot)
	if err != nil {
		return err
	}
	defer w.close()

	model := w.sess.Options().DataModel
	tw := tabwriter.NewWriter(g.out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	g.printf("%d citation groups\n", w.sess.Registry().Len())
	tw.Write([]byte("ID\tKIND\tKEYS\tPAGE\tTEXT\n"))
	for _, grp := range w.sess.Registry().Groups() {
		text, err := w.sess.GroupText(grp.ID)
		if err != nil {
			text = "(" + errors.UserMessage(err) + ")"
		}
		tw.Write([]byte(strings.Join([]string{
			string(grp.ID), grp.Kind.String(), strings.Join(grp.Keys(), ","), pageOf(grp, model), text,
		}, "\t") + "\n"))
	}
	return nil
}

func pageOf(g *citation.CitationGroup, model citation.DataModel) string {
	if model == citation.GroupPageInfo {
		return g.PageInfo.String()
	}
	pages := make([]string, len(g.Citations))
	empty := true
	for i, c := range g.Citations {
		pages[i] = c.PageInfo.String()
		empty = empty && c.PageInfo.IsEmpty()
	}
	if empty {
		return ""
	}
	return strings.Join(pages, "|")
}
