package memdoc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/citesync/core/document"
	cerrors "github.com/FocuswithJustin/citesync/core/errors"
)

// SnapshotVersion is the current snapshot schema version.
const SnapshotVersion = 1

// Injectable for tests.
var (
	xzNewWriter = xz.NewWriter
	xzNewReader = xz.NewReader
)

type snapshot struct {
	Version     int                `json:"version"`
	Streams     []snapshotStream   `json:"streams"`
	Marks       []*mark            `json:"marks,omitempty"`
	Footnotes   []snapshotFootnote `json:"footnotes,omitempty"`
	Properties  map[string]string  `json:"properties,omitempty"`
	Selection   snapshotRange      `json:"selection"`
	FocusInText bool               `json:"focus_in_text"`
	Layout      map[string]int     `json:"layout,omitempty"`
}

type snapshotStream struct {
	ID      string              `json:"id"`
	Kind    document.StreamKind `json:"kind"`
	Text    string              `json:"text"`
	OriginY int                 `json:"origin_y,omitempty"`
	OriginX int                 `json:"origin_x,omitempty"`
}

type snapshotFootnote struct {
	Stream string `json:"stream"`
	Parent string `json:"parent"`
	Marker string `json:"marker"`
}

type snapshotRange struct {
	Stream string `json:"stream"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Save writes an xz-compressed JSON snapshot of d to w.
func (d *Document) Save(w io.Writer) error {
	snap := snapshot{
		Version:     SnapshotVersion,
		Properties:  d.props,
		FocusInText: d.focusInText,
		Selection:   snapshotRange{Stream: d.selection.s.ID, Start: d.selection.start, End: d.selection.end},
		Layout:      map[string]int{"line_height": d.LineHeight, "char_width": d.CharWidth},
	}
	for _, id := range d.streamOrder {
		st := d.streams[id]
		snap.Streams = append(snap.Streams, snapshotStream{
			ID:      st.info.ID,
			Kind:    st.info.Kind,
			Text:    string(st.text),
			OriginY: st.origin.Y,
			OriginX: st.origin.X,
		})
		if fn, ok := d.footnotes[id]; ok {
			snap.Footnotes = append(snap.Footnotes, snapshotFootnote{Stream: id, Parent: fn.parent, Marker: fn.marker})
		}
	}
	names := make([]string, 0, len(d.marks))
	for name := range d.marks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		snap.Marks = append(snap.Marks, d.marks[name])
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	xw, err := xzNewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := xw.Write(data); err != nil {
		xw.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("failed to finish snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(r io.Reader) (*Document, error) {
	xr, err := xzNewReader(bufio.NewReader(r))
	if err != nil {
		return nil, &cerrors.ParseError{Format: "snapshot", Message: "not an xz stream", Err: err}
	}
	data, err := io.ReadAll(xr)
	if err != nil {
		return nil, &cerrors.ParseError{Format: "snapshot", Message: "truncated xz stream", Err: err}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &cerrors.ParseError{Format: "snapshot", Message: err.Error(), Err: err}
	}
	if snap.Version != SnapshotVersion {
		return nil, cerrors.NewUnsupported("snapshot version", fmt.Sprintf("%d", snap.Version))
	}

	d := &Document{
		streams:     make(map[string]*stream),
		marks:       make(map[string]*mark),
		footnotes:   make(map[string]*footnote),
		props:       make(map[string]string),
		focusInText: snap.FocusInText,
		LineHeight:  DefaultLineHeight,
		CharWidth:   DefaultCharWidth,
	}
	if v, ok := snap.Layout["line_height"]; ok && v > 0 {
		d.LineHeight = v
	}
	if v, ok := snap.Layout["char_width"]; ok && v > 0 {
		d.CharWidth = v
	}
	for _, ss := range snap.Streams {
		st := d.addStream(ss.ID, ss.Kind, document.Point{Y: ss.OriginY, X: ss.OriginX})
		st.text = []rune(ss.Text)
	}
	if _, ok := d.streams[BodyStreamID]; !ok {
		return nil, cerrors.NewParse("snapshot", "", "missing body stream")
	}
	for _, m := range snap.Marks {
		st, ok := d.streams[m.Stream]
		if !ok {
			return nil, cerrors.NewParse("snapshot", m.Name, "mark refers to unknown stream")
		}
		if err := checkBounds(st, rng{s: st.info, start: m.Start, end: m.End}); err != nil {
			return nil, &cerrors.ParseError{Format: "snapshot", Path: m.Name, Message: "mark out of bounds", Err: err}
		}
		d.marks[m.Name] = m
	}
	for _, fn := range snap.Footnotes {
		d.footnotes[fn.Stream] = &footnote{parent: fn.Parent, marker: fn.Marker}
	}
	for k, v := range snap.Properties {
		d.props[k] = v
	}

	sel := rng{s: d.streams[BodyStreamID].info}
	if st, ok := d.streams[snap.Selection.Stream]; ok {
		candidate := rng{s: st.info, start: snap.Selection.Start, end: snap.Selection.End}
		if checkBounds(st, candidate) == nil {
			sel = candidate
		}
	}
	d.selection = sel
	return d, nil
}

// SaveFile writes a snapshot to path atomically.
func (d *Document) SaveFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".citesync-*")
	if err != nil {
		return cerrors.NewIO("create", dir, err)
	}
	tmpPath := tmp.Name()
	if err := d.Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cerrors.NewIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cerrors.NewIO("close", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cerrors.NewIO("rename", path, err)
	}
	return nil
}

// LoadFile reads a snapshot from path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cerrors.NewIO("open", path, err)
	}
	defer f.Close()
	d, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
