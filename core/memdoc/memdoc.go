// Package memdoc is an in-memory implementation of document.Document.
//
// A Document holds independent text streams (the body, one stream per
// footnote, free-standing frames), named marks that follow the text they
// cover, a property store, a view cursor and a nestable controller lock.
// It is what the command-line tool edits and what every higher-level test
// uses as the external document.
//
// Mark boundaries are exclusive for insertions: text inserted exactly at the
// start or end of a mark lands outside it, text inserted strictly inside a
// mark grows it, and a collapsed mark stays in front of text inserted at its
// position. Replacing text that spans a boundary moves the boundary to the
// edge of the replacement.
package memdoc

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/citesync/core/document"
	cerrors "github.com/FocuswithJustin/citesync/core/errors"
)

// Layout defaults used to turn text positions into screen coordinates.
const (
	DefaultLineHeight = 20
	DefaultCharWidth  = 8

	// BodyStreamID is the id of the main text stream.
	BodyStreamID = "body"

	// FootnoteMarkerText is inserted into the parent stream for each footnote.
	FootnoteMarkerText = "*"

	footnoteAreaY   = 1_000_000
	footnoteSpacing = 1_000
)

type stream struct {
	info   document.Stream
	text   []rune
	origin document.Point
}

type mark struct {
	Name     string `json:"name"`
	Stream   string `json:"stream"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Internal bool   `json:"internal,omitempty"`
}

type footnote struct {
	parent string
	marker string
}

// Document is an in-memory document. It is not safe for concurrent use.
type Document struct {
	streams     map[string]*stream
	streamOrder []string
	marks       map[string]*mark
	footnotes   map[string]*footnote
	props       map[string]string
	focusInText bool
	selection   rng
	locks       int
	cursorMoves int

	// LineHeight and CharWidth scale line/column positions to screen units.
	LineHeight int
	CharWidth  int
}

// New returns an empty document with a body stream and the focus in the text.
func New() *Document {
	d := &Document{
		streams:     make(map[string]*stream),
		marks:       make(map[string]*mark),
		footnotes:   make(map[string]*footnote),
		props:       make(map[string]string),
		focusInText: true,
		LineHeight:  DefaultLineHeight,
		CharWidth:   DefaultCharWidth,
	}
	body := d.addStream(BodyStreamID, document.StreamBody, document.Point{})
	d.selection = rng{s: body.info}
	return d
}

// NewWithText returns a document whose body holds text.
func NewWithText(text string) *Document {
	d := New()
	d.streams[BodyStreamID].text = []rune(text)
	return d
}

func (d *Document) addStream(id string, kind document.StreamKind, origin document.Point) *stream {
	st := &stream{info: document.Stream{ID: id, Kind: kind}, origin: origin}
	d.streams[id] = st
	d.streamOrder = append(d.streamOrder, id)
	return st
}

// Body returns the body stream.
func (d *Document) Body() document.Stream {
	return d.streams[BodyStreamID].info
}

// Streams returns all streams in creation order.
func (d *Document) Streams() []document.Stream {
	out := make([]document.Stream, 0, len(d.streamOrder))
	for _, id := range d.streamOrder {
		out = append(out, d.streams[id].info)
	}
	return out
}

// StreamText returns the whole text of a stream.
func (d *Document) StreamText(s document.Stream) (string, error) {
	st, ok := d.streams[s.ID]
	if !ok {
		return "", cerrors.NewNotFound("stream", s.ID)
	}
	return string(st.text), nil
}

// RangeAt returns the range [start, end) of stream s, counted in characters.
func (d *Document) RangeAt(s document.Stream, start, end int) (document.Range, error) {
	st, ok := d.streams[s.ID]
	if !ok {
		return nil, cerrors.NewNotFound("stream", s.ID)
	}
	r := rng{s: st.info, start: start, end: end}
	if err := checkBounds(st, r); err != nil {
		return nil, err
	}
	return r, nil
}

// PointAt returns the collapsed range at offset of stream s.
func (d *Document) PointAt(s document.Stream, offset int) (document.Range, error) {
	return d.RangeAt(s, offset, offset)
}

// EndOf returns the collapsed range at the end of stream s.
func (d *Document) EndOf(s document.Stream) (document.Range, error) {
	st, ok := d.streams[s.ID]
	if !ok {
		return nil, cerrors.NewNotFound("stream", s.ID)
	}
	return rng{s: st.info, start: len(st.text), end: len(st.text)}, nil
}

// InsertText inserts text at the start of at, outside any mark boundary there.
// It simulates an edit made by the user outside citesync's control.
func (d *Document) InsertText(at document.Range, text string) (document.Range, error) {
	r, st, err := d.resolve(at)
	if err != nil {
		return nil, err
	}
	return d.applyEdit(st, r.start, r.start, []rune(text)), nil
}

// DeleteText deletes the text covered by r.
func (d *Document) DeleteText(r document.Range) error {
	_, err := d.SetText(r, "")
	return err
}

// InsertFootnote inserts a footnote marker at the start of at and returns the
// new footnote's stream, initialised with text.
func (d *Document) InsertFootnote(at document.Range, text string) (document.Stream, error) {
	r, parent, err := d.resolve(at)
	if err != nil {
		return document.Stream{}, err
	}
	if parent.info.Kind == document.StreamFootnote {
		return document.Stream{}, cerrors.NewUnsupported("nested footnote", "footnotes cannot contain footnotes")
	}

	id := "fn-" + uuid.NewString()
	markerName := "\x00footnote:" + id
	markerRange := d.applyEdit(parent, r.start, r.start, []rune(FootnoteMarkerText))
	d.marks[markerName] = &mark{
		Name:     markerName,
		Stream:   parent.info.ID,
		Start:    markerRange.start,
		End:      markerRange.end,
		Internal: true,
	}

	index := len(d.footnotes)
	st := d.addStream(id, document.StreamFootnote, document.Point{Y: footnoteAreaY + index*footnoteSpacing})
	st.text = []rune(text)
	d.footnotes[id] = &footnote{parent: parent.info.ID, marker: markerName}
	return st.info, nil
}

// AddFrame adds a free-standing text frame whose first character is drawn at origin.
func (d *Document) AddFrame(text string, origin document.Point) document.Stream {
	st := d.addStream("frame-"+uuid.NewString(), document.StreamFrame, origin)
	st.text = []rune(text)
	return st.info
}

// SetFocusInText moves the focus into (true) or out of (false) the document
// text. With the focus outside, ViewCursor fails.
func (d *Document) SetFocusInText(in bool) {
	d.focusInText = in
}

// CurrentSelection returns the selection without going through the view cursor.
func (d *Document) CurrentSelection() document.Range {
	return d.selection
}

// CursorMoves counts GotoRange calls made through the view cursor.
func (d *Document) CursorMoves() int {
	return d.cursorMoves
}

// CompareStarts implements document.RangeComparer.
func (d *Document) CompareStarts(a, b document.Range) (int, error) {
	ra, rb, err := d.resolvePair(a, b)
	if err != nil {
		return 0, err
	}
	return cmpInt(ra.start, rb.start), nil
}

// CompareEnds implements document.RangeComparer.
func (d *Document) CompareEnds(a, b document.Range) (int, error) {
	ra, rb, err := d.resolvePair(a, b)
	if err != nil {
		return 0, err
	}
	return cmpInt(ra.end, rb.end), nil
}

// Text implements document.TextEditor.
func (d *Document) Text(r document.Range) (string, error) {
	rr, st, err := d.resolve(r)
	if err != nil {
		return "", err
	}
	return string(st.text[rr.start:rr.end]), nil
}

// SetText implements document.TextEditor.
func (d *Document) SetText(r document.Range, text string) (document.Range, error) {
	rr, st, err := d.resolve(r)
	if err != nil {
		return nil, err
	}
	return d.applyEdit(st, rr.start, rr.end, []rune(text)), nil
}

// Offset implements document.TextEditor.
func (d *Document) Offset(r document.Range, n int) (document.Range, error) {
	rr, st, err := d.resolve(r)
	if err != nil {
		return nil, err
	}
	p := rr.start + n
	out := rng{s: st.info, start: p, end: p}
	if err := checkBounds(st, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Span implements document.TextEditor.
func (d *Document) Span(from, to document.Range) (document.Range, error) {
	rf, rt, err := d.resolvePair(from, to)
	if err != nil {
		return nil, err
	}
	if rt.end < rf.start {
		return nil, cerrors.NewValidation("span", "end is before start")
	}
	return rng{s: rf.s, start: rf.start, end: rt.end}, nil
}

// CreateMark implements document.MarkStore.
func (d *Document) CreateMark(name string, at document.Range, content string) (document.Range, error) {
	if name == "" {
		return nil, cerrors.NewValidation("name", "mark name cannot be empty")
	}
	if _, exists := d.marks[name]; exists {
		return nil, fmt.Errorf("mark %q: %w", name, cerrors.ErrAlreadyExists)
	}
	rr, st, err := d.resolve(at)
	if err != nil {
		return nil, err
	}
	inserted := d.applyEdit(st, rr.start, rr.start, []rune(content))
	d.marks[name] = &mark{Name: name, Stream: st.info.ID, Start: inserted.start, End: inserted.end}
	return inserted, nil
}

// MarkRange implements document.MarkStore.
func (d *Document) MarkRange(name string) (document.Range, bool, error) {
	m, ok := d.marks[name]
	if !ok || m.Internal {
		return nil, false, nil
	}
	st, ok := d.streams[m.Stream]
	if !ok {
		return nil, false, nil
	}
	return rng{s: st.info, start: m.Start, end: m.End}, true, nil
}

// RemoveMark implements document.MarkStore.
func (d *Document) RemoveMark(name string) error {
	m, ok := d.marks[name]
	if !ok || m.Internal {
		return cerrors.NewNotFound("mark", name)
	}
	delete(d.marks, name)
	return nil
}

// MarkNames implements document.MarkStore. Names are returned sorted.
func (d *Document) MarkNames() ([]string, error) {
	names := make([]string, 0, len(d.marks))
	for name, m := range d.marks {
		if !m.Internal {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// FootnoteMarker implements document.FootnoteLocator.
func (d *Document) FootnoteMarker(r document.Range) (document.Range, bool, error) {
	rr, st, err := d.resolve(r)
	if err != nil {
		return nil, false, err
	}
	if st.info.Kind != document.StreamFootnote {
		return nil, false, nil
	}
	fn, ok := d.footnotes[rr.s.ID]
	if !ok {
		return nil, false, cerrors.NewNotFound("footnote", rr.s.ID)
	}
	m, ok := d.marks[fn.marker]
	if !ok {
		return nil, false, cerrors.NewNotFound("footnote marker", rr.s.ID)
	}
	parent := d.streams[fn.parent]
	return rng{s: parent.info, start: m.Start, end: m.End}, true, nil
}

// ViewCursor implements document.ViewCursorProvider.
func (d *Document) ViewCursor() (document.ViewCursor, error) {
	if !d.focusInText {
		return nil, cerrors.NewPrecondition("view cursor",
			"Please move the cursor into the document text and try again.")
	}
	return &viewCursor{doc: d}, nil
}

// Property implements document.PropertyStore.
func (d *Document) Property(name string) (string, bool, error) {
	v, ok := d.props[name]
	return v, ok, nil
}

// SetProperty implements document.PropertyStore.
func (d *Document) SetProperty(name, value string) error {
	if name == "" {
		return cerrors.NewValidation("name", "property name cannot be empty")
	}
	d.props[name] = value
	return nil
}

// RemoveProperty implements document.PropertyStore.
func (d *Document) RemoveProperty(name string) error {
	if _, ok := d.props[name]; !ok {
		return cerrors.NewNotFound("property", name)
	}
	delete(d.props, name)
	return nil
}

// PropertyNames implements document.PropertyStore. Names are returned sorted.
func (d *Document) PropertyNames() ([]string, error) {
	names := make([]string, 0, len(d.props))
	for name := range d.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LockControllers implements document.ControllerLocker.
func (d *Document) LockControllers() {
	d.locks++
}

// UnlockControllers implements document.ControllerLocker.
func (d *Document) UnlockControllers() error {
	if d.locks == 0 {
		return cerrors.NewInvariant("unlock controllers", "controllers are not locked")
	}
	d.locks--
	return nil
}

// ControllersLocked implements document.ControllerLocker.
func (d *Document) ControllersLocked() bool {
	return d.locks > 0
}

// applyEdit replaces [s, e) of st with repl and moves marks and the selection.
func (d *Document) applyEdit(st *stream, s, e int, repl []rune) rng {
	n := len(repl)
	delta := n - (e - s)

	text := make([]rune, 0, len(st.text)+delta)
	text = append(text, st.text[:s]...)
	text = append(text, repl...)
	text = append(text, st.text[e:]...)
	st.text = text

	for _, m := range d.marks {
		if m.Stream != st.info.ID {
			continue
		}
		if s == e && m.Start == m.End && m.Start == s {
			continue
		}
		m.Start = mapStart(m.Start, s, e, n, delta)
		m.End = mapEnd(m.End, s, e, n, delta)
		if m.End < m.Start {
			m.End = m.Start
		}
	}

	if d.selection.s.ID == st.info.ID {
		start := mapStart(d.selection.start, s, e, n, delta)
		end := mapEnd(d.selection.end, s, e, n, delta)
		if d.selection.start == d.selection.end {
			end = start
		}
		if end < start {
			end = start
		}
		d.selection = rng{s: st.info, start: start, end: end}
	}

	return rng{s: st.info, start: s, end: s + n}
}

func mapStart(p, s, e, n, delta int) int {
	switch {
	case p < s:
		return p
	case s == e:
		return p + n
	case p >= e:
		return p + delta
	default:
		return s
	}
}

func mapEnd(p, s, e, n, delta int) int {
	switch {
	case p <= s:
		return p
	case p > e:
		return p + delta
	default:
		return s + n
	}
}

func (d *Document) resolve(r document.Range) (rng, *stream, error) {
	rr, ok := r.(rng)
	if !ok {
		return rng{}, nil, cerrors.NewValidation("range", fmt.Sprintf("foreign range type %T", r))
	}
	st, ok := d.streams[rr.s.ID]
	if !ok {
		return rng{}, nil, cerrors.NewNotFound("stream", rr.s.ID)
	}
	if err := checkBounds(st, rr); err != nil {
		return rng{}, nil, err
	}
	return rr, st, nil
}

func (d *Document) resolvePair(a, b document.Range) (rng, rng, error) {
	ra, _, err := d.resolve(a)
	if err != nil {
		return rng{}, rng{}, err
	}
	rb, _, err := d.resolve(b)
	if err != nil {
		return rng{}, rng{}, err
	}
	if ra.s != rb.s {
		return rng{}, rng{}, cerrors.NewValidation("range",
			fmt.Sprintf("ranges belong to different streams (%s, %s)", ra.s, rb.s))
	}
	return ra, rb, nil
}

func checkBounds(st *stream, r rng) error {
	if r.start < 0 || r.end < r.start || r.end > len(st.text) {
		return cerrors.NewValidation("range",
			fmt.Sprintf("[%d,%d) outside %s of length %d", r.start, r.end, st.info, len(st.text)))
	}
	return nil
}

func (d *Document) position(r rng) document.Point {
	st := d.streams[r.s.ID]
	line, col := 0, 0
	for _, ch := range st.text[:r.start] {
		if ch == '\n' {
			line++
			col = 0
			continue
		}
		col++
	}
	return document.Point{
		Y: st.origin.Y + line*d.LineHeight,
		X: st.origin.X + col*d.CharWidth,
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// rng is the memdoc implementation of document.Range.
type rng struct {
	s          document.Stream
	start, end int
}

func (r rng) Stream() document.Stream { return r.s }
func (r rng) Start() document.Range   { return rng{s: r.s, start: r.start, end: r.start} }
func (r rng) End() document.Range     { return rng{s: r.s, start: r.end, end: r.end} }

func (r rng) String() string {
	return fmt.Sprintf("%s[%d,%d)", r.s, r.start, r.end)
}

type viewCursor struct {
	doc *Document
}

func (c *viewCursor) Selection() (document.Range, error) {
	return c.doc.selection, nil
}

func (c *viewCursor) Select(r document.Range) error {
	rr, _, err := c.doc.resolve(r)
	if err != nil {
		return err
	}
	c.doc.selection = rr
	return nil
}

func (c *viewCursor) GotoRange(r document.Range) error {
	rr, _, err := c.doc.resolve(r)
	if err != nil {
		return err
	}
	c.doc.cursorMoves++
	c.doc.selection = rng{s: rr.s, start: rr.start, end: rr.start}
	return nil
}

func (c *viewCursor) Position() (document.Point, error) {
	return c.doc.position(c.doc.selection), nil
}

var _ document.Document = (*Document)(nil)
