package memdoc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/citesync/core/document"
	cerrors "github.com/FocuswithJustin/citesync/core/errors"
	"github.com/FocuswithJustin/citesync/core/xml"
)

// CitePlaceholderPrefix prefixes the collapsed marks LoadXML leaves where
// <cite/> elements were.
const CitePlaceholderPrefix = "xml-cite-"

// Cite is a <cite/> element found by LoadXML. Mark names a collapsed mark at
// the element's position; callers turn it into a citation group and then
// remove the mark.
type Cite struct {
	Mark  string
	Attrs map[string]string
}

// LoadXML builds a document from XML of the form
//
//	<document>
//	  <body>
//	    <p>Text <cite keys="A,B"/> more.<footnote>Note <cite keys="C"/></footnote></p>
//	  </body>
//	  <frame x="400" y="80">Side text <cite keys="D"/></frame>
//	</document>
//
// Paragraphs are joined with newlines. Cites are returned in document order.
func LoadXML(data []byte) (*Document, []Cite, error) {
	parsed, err := xml.Parse(data)
	if err != nil {
		return nil, nil, &cerrors.ParseError{Format: "XML", Message: err.Error(), Err: err}
	}
	root := parsed.Root()
	if root == nil || root.Name() != "document" {
		return nil, nil, cerrors.NewParse("XML", "", "root element must be <document>")
	}
	if err := checkXML(parsed); err != nil {
		return nil, nil, err
	}

	imp := &importer{doc: New()}
	for _, child := range root.Children() {
		switch child.Name() {
		case "body":
			if err := imp.body(child); err != nil {
				return nil, nil, err
			}
		case "frame":
			origin, err := frameOrigin(child)
			if err != nil {
				return nil, nil, err
			}
			st := imp.doc.AddFrame("", origin)
			if err := imp.content(st, child.Content(), false); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, cerrors.NewParse("XML", child.Name(), "unexpected element")
		}
	}
	return imp.doc, imp.cites, nil
}

// checkXML rejects documents whose structure the importer cannot map.
func checkXML(parsed *xml.Document) error {
	bodies, err := parsed.XPath("/document/body")
	if err != nil {
		return err
	}
	if len(bodies) > 1 {
		return cerrors.NewParse("XML", "body", "a document has at most one <body>")
	}
	bad, err := parsed.XPathFirst("//cite[not(@keys) or normalize-space(@keys)='']")
	if err != nil {
		return err
	}
	if bad != nil {
		return cerrors.NewParse("XML", "cite", "<cite/> needs a keys attribute")
	}
	return nil
}

type importer struct {
	doc   *Document
	cites []Cite
}

func (imp *importer) body(body *xml.Node) error {
	first := true
	for _, p := range body.Children() {
		if p.Name() != "p" {
			return cerrors.NewParse("XML", p.Name(), "body may only contain <p>")
		}
		if !first {
			if err := imp.appendText(imp.doc.Body(), "\n"); err != nil {
				return err
			}
		}
		first = false
		if err := imp.content(imp.doc.Body(), p.Content(), true); err != nil {
			return err
		}
	}
	return nil
}

func (imp *importer) content(st document.Stream, nodes []*xml.Node, allowFootnotes bool) error {
	for _, n := range nodes {
		if n.IsText() {
			if err := imp.appendText(st, n.Data()); err != nil {
				return err
			}
			continue
		}
		switch n.Name() {
		case "cite":
			if strings.TrimSpace(n.InnerText()) != "" {
				return cerrors.NewParse("XML", "cite", "<cite/> must be empty")
			}
			end, err := imp.doc.EndOf(st)
			if err != nil {
				return err
			}
			name := CitePlaceholderPrefix + strconv.Itoa(len(imp.cites))
			if _, err := imp.doc.CreateMark(name, end, ""); err != nil {
				return err
			}
			imp.cites = append(imp.cites, Cite{Mark: name, Attrs: n.Attributes()})
		case "footnote":
			if !allowFootnotes {
				return cerrors.NewParse("XML", "footnote", "footnotes are only allowed in body paragraphs")
			}
			end, err := imp.doc.EndOf(st)
			if err != nil {
				return err
			}
			fn, err := imp.doc.InsertFootnote(end, "")
			if err != nil {
				return err
			}
			if err := imp.content(fn, n.Content(), false); err != nil {
				return err
			}
		default:
			return cerrors.NewParse("XML", n.Name(), "unexpected element")
		}
	}
	return nil
}

func (imp *importer) appendText(st document.Stream, text string) error {
	end, err := imp.doc.EndOf(st)
	if err != nil {
		return err
	}
	_, err = imp.doc.InsertText(end, text)
	return err
}

func frameOrigin(n *xml.Node) (document.Point, error) {
	var p document.Point
	for attr, dst := range map[string]*int{"x": &p.X, "y": &p.Y} {
		raw := n.Attr(attr)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, &cerrors.ParseError{Format: "XML", Path: "frame@" + attr, Message: fmt.Sprintf("not an integer: %q", raw), Err: err}
		}
		*dst = v
	}
	return p, nil
}
