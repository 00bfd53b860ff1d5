// Package html extracts <table> elements from HTML documents into frames,
// the way data pipelines scrape reference tables from wiki pages.
//
// Cells are flattened to text: colspan repeats a value across columns,
// rowspan fills it down, <sup> footnotes and <style>/<script> content are
// dropped, and whitespace is collapsed. Leading rows made only of <th> cells
// (or rows inside <thead>) form the header.
package html

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"duckpond/internal/frame"
	"duckpond/internal/parser"
)

// Table is one parsed <table>.
type Table struct {
	Caption string
	Header  []string
	Rows    [][]string
}

// Options controls extraction.
type Options struct {
	// Match keeps only tables whose text contains this substring.
	Match string

	// Thousands strips thousands separators from numeric-looking cells.
	Thousands bool

	// NormalizeHeaders rewrites headers into lowercase ASCII identifiers.
	NormalizeHeaders bool
}

// ReadTables returns every table in the document, in document order.
func ReadTables(r io.Reader, opt Options) ([]Table, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}

	var tables []Table
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.DataAtom == atom.Table {
			t := parseTable(n, opt)
			if len(t.Header) > 0 || len(t.Rows) > 0 {
				if opt.Match == "" || t.contains(opt.Match) {
					tables = append(tables, t)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

// ReadFrame returns table index (0-based, after Match filtering) as a frame.
func ReadFrame(r io.Reader, index int, opt Options) (*frame.Frame, error) {
	tables, err := ReadTables(r, opt)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(tables) {
		return nil, fmt.Errorf("html: table %d not found (%d tables)", index, len(tables))
	}
	return tables[index].Frame(opt.NormalizeHeaders)
}

// Frame converts the table into a frame with inferred column types. Short
// rows are padded with NULL; extra cells get generated column names.
func (t Table) Frame(normalize bool) (*frame.Frame, error) {
	width := len(t.Header)
	for _, row := range t.Rows {
		width = max(width, len(row))
	}
	names := make([]string, width)
	for i := range names {
		if i < len(t.Header) {
			names[i] = t.Header[i]
			if normalize {
				names[i] = parser.NormalizeFieldName(names[i])
			}
		}
	}
	f, err := frame.FromStrings(parser.UniqueNames(names), t.Rows)
	if err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}
	return f, nil
}

func (t Table) contains(s string) bool {
	if strings.Contains(t.Caption, s) {
		return true
	}
	for _, h := range t.Header {
		if strings.Contains(h, s) {
			return true
		}
	}
	for _, row := range t.Rows {
		for _, c := range row {
			if strings.Contains(c, s) {
				return true
			}
		}
	}
	return false
}

type cell struct {
	text    string
	header  bool
	colspan int
	rowspan int
}

type span struct {
	text string
	left int
}

func parseTable(tbl *xhtml.Node, opt Options) Table {
	t := Table{Caption: captionOf(tbl)}
	var grid [][]string
	var headerRows int
	inHeader := true
	pending := map[int]*span{}

	for _, tr := range rowsOf(tbl) {
		cells, inThead := cellsOf(tr)

		var row []string
		col := 0
		fillSpans := func() {
			for {
				sp, ok := pending[col]
				if !ok {
					return
				}
				row = append(row, sp.text)
				if sp.left--; sp.left == 0 {
					delete(pending, col)
				}
				col++
			}
		}
		allHeader := len(cells) > 0
		for _, c := range cells {
			fillSpans()
			if !c.header {
				allHeader = false
			}
			text := c.text
			if opt.Thousands {
				text = StripThousands(text)
			}
			for k := 0; k < c.colspan; k++ {
				row = append(row, text)
				if c.rowspan > 1 {
					pending[col] = &span{text: text, left: c.rowspan - 1}
				}
				col++
			}
		}
		fillSpans()
		if len(row) == 0 {
			continue
		}

		if inHeader && (allHeader || inThead) {
			headerRows++
		} else {
			inHeader = false
		}
		grid = append(grid, row)
	}

	t.Header = mergeHeader(grid[:headerRows])
	t.Rows = grid[headerRows:]
	return t
}

// mergeHeader joins stacked header rows column-wise, skipping repeats that
// come from colspan/rowspan.
func mergeHeader(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	out := make([]string, width)
	for i := range out {
		var parts []string
		for _, r := range rows {
			if i >= len(r) || r[i] == "" {
				continue
			}
			if len(parts) > 0 && parts[len(parts)-1] == r[i] {
				continue
			}
			parts = append(parts, r[i])
		}
		out[i] = strings.Join(parts, " ")
	}
	return out
}

// rowsOf returns the <tr> elements that belong to tbl, not to nested tables.
func rowsOf(tbl *xhtml.Node) []*xhtml.Node {
	var out []*xhtml.Node
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xhtml.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				out = append(out, c)
			default:
				walk(c)
			}
		}
	}
	walk(tbl)
	return out
}

func cellsOf(tr *xhtml.Node) ([]cell, bool) {
	inThead := tr.Parent != nil && tr.Parent.DataAtom == atom.Thead
	var out []cell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xhtml.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		out = append(out, cell{
			text:    NormalizeCell(textOf(c)),
			header:  c.DataAtom == atom.Th,
			colspan: spanAttr(c, "colspan"),
			rowspan: spanAttr(c, "rowspan"),
		})
	}
	return out, inThead
}

func captionOf(tbl *xhtml.Node) string {
	for c := tbl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode && c.DataAtom == atom.Caption {
			return NormalizeCell(textOf(c))
		}
	}
	return ""
}

func textOf(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			b.WriteString(n.Data)
			return
		case xhtml.ElementNode:
			switch n.DataAtom {
			case atom.Sup, atom.Style, atom.Script, atom.Table:
				return
			case atom.Br:
				b.WriteByte(' ')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return b.String()
}

func spanAttr(n *xhtml.Node, key string) int {
	for _, a := range n.Attr {
		if a.Key != key {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(a.Val))
		if err != nil || v < 1 {
			return 1
		}
		return min(v, 1000)
	}
	return 1
}
