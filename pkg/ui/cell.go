package ui

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node/fsnode"
	"github.com/vanderheijden86/nodeview/pkg/visualizer"
)

// CellKind tags what a table cell holds.
type CellKind int

const (
	// CellEmpty renders nothing.
	CellEmpty CellKind = iota
	// CellNode shows a row's proxy: expand glyph plus display name.
	CellNode
	// CellProperty shows a named property value read from a node.
	CellProperty
	// CellScalar shows a plain value.
	CellScalar
)

func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellNode:
		return "node"
	case CellProperty:
		return "property"
	case CellScalar:
		return "scalar"
	default:
		return fmt.Sprintf("cell(%d)", int(k))
	}
}

// Cell is one table cell. Which fields are meaningful depends on Kind.
type Cell struct {
	Kind     CellKind
	Proxy    *visualizer.Proxy // CellNode
	Property string            // CellProperty
	Value    any               // CellProperty, CellScalar
}

// NodeCell returns a cell showing p.
func NodeCell(p *visualizer.Proxy) Cell { return Cell{Kind: CellNode, Proxy: p} }

// PropertyCell returns a cell showing property name with value v.
func PropertyCell(name string, v any) Cell {
	return Cell{Kind: CellProperty, Property: name, Value: v}
}

// ScalarCell returns a cell showing v.
func ScalarCell(v any) Cell { return Cell{Kind: CellScalar, Value: v} }

// Text returns the cell's plain text.
func (c Cell) Text() string {
	switch c.Kind {
	case CellNode:
		if c.Proxy == nil {
			return ""
		}
		return c.Proxy.Name()
	case CellProperty, CellScalar:
		return formatValue(c.Value)
	default:
		return ""
	}
}

// Render renders the cell into exactly width cells, right-aligned when
// right is set.
func (c Cell) Render(theme Theme, width int, right bool) string {
	switch c.Kind {
	case CellNode:
		if c.Proxy == nil {
			return fit("", width)
		}
		icon := theme.ExpandIndicator(c.Proxy.IsLeaf(), false)
		name := fit(c.Proxy.Name(), width-2)
		return theme.SecondaryText.Render(icon) + " " + theme.NameStyle(c.Proxy.IsLeaf()).Render(name)
	case CellProperty:
		return theme.MutedText.Render(align(formatValue(c.Value), width, right))
	case CellScalar:
		return theme.Base.Render(align(formatValue(c.Value), width, right))
	default:
		return fit("", width)
	}
}

func align(text string, width int, right bool) string {
	text = truncateRunesHelper(text, width, "…")
	if right {
		if pad := width - runewidth.StringWidth(text); pad > 0 {
			return strings.Repeat(" ", pad) + text
		}
		return text
	}
	return padRight(text, width)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return FormatTimeRel(x)
	case time.Duration:
		return x.String()
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Column describes one table column.
type Column struct {
	Title string
	Width int // 0 takes the remaining width
	Right bool
	Cell  func(p *visualizer.Proxy) Cell
}

// DefaultColumns shows name, description, and for filesystem nodes size
// and modification time.
func DefaultColumns() []Column {
	return []Column{
		{Title: "NAME", Cell: NodeCell},
		{Title: "DESCRIPTION", Width: 14, Cell: func(p *visualizer.Proxy) Cell {
			return PropertyCell("description", p.Description())
		}},
		{Title: "SIZE", Width: 10, Right: true, Cell: func(p *visualizer.Proxy) Cell {
			e, ok := p.Node().(*fsnode.Entry)
			if !ok || !p.IsLeaf() {
				return Cell{}
			}
			return ScalarCell(safeValue("size", func() any { return fsnode.FormatSize(e.Size()) }))
		}},
		{Title: "MODIFIED", Width: 10, Cell: func(p *visualizer.Proxy) Cell {
			e, ok := p.Node().(*fsnode.Entry)
			if !ok {
				return Cell{}
			}
			return ScalarCell(safeValue("modtime", func() any { return e.ModTime() }))
		}},
	}
}

// safeValue reads a node value, substituting nil when the node panics.
func safeValue(what string, fn func() any) (v any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CollaboratorPanics.Inc()
			log.Printf("warning: reading %s panicked: %v", what, r)
			v = nil
		}
	}()
	return fn()
}
