// Package extract converts source documents into plain text ready for
// chunking. Each supported format has one adapter; Extract dispatches
// on the file extension and callers treat the result as opaque text.
package extract

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var adapters = map[string]func([]byte) (string, error){
	".txt":      plainText,
	".log":      plainText,
	".md":       markdownText,
	".markdown": markdownText,
	".csv":      csvText,
	".html":     htmlText,
	".htm":      htmlText,
}

// Extract reads the document at path and returns its plain-text
// content. Unknown extensions yield an UnsupportedFormatError; read or
// parse failures yield an ExtractionError wrapping the cause.
func Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	adapter, ok := adapters[ext]
	if !ok {
		return "", &UnsupportedFormatError{Ext: ext}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	out, err := adapter(raw)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	return out, nil
}

// Supported returns the recognized extensions in sorted order.
func Supported() []string {
	exts := make([]string, 0, len(adapters))
	for ext := range adapters {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func plainText(raw []byte) (string, error) {
	return string(raw), nil
}

var markdown = goldmark.New()

// markdownText walks the goldmark AST collecting raw text segments and
// code block lines, dropping all markup. Block boundaries become
// newlines so the chunker still sees paragraph structure.
func markdownText(raw []byte) (string, error) {
	doc := markdown.Parser().Parse(gmtext.NewReader(raw))
	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(raw))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeBlockLines(&sb, node, raw)
		case *ast.CodeBlock:
			writeBlockLines(&sb, node, raw)
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

func writeBlockLines(sb *strings.Builder, n ast.Node, raw []byte) {
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(raw))
	}
}

// csvText flattens rows into comma-joined lines. Quoting and embedded
// newlines are handled by encoding/csv before the join.
func csvText(raw []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	var sb strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(strings.Join(record, ", "))
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}

var blockTags = map[string]bool{
	"article": true, "blockquote": true, "br": true, "div": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "li": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "td": true,
	"tr": true, "ul": true,
}

// htmlText keeps text nodes, drops script and style subtrees, and
// breaks lines at block elements.
func htmlText(raw []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if blockTags[n.Data] && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte('\n')
			}
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return strings.TrimSpace(sb.String()), nil
}
