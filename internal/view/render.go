// internal/view/render.go
package view

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var columns = []string{"Title", "Price", "Status", "Item", "First seen"}

// RenderHTML renders the view as an HTML fragment: a table, or the empty-state
// message when there is nothing to show.
func RenderHTML(v View) (string, error) {
	root := element(atom.Div, "tally-view")
	if v.Empty != "" {
		p := element(atom.P, "tally-empty")
		em := element(atom.Em, "")
		em.AppendChild(textNode(v.Empty))
		p.AppendChild(em)
		root.AppendChild(p)
		return renderNode(root)
	}

	table := element(atom.Table, "tally-table")
	thead := element(atom.Thead, "")
	head := element(atom.Tr, "")
	for _, c := range columns {
		th := element(atom.Th, "")
		th.AppendChild(textNode(c))
		head.AppendChild(th)
	}
	thead.AppendChild(head)
	table.AppendChild(thead)

	tbody := element(atom.Tbody, "")
	for _, r := range v.Rows {
		tr := element(atom.Tr, "")

		title := element(atom.Td, "")
		if r.URL != "" {
			a := element(atom.A, "")
			a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: r.URL})
			a.AppendChild(textNode(r.Title))
			title.AppendChild(a)
		} else {
			title.AppendChild(textNode(r.Title))
		}
		tr.AppendChild(title)

		cells := []string{deref(r.PriceText), r.Status, deref(r.ItemID), formatTime(r.FirstSeenAt)}
		for _, c := range cells {
			td := element(atom.Td, "")
			td.AppendChild(textNode(c))
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)
	root.AppendChild(table)

	return renderNode(root)
}

// RenderMarkdown renders the view as GitHub flavored markdown for terminals
func RenderMarkdown(v View) (string, error) {
	fragment, err := RenderHTML(v)
	if err != nil {
		return "", err
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	out, err := converter.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("failed to convert view to markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Summary returns a one-line count and totals description
func Summary(v View) string {
	parts := []string{fmt.Sprintf("%d of %d items", len(v.Rows), v.Total)}

	currencies := make([]string, 0, len(v.Totals))
	for c := range v.Totals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		amount := strconv.FormatFloat(v.Totals[c], 'f', 2, 64)
		if c == "" {
			parts = append(parts, amount)
		} else {
			parts = append(parts, c+" "+amount)
		}
	}
	if v.Unpriced > 0 {
		parts = append(parts, fmt.Sprintf("%d unpriced", v.Unpriced))
	}
	return strings.Join(parts, " · ")
}

func element(a atom.Atom, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = []html.Attribute{{Key: "class", Val: class}}
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func renderNode(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
