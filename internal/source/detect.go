package source

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/tally/internal/extract"
	"github.com/law-makers/tally/pkg/models"
)

var frameworkMarkers = map[string]string{
	"#__next":                "Next.js",
	"#__nuxt":                "Nuxt",
	"[data-reactroot]":       "React",
	"[ng-version]":           "Angular",
	"[data-v-app]":           "Vue",
	"[data-server-rendered]": "Vue",
	"[data-svelte-h]":        "Svelte",
}

// Framework names the client-side framework the page mounts, or "".
func Framework(doc *goquery.Document) string {
	for sel, name := range frameworkMarkers {
		if doc.Find(sel).Length() > 0 {
			return name
		}
	}
	return ""
}

// DefinesGlobal reports whether an inline script assigns name.
func DefinesGlobal(doc *goquery.Document, name string) bool {
	if name == "" {
		return false
	}
	re := regexp.MustCompile(`(?:window\.|var\s+|let\s+|const\s+|\bwindow\[["'])` + regexp.QuoteMeta(name) + `\b`)
	found := false
	doc.Find("script:not([src])").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = re.MatchString(s.Text())
		return !found
	})
	return found
}

// Detect chooses how to read a page from its static HTML. Pages whose items
// are already in the markup stay static; a script global that carries the
// listing needs script evaluation; an empty shell that mounts a framework
// needs a browser.
func Detect(doc *goquery.Document, p models.Profile) models.SourceMode {
	hasItems := extract.Chain(p.Containers).Find(doc.Selection).Length() > 0
	if DefinesGlobal(doc, p.ScriptGlobal) {
		return models.ModeHybrid
	}
	if hasItems {
		return models.ModeStatic
	}

	scripts := doc.Find("script").Length()
	if scripts == 0 {
		return models.ModeStatic
	}
	if Framework(doc) != "" || scripts > 5 {
		return models.ModeSPA
	}
	if body := strings.TrimSpace(doc.Find("body").Text()); len(body) < 200 {
		return models.ModeSPA
	}
	return models.ModeStatic
}
