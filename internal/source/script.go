package source

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// ScriptTimeout bounds the inline script run for one snapshot.
const ScriptTimeout = 2 * time.Second

// EvalGlobal runs the page's inline scripts in a bare goja VM and returns the
// exported value of the named global. Scripts that touch the real DOM fail
// and are skipped; only plain data assignments survive.
func EvalGlobal(doc *goquery.Document, global, pageURL string) (interface{}, error) {
	if global == "" {
		return nil, nil
	}

	vm := goja.New()
	loc := map[string]interface{}{"href": pageURL}
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	null := func(goja.FunctionCall) goja.Value { return goja.Null() }

	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("location", loc)
	vm.Set("document", map[string]interface{}{
		"location":         loc,
		"addEventListener": noop,
		"querySelector":    null,
		"getElementById":   null,
	})
	vm.Set("console", map[string]interface{}{"log": noop, "warn": noop, "error": noop})

	timer := time.AfterFunc(ScriptTimeout, func() { vm.Interrupt("script timeout") })
	defer timer.Stop()

	ran, failed := 0, 0
	var interrupted error
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if _, external := sel.Attr("src"); external {
			return true
		}
		if t, ok := sel.Attr("type"); ok && !isJSType(t) {
			return true
		}
		code := sel.Text()
		if strings.TrimSpace(code) == "" {
			return true
		}
		ran++
		if _, err := vm.RunString(code); err != nil {
			if ie, ok := err.(*goja.InterruptedError); ok {
				interrupted = ie
				return false
			}
			failed++
		}
		return true
	})

	log.Debug().Int("scripts", ran).Int("failed", failed).Str("global", global).Msg("Evaluated inline scripts")
	if interrupted != nil {
		return nil, newError(ErrCodeScript, "hybrid", pageURL, interrupted)
	}

	v := vm.Get(global)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func isJSType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}
