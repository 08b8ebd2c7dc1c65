package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rules are the page clean-up transforms applied before printing.
type Rules struct {
	// Expand selects collapsible elements to force open.
	Expand []string `yaml:"expand"`
	// Remove selects boilerplate elements to drop.
	Remove []string `yaml:"remove"`
}

// DefaultRules match the stock knowledge portal markup.
var DefaultRules = Rules{
	Expand: []string{
		".collapse",
		".collapsed",
		"[aria-expanded=false]",
		".kb-collapsible",
	},
	Remove: []string{
		"script",
		"noscript",
		"iframe",
		"form",
		".kb-article-rating",
		".kb-feedback",
		".kb-attachments-header",
		".sn-widget-actions",
	},
}

// Merge returns r with the selectors of o appended.
func (r Rules) Merge(o Rules) Rules {
	return Rules{
		Expand: append(append([]string{}, r.Expand...), o.Expand...),
		Remove: append(append([]string{}, r.Remove...), o.Remove...),
	}
}

// Clean applies rules to an HTML fragment and returns the body's inner HTML.
// Every <details> element is opened regardless of rules.
func Clean(fragment string, rules Rules) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	for _, sel := range rules.Remove {
		doc.Find(sel).Remove()
	}

	doc.Find("details").SetAttr("open", "")
	for _, sel := range rules.Expand {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			s.RemoveClass("collapse", "collapsed", "hidden")
			s.RemoveAttr("hidden")
			if s.AttrOr("aria-expanded", "") == "false" {
				s.SetAttr("aria-expanded", "true")
			}
			if style, ok := s.Attr("style"); ok {
				if cleaned := stripDisplayNone(style); cleaned == "" {
					s.RemoveAttr("style")
				} else {
					s.SetAttr("style", cleaned)
				}
			}
		})
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("serialize article html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func stripDisplayNone(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		d := strings.TrimSpace(decl)
		if d == "" {
			continue
		}
		name, value, _ := strings.Cut(d, ":")
		if strings.EqualFold(strings.TrimSpace(name), "display") &&
			strings.EqualFold(strings.TrimSpace(value), "none") {
			continue
		}
		kept = append(kept, d)
	}
	return strings.Join(kept, "; ")
}
