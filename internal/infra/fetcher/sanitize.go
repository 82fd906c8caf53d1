package fetcher

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// contentSelector is the main article region on the content origin.
const contentSelector = ".rich_media_content"

// contentStyle is prepended to every sanitized body.
const contentStyle = `<style> .rich_media_content {overflow: hidden;color: #222;font-size: 17px;word-wrap: break-word;-webkit-hyphens: auto;-ms-hyphens: auto;hyphens: auto;text-align: justify;position: relative;z-index: 0;}.rich_media_content {font-size: 18px;}</style>`

// hiddenDeclaration matches inline declarations used to hide content until
// client-side scripts run.
var hiddenDeclaration = regexp.MustCompile(`(?i)(opacity\s*:\s*0|visibility\s*:\s*hidden)(\s*!important)?\s*(;|$)`)

// Sanitizer reduces an article page to its main content region.
// It is safe for concurrent use.
type Sanitizer struct {
	m *minify.M
}

// NewSanitizer returns a Sanitizer with HTML and CSS minification configured.
func NewSanitizer() *Sanitizer {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepEndTags:      true,
		KeepDocumentTags: true,
	})
	return &Sanitizer{m: m}
}

// Clean extracts the main content region of page, makes lazy-loaded images
// eager, drops inline hiding declarations, prepends the content style block
// and minifies the result. Pages without the region fall back to readability
// extraction; pageURL resolves relative links there and may be nil.
func (s *Sanitizer) Clean(page string, pageURL *url.URL) (string, error) {
	region, err := s.region(page, pageURL)
	if err != nil {
		return "", err
	}

	rewriteLazyImages(region)
	stripHiddenStyles(region)

	body, err := goquery.OuterHtml(region)
	if err != nil {
		return "", fmt.Errorf("Clean: render: %w", err)
	}

	out, err := s.m.String("text/html", contentStyle+body)
	if err != nil {
		return "", fmt.Errorf("Clean: minify: %w", err)
	}
	return out, nil
}

func (s *Sanitizer) region(page string, pageURL *url.URL) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("Clean: parse: %w", err)
	}
	if sel := doc.Find(contentSelector).First(); sel.Length() > 0 {
		return sel, nil
	}

	article, err := readability.FromReader(strings.NewReader(page), pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContent, err)
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil, ErrNoContent
	}

	wrapped, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="rich_media_content">` + article.Content + `</div>`))
	if err != nil {
		return nil, fmt.Errorf("Clean: parse extracted: %w", err)
	}
	return wrapped.Find(contentSelector).First(), nil
}

// rewriteLazyImages moves data-src onto src for sel and its descendants.
func rewriteLazyImages(sel *goquery.Selection) {
	sel.Find("[data-src]").AddBackFiltered("[data-src]").Each(func(_ int, el *goquery.Selection) {
		src, _ := el.Attr("data-src")
		el.SetAttr("src", src)
		el.RemoveAttr("data-src")
	})
}

// stripHiddenStyles removes opacity:0 and visibility:hidden declarations,
// dropping the style attribute when nothing else remains.
func stripHiddenStyles(sel *goquery.Selection) {
	sel.Find("[style]").AddBackFiltered("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		cleaned := strings.TrimSpace(hiddenDeclaration.ReplaceAllString(style, ""))
		if cleaned == "" {
			el.RemoveAttr("style")
			return
		}
		el.SetAttr("style", cleaned)
	})
}
