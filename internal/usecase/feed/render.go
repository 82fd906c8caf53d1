package feed

import (
	"context"
	"encoding/json"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"golang.org/x/sync/errgroup"

	"feedrelay/internal/domain/entity"
)

// entry is one rendered item plus the image carried alongside it.
type entry struct {
	item  *feeds.Item
	image string
}

// entries builds items in article order. In full-text mode the bodies are
// fetched with at most FullTextConcurrency requests in flight; a failed
// body affects only its own item.
func (s *Service) entries(ctx context.Context, arts []*entity.Article, authors map[string]string, fullText bool) []entry {
	out := make([]entry, len(arts))
	for i, a := range arts {
		link := entity.ArticleURL(s.cfg.ArticleBaseURL, a.ID)
		published := a.Published()
		item := &feeds.Item{
			Id:      link,
			Title:   a.Title,
			Link:    &feeds.Link{Href: link},
			Created: published,
			Updated: published,
		}
		if authors != nil {
			name, ok := authors[a.SourceID]
			if !ok {
				name = "-"
			}
			item.Author = &feeds.Author{Name: name}
		}
		out[i] = entry{item: item, image: a.ImageURL}
	}

	if !fullText || s.fullText == nil {
		return out
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.FullTextConcurrency)
	for i, a := range arts {
		g.Go(func() error {
			out[i].item.Content = s.fullText.Content(ctx, a.ID)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// filterTitles keeps entries whose title contains any include keyword, then
// drops entries whose title contains any exclude keyword.
func filterTitles(in []entry, include, exclude string) []entry {
	if inc := keywords(include); len(inc) > 0 {
		in = keep(in, func(title string) bool { return containsAny(title, inc) })
	}
	if exc := keywords(exclude); len(exc) > 0 {
		in = keep(in, func(title string) bool { return !containsAny(title, exc) })
	}
	return in
}

func keywords(list string) []string {
	var out []string
	for _, k := range strings.Split(list, "|") {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func keep(in []entry, pred func(title string) bool) []entry {
	out := in[:0:0]
	for _, e := range in {
		if pred(e.item.Title) {
			out = append(out, e)
		}
	}
	return out
}

// render serializes src and entries as format.
func (s *Service) render(format Format, src *entity.Source, entries []entry) ([]byte, error) {
	link := s.feedLink(src.ID, format)
	f := &feeds.Feed{
		Id:          link,
		Title:       src.Name,
		Link:        &feeds.Link{Href: link},
		Description: src.Description,
		Author:      &feeds.Author{Name: src.Name},
		Updated:     time.Unix(src.UpdatedAt, 0),
	}
	if src.CoverImageURL != "" {
		f.Image = &feeds.Image{Url: src.CoverImageURL, Title: src.Name, Link: link}
	}
	f.Items = make([]*feeds.Item, len(entries))
	for i, e := range entries {
		f.Items[i] = e.item
	}

	switch format {
	case FormatRSS:
		return s.renderRSS(f, entries)
	case FormatJSON:
		return s.renderJSON(f, src, entries)
	default:
		return s.renderAtom(f, src, entries)
	}
}

func (s *Service) feedLink(id string, format Format) string {
	return strings.TrimRight(s.cfg.OriginURL, "/") + "/feeds/" + id + "." + string(format)
}

func (s *Service) renderRSS(f *feeds.Feed, entries []entry) ([]byte, error) {
	rss := (&feeds.Rss{Feed: f}).RssFeed()
	rss.Language = s.cfg.Language
	rss.Generator = s.cfg.Generator
	for i, item := range rss.Items {
		if img := entries[i].image; img != "" {
			item.Enclosure = &feeds.RssEnclosure{Url: img, Length: "0", Type: imageType(img)}
		}
	}
	out, err := feeds.ToXML(rss)
	return []byte(out), err
}

// atomDocument adds the generator element gorilla/feeds does not emit.
type atomDocument struct {
	*feeds.AtomFeed
	Generator string `xml:"generator,omitempty"`
}

func (d *atomDocument) FeedXml() interface{} { return d }

func (s *Service) renderAtom(f *feeds.Feed, src *entity.Source, entries []entry) ([]byte, error) {
	atom := (&feeds.Atom{Feed: f}).AtomFeed()
	atom.Icon = src.CoverImageURL
	atom.Logo = src.CoverImageURL
	for i, e := range atom.Entries {
		if img := entries[i].image; img != "" {
			e.Links = append(e.Links, feeds.AtomLink{Href: img, Rel: "enclosure", Type: imageType(img)})
		}
	}
	out, err := feeds.ToXML(&atomDocument{AtomFeed: atom, Generator: s.cfg.Generator})
	return []byte(out), err
}

func (s *Service) renderJSON(f *feeds.Feed, src *entity.Source, entries []entry) ([]byte, error) {
	jf := (&feeds.JSON{Feed: f}).JSONFeed()
	jf.Icon = src.CoverImageURL
	jf.Favicon = src.CoverImageURL
	for i, item := range jf.Items {
		item.Image = entries[i].image
	}
	return json.MarshalIndent(jf, "", "  ")
}

// imageType guesses an enclosure MIME type from the URL path.
func imageType(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if t := mime.TypeByExtension(path.Ext(u.Path)); strings.HasPrefix(t, "image/") {
			return t
		}
	}
	return "image/jpeg"
}
