package scraper

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// blockSelector lists the elements whose text becomes one line each.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th, dt, dd"

var headingPrefix = map[string]string{
	"h1": "# ", "h2": "## ", "h3": "### ", "h4": "#### ", "h5": "##### ", "h6": "###### ",
	"li": "- ", "blockquote": "> ",
}

// Collector is the static fallback: one HTTP GET through colly, HTML
// reduced to markdown-ish text.
type Collector struct {
	UserAgent string
	// Transport lets tests route requests to a local server.
	Transport http.RoundTripper
}

func NewCollector(userAgent string) *Collector {
	return &Collector{UserAgent: userAgent}
}

func (s *Collector) Fetch(ctx context.Context, opts Options) (Page, error) {
	if ctx.Err() != nil {
		return Page{}, ctx.Err()
	}
	var c *colly.Collector
	if allowed := hostFromURL(opts.URL); allowed != "" {
		c = colly.NewCollector(colly.AllowedDomains(allowed), colly.MaxDepth(1))
	} else {
		c = colly.NewCollector(colly.MaxDepth(1))
	}
	c.SetRequestTimeout(opts.Timeout)
	if s.Transport != nil {
		c.WithTransport(s.Transport)
	}
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, RandomDelay: 200 * time.Millisecond})

	page := Page{URL: opts.URL, Links: []string{}, Metadata: map[string]any{}, Source: SourceColly}
	var lines, links []string
	var reqErr error

	c.OnRequest(func(r *colly.Request) {
		for k, v := range httpHeaders(s.UserAgent) {
			r.Headers.Set(k, v)
		}
	})

	// links first: the page callback below strips navigation
	if opts.ExtractLinks {
		c.OnHTML("a[href]", func(e *colly.HTMLElement) {
			href := strings.TrimSpace(e.Attr("href"))
			if href == "" || strings.HasPrefix(href, "#") {
				return
			}
			links = append(links, e.Request.AbsoluteURL(href))
		})
	}

	c.OnHTML("html", func(e *colly.HTMLElement) {
		page.Title = strings.TrimSpace(e.ChildText("head > title"))
		page.Description = strings.TrimSpace(e.ChildAttr(`meta[name="description"]`, "content"))
		if lang := strings.TrimSpace(e.Attr("lang")); lang != "" {
			page.Metadata["language"] = lang
		}
		if og := strings.TrimSpace(e.ChildAttr(`meta[property="og:title"]`, "content")); og != "" {
			page.Metadata["ogTitle"] = og
		}

		root := "main, article, [role=main]"
		if opts.FullPage || e.DOM.Find(root).Length() == 0 {
			root = "body"
		}
		e.DOM.Find("script, style, noscript, svg, iframe, template").Remove()
		if !opts.FullPage {
			e.DOM.Find("nav, footer, header, aside").Remove()
		}

		e.ForEach(root, func(_ int, sec *colly.HTMLElement) {
			sec.ForEach(blockSelector, func(_ int, el *colly.HTMLElement) {
				// nested blocks are emitted by their outermost ancestor
				if el.DOM.ParentsFiltered("p, li, blockquote, pre, td, th, dd").Length() > 0 {
					return
				}
				text := strings.Join(strings.Fields(el.Text), " ")
				if el.Name == "pre" {
					text = strings.TrimSpace(el.Text)
				}
				if text == "" {
					return
				}
				lines = append(lines, headingPrefix[el.Name]+text)
			})
		})
		if len(lines) == 0 {
			if text := strings.Join(strings.Fields(e.DOM.Find("body").Text()), " "); text != "" {
				lines = append(lines, text)
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		page.Metadata["statusCode"] = r.StatusCode
		page.Metadata["contentType"] = r.Headers.Get("Content-Type")
	})
	c.OnError(func(_ *colly.Response, err error) {
		reqErr = err
	})

	if err := c.Visit(opts.URL); err != nil {
		return Page{}, err
	}
	c.Wait()
	if reqErr != nil {
		return Page{}, reqErr
	}

	page.Content = strings.Join(lines, "\n\n")
	page.Links = dedupeLinks(links)
	page.Metadata["sourceURL"] = opts.URL
	return page, nil
}
