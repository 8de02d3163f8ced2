package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser renders pages in headless Chrome for sites that build their
// content with JavaScript.
type Browser struct {
	UserAgent string
	Settle    time.Duration
}

func NewBrowser(userAgent string) *Browser {
	return &Browser{UserAgent: userAgent, Settle: 1500 * time.Millisecond}
}

const (
	readTextJS  = `(() => { const m = document.querySelector('main, article, [role=main]'); return ((m || document.body).innerText || '').trim(); })()`
	readBodyJS  = `(document.body.innerText || '').trim()`
	readLinksJS = `Array.from(document.querySelectorAll('a[href]')).map(a => a.href).filter(h => h && h.startsWith('http'))`
	readDescJS  = `(() => { const m = document.querySelector('meta[name="description"]'); return m ? m.content : ''; })()`
)

func (b *Browser) Fetch(ctx context.Context, opts Options) (Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(httpHeaders(b.UserAgent)["User-Agent"]),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	reqCtx, reqCancel := context.WithTimeout(browserCtx, opts.Timeout)
	defer reqCancel()

	readText := readTextJS
	if opts.FullPage {
		readText = readBodyJS
	}

	var title, desc, text string
	var links []string
	actions := []chromedp.Action{
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.Settle),
		chromedp.Title(&title),
		chromedp.Evaluate(readDescJS, &desc),
		chromedp.Evaluate(readText, &text),
	}
	if opts.ExtractLinks {
		actions = append(actions, chromedp.Evaluate(readLinksJS, &links))
	}
	if err := chromedp.Run(reqCtx, actions...); err != nil {
		return Page{}, err
	}

	if links == nil {
		links = []string{}
	}
	return Page{
		URL:         opts.URL,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(desc),
		Content:     collapseBlankLines(text),
		Links:       dedupeLinks(links),
		Metadata:    map[string]any{"sourceURL": opts.URL, "rendered": true},
		Source:      SourceChromedp,
	}, nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
