package document

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const htmlBlocks = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, table, dt, dd"

var htmlHeading = map[string]string{
	"h1": "# ", "h2": "## ", "h3": "### ", "h4": "#### ", "h5": "##### ", "h6": "###### ",
	"li": "- ", "blockquote": "> ",
}

// htmlToMarkdown renders the readable blocks of an HTML document the way
// the scraper does, with tables kept as pipe rows.
func htmlToMarkdown(raw string) (md, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(doc.Find("head > title").First().Text())
	doc.Find("script, style, noscript, svg, iframe, template, nav, footer").Remove()

	var lines []string
	doc.Find(htmlBlocks).Each(func(_ int, el *goquery.Selection) {
		// nested blocks are emitted by their outermost ancestor
		if el.ParentsFiltered("p, li, blockquote, pre, table, dd").Length() > 0 {
			return
		}
		name := goquery.NodeName(el)
		switch name {
		case "table":
			if rows := tableRows(el); rows != "" {
				lines = append(lines, rows)
			}
			return
		case "pre":
			if text := strings.TrimSpace(el.Text()); text != "" {
				lines = append(lines, "```\n"+text+"\n```")
			}
			return
		}
		if text := strings.Join(strings.Fields(el.Text()), " "); text != "" {
			lines = append(lines, htmlHeading[name]+text)
		}
	})
	if len(lines) == 0 {
		if text := strings.Join(strings.Fields(doc.Find("body").Text()), " "); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n\n"), title, nil
}

func tableRows(table *goquery.Selection) string {
	var out []string
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			text := strings.Join(strings.Fields(cell.Text()), " ")
			cells = append(cells, strings.ReplaceAll(text, "|", "/"))
		})
		if len(cells) == 0 {
			return
		}
		out = append(out, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			out = append(out, "|"+strings.Repeat(" --- |", len(cells)))
		}
	})
	return strings.Join(out, "\n")
}
