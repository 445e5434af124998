package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday"
)

var (
	headingRe  = regexp.MustCompile(`(?s)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	listItemRe = regexp.MustCompile(`(?s)<li>(.*?)</li>`)
	imageRe    = regexp.MustCompile(`<img[^>]*alt="([^"]*)"[^>]*/?>`)
	anyTagRe   = regexp.MustCompile(`</?([a-zA-Z0-9]+)[^>]*>`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
)

// Telegram only understands a handful of inline tags.
var allowedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"a": true, "code": true, "pre": true, "blockquote": true,
}

var tagReplacer = strings.NewReplacer(
	"<strong>", "<b>", "</strong>", "</b>",
	"<em>", "<i>", "</em>", "</i>",
	"<del>", "<s>", "</del>", "</s>",
	"<p>", "", "</p>", "\n",
	"<br>", "\n", "<br />", "\n",
	"<hr>", "", "<hr />", "",
	"<ul>", "", "</ul>", "",
	"<ol>", "", "</ol>", "",
)

// TelegramHTML renders model output written in Markdown as the HTML subset
// accepted by Telegram's HTML parse mode.
func TelegramHTML(markdown string) string {
	out := string(blackfriday.MarkdownCommon([]byte(markdown)))

	out = headingRe.ReplaceAllString(out, "<b>$1</b>")
	out = listItemRe.ReplaceAllString(out, "• $1")
	out = imageRe.ReplaceAllString(out, "$1")
	out = tagReplacer.Replace(out)
	out = anyTagRe.ReplaceAllStringFunc(out, func(tag string) string {
		name := strings.ToLower(anyTagRe.FindStringSubmatch(tag)[1])
		if allowedTags[name] {
			return tag
		}
		return ""
	})
	out = blankRe.ReplaceAllString(out, "\n\n")

	return strings.TrimSpace(out)
}

// PlainText strips every tag and unescapes entities, for places where markup
// cannot be used at all, such as captions sent without a parse mode.
func PlainText(markdown string) string {
	return html.UnescapeString(anyTagRe.ReplaceAllString(TelegramHTML(markdown), ""))
}
