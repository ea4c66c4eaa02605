// Package content classifies message bodies as HTML or plain text and
// neutralizes dangerous HTML before display.
package content

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlockPattern  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)

	// Event-handler attributes, quoted or bare.
	eventAttrPattern = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)

	scriptURLPattern = regexp.MustCompile(`(?i)javascript:`)
	vbscriptPattern  = regexp.MustCompile(`(?i)vbscript:`)
	dataURLPattern   = regexp.MustCompile(`(?i)data:[a-zA-Z0-9.+/-]*`)

	dangerousTagNames  = `object|embed|applet|iframe|frame|frameset|meta|link`
	dangerousTagBlock  = regexp.MustCompile(`(?is)<(` + dangerousTagNames + `)\b[^>]*>.*?</(` + dangerousTagNames + `)>`)
	dangerousTagOrphan = regexp.MustCompile(`(?i)</?(` + dangerousTagNames + `)\b[^>]*/?>`)

	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	entityPattern  = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)

	urlPattern    = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+[^\s<>"'()\[\].,;:!?]`)
	mailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	anchorPattern = regexp.MustCompile(`(?is)<a\b[^>]*>.*?</a>`)

	multiBreakPattern = regexp.MustCompile(`(<br>\s*){3,}`)
)

// htmlIndicators are structural tags whose presence classifies a body
// as HTML rather than plain text.
var htmlIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<html[^>]*>`),
	regexp.MustCompile(`(?i)<body[^>]*>`),
	regexp.MustCompile(`(?i)<head[^>]*>`),
	regexp.MustCompile(`(?i)<div[^>]*>`),
	regexp.MustCompile(`(?i)<p[^>]*>`),
	regexp.MustCompile(`(?i)<span[^>]*>`),
	regexp.MustCompile(`(?i)<table[^>]*>`),
	regexp.MustCompile(`(?i)<br\s*/?>`),
	regexp.MustCompile(`(?i)<img[^>]*>`),
	regexp.MustCompile(`(?i)<a[^>]*href`),
	regexp.MustCompile(`(?i)<strong[^>]*>`),
	regexp.MustCompile(`(?i)<em[^>]*>`),
	regexp.MustCompile(`(?i)<h[1-6][^>]*>`),
}

// IsHTML reports whether a message body should be treated as HTML.
func IsHTML(body string) bool {
	if body == "" {
		return false
	}

	for _, p := range htmlIndicators {
		if p.MatchString(body) {
			return true
		}
	}

	// A generic tag structure paired with HTML entities also counts.
	hasTagStructure := strings.Contains(body, "<") && strings.Contains(body, ">") &&
		regexp.MustCompile(`<[a-zA-Z!]+[^>]*>`).MatchString(body)
	return hasTagStructure && entityPattern.MatchString(body)
}

// Sanitize neutralizes dangerous constructs in an HTML body while
// preserving safe markup and text: script and style blocks, event
// handler attributes, script-scheme and non-image data URLs, and
// embedding tags are removed.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}

	out := scriptBlockPattern.ReplaceAllString(html, "")
	out = styleBlockPattern.ReplaceAllString(out, "")
	out = eventAttrPattern.ReplaceAllString(out, "")
	out = scriptURLPattern.ReplaceAllString(out, "about:blank")
	out = vbscriptPattern.ReplaceAllString(out, "about:blank")
	out = replaceNonImageDataURLs(out)
	out = dangerousTagBlock.ReplaceAllString(out, "")
	out = dangerousTagOrphan.ReplaceAllString(out, "")

	return out
}

// replaceNonImageDataURLs rewrites data: URLs to about:blank unless
// they carry an image media type. Go's regexp has no lookahead, so the
// media type is checked on each match instead.
func replaceNonImageDataURLs(s string) string {
	return dataURLPattern.ReplaceAllStringFunc(s, func(match string) string {
		mediaType := match[len("data:"):]
		if strings.HasPrefix(strings.ToLower(mediaType), "image/") {
			return match
		}
		return "about:blank"
	})
}

// FormatPlainText renders a plain text body as minimal HTML: URLs and
// mail addresses become links, newlines become <br>, and runs of three
// or more breaks collapse to two.
func FormatPlainText(text string) string {
	if text == "" {
		return ""
	}

	out := urlPattern.ReplaceAllStringFunc(text, func(url string) string {
		display := url
		if len(display) > 80 {
			display = display[:77] + "..."
		}
		return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, url, display)
	})

	out = linkifyAddresses(out)

	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\n", "<br>")
	out = multiBreakPattern.ReplaceAllString(out, "<br><br>")

	return out
}

// linkifyAddresses wraps mail addresses in mailto links, skipping
// anything already inside an anchor from the URL pass so an address
// embedded in a URL does not gain a nested link.
func linkifyAddresses(s string) string {
	var b strings.Builder
	last := 0
	for _, span := range anchorPattern.FindAllStringIndex(s, -1) {
		b.WriteString(linkifySegment(s[last:span[0]]))
		b.WriteString(s[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(linkifySegment(s[last:]))
	return b.String()
}

func linkifySegment(seg string) string {
	return mailPattern.ReplaceAllStringFunc(seg, func(addr string) string {
		return fmt.Sprintf(`<a href="mailto:%s">%s</a>`, addr, addr)
	})
}

// StripTags removes all HTML markup from a body and decodes common
// entities, producing a plain-text rendering for previews.
func StripTags(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
