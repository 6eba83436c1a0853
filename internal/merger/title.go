package merger

import (
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// entityReplacer decodes the small fixed set of HTML entities that document
// titles are allowed to carry.
var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
	"&amp;", "&",
)

// CleanTitle strips HTML tags from a raw document title and decodes the
// fixed entity table. &amp; is decoded last so it cannot manufacture new
// entities.
func CleanTitle(raw string) string {
	return strings.TrimSpace(entityReplacer.Replace(tagRe.ReplaceAllString(raw, "")))
}
