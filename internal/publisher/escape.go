package publisher

import "strings"

// htmlEscaper covers only the entities the messaging API's HTML parse mode
// requires. Quotes are left alone so captions read naturally.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape replaces &, < and > with their HTML entities.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}
