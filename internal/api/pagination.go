package api

import (
	"fmt"
	"net/url"
	"strings"
)

// linkHeader builds the Link continuation header for a page. Every relation
// preserves the request's query parameters except page. A first relation is
// only emitted once prev no longer points at page 1.
func linkHeader(u *url.URL, page, pages int) string {
	base := baseWithoutPage(u)

	var rels []string
	if page > 1 {
		rels = append(rels, link(base, page-1, "prev"))
	}
	if page < pages {
		rels = append(rels, link(base, page+1, "next"))
		rels = append(rels, link(base, pages, "last"))
	}
	if page > 2 {
		rels = append(rels, link(base, 1, "first"))
	}
	return strings.Join(rels, ", ")
}

func link(base string, page int, rel string) string {
	return fmt.Sprintf("<%spage=%d>; rel=%q", base, page, rel)
}

// baseWithoutPage strips the page parameter and returns the URL with a
// trailing connector, ready for a page value to be appended.
func baseWithoutPage(u *url.URL) string {
	query := u.Query()
	query.Del("page")

	connector := "?"
	encoded := query.Encode()
	if encoded != "" {
		encoded += "&"
	}
	return u.Path + connector + encoded
}
