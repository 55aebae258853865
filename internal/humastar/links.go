package humastar

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// PageTag marks the Datastar SSE operations behind the review page. They are
// left out of the link graph.
const PageTag = "review"

// Link is one RFC 8288 link. Method and Title are extension parameters
// telling a client how to follow it.
type Link struct {
	Href   string
	Rel    string
	Method string
	Title  string
}

// String formats the link as a Link header value.
func (l Link) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, l.Href, l.Rel)
	if l.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, l.Method)
	}
	if l.Title != "" {
		fmt.Fprintf(&b, `; title=%q`, l.Title)
	}
	return b.String()
}

// Linker is implemented by response bodies whose links depend on their
// content, such as a page of a list or a session's enabled decisions. self
// is the request path.
type Linker interface {
	Links(self string) []Link
}

// Graph holds the links between the REST operations, derived from the
// OpenAPI document once every route is registered.
type Graph struct {
	entry string

	mu     sync.RWMutex
	byPath map[string][]Link
}

// NewGraph creates an empty graph whose entry point is entry.
func NewGraph(entry string) *Graph {
	return &Graph{entry: entry, byPath: map[string][]Link{}}
}

// Build derives the links from the registered operations:
//
//   - an item path links to its collection with "up" and "collection"
//   - a collection links to its item template with "item"
//   - a sub-resource of an item is linked from it under its last segment
//   - the entry point links to every collection and to the API documents
//
// The links are also written into each operation's OpenAPI responses.
func (g *Graph) Build(api huma.API) {
	oapi := api.OpenAPI()
	links := map[string][]Link{}
	add := func(from, to, rel string) {
		for _, l := range links[from] {
			if l.Href == to && l.Rel == rel {
				return
			}
		}
		links[from] = append(links[from], Link{Href: to, Rel: rel})
	}

	var paths []string
	for p, pi := range oapi.Paths {
		if !reviewOnly(pi) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		parent := path.Dir(p)
		if _, ok := oapi.Paths[parent]; !ok || parent == p {
			continue
		}
		switch {
		case isTemplate(lastSegment(p)):
			add(p, parent, "up")
			add(p, parent, "collection")
			add(parent, p, "item")
		case isTemplate(lastSegment(parent)):
			add(p, parent, "up")
			add(parent, p, lastSegment(p))
		}
	}

	for _, p := range paths {
		if p == g.entry || strings.Contains(p, "{") {
			continue
		}
		add(g.entry, p, lastSegment(p))
		add(p, g.entry, "start")
	}
	add(g.entry, "/openapi.json", "service-desc")
	add(g.entry, "/docs", "service-doc")

	for p, ls := range links {
		if pi := oapi.Paths[p]; pi != nil {
			for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
				if op != nil {
					documentLinks(op, ls)
				}
			}
		}
	}

	g.mu.Lock()
	g.byPath = links
	g.mu.Unlock()
}

// For returns the static links of an operation path.
func (g *Graph) For(opPath string) []Link {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byPath[opPath]
}

// Entry returns the links of the entry point, for handlers outside huma.
func (g *Graph) Entry() []Link {
	return g.For(g.entry)
}

// Transformer adds Link headers to every REST response: the graph's links
// for the operation, a self link on templated paths, and whatever the body
// provides through Linker.
func (g *Graph) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, l := range g.For(op.Path) {
			ctx.AppendHeader("Link", l.String())
		}

		self := ctx.URL().Path
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", Link{Href: self, Rel: "self"}.String())
		}
		if lk, ok := v.(Linker); ok {
			for _, l := range lk.Links(self) {
				ctx.AppendHeader("Link", l.String())
			}
		}
		return v, nil
	}
}

func reviewOnly(pi *huma.PathItem) bool {
	for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
		if op == nil {
			continue
		}
		for _, t := range op.Tags {
			if t == PageTag {
				return true
			}
		}
	}
	return false
}

func isTemplate(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// documentLinks records links on the operation's success response.
func documentLinks(op *huma.Operation, links []Link) {
	for code, resp := range op.Responses {
		if !strings.HasPrefix(code, "2") || resp == nil {
			continue
		}
		if resp.Links == nil {
			resp.Links = map[string]*huma.Link{}
		}
		for _, l := range links {
			resp.Links[l.Rel] = &huma.Link{OperationRef: l.Href, Description: "Related: " + l.Rel}
		}
		return
	}
}
