// pagedata.go: Reverse mapping: OpenAPI spec → page template data.
//
// BuildPageData extracts everything a page template needs from the spec:
//   - Signals JSON (data-signals init from the page's initial state)
//   - Routes (action paths discovered under a base path)
//   - Events (the SSE stream the page subscribes to on load)
//
// The page template never hardcodes URLs: {{.Route "mark" "good"}} resolves
// /api/v1/review/mark/{type} to /api/v1/review/mark/good.
package humastar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// PageData holds everything a page template needs from the OpenAPI spec.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// Routes maps action names to their path templates. The name is the
	// path below the base path with parameter segments removed, e.g.
	// "mark" for /api/v1/review/mark/{type} and "keys/down".
	Routes map[string]string

	// Events is the GET SSE stream under the base path, if any.
	Events string

	// Data carries page-specific values for the template.
	Data any
}

// Route returns the path of a named action with its {param} segments filled
// in order. Unknown names return "#".
func (pd PageData) Route(name string, params ...string) string {
	p, ok := pd.Routes[name]
	if !ok {
		return "#"
	}
	for _, v := range params {
		start := strings.IndexByte(p, '{')
		end := strings.IndexByte(p, '}')
		if start < 0 || end < start {
			break
		}
		p = p[:start] + v + p[end+1:]
	}
	return p
}

// DataInit returns a Datastar data-init attribute value opening the events
// stream, e.g. "@get('/api/v1/review/events')".
func (pd PageData) DataInit() string {
	if pd.Events == "" {
		return ""
	}
	return fmt.Sprintf("@get('%s')", pd.Events)
}

// RouteNames lists the discovered action names, sorted.
func (pd PageData) RouteNames() []string {
	names := make([]string, 0, len(pd.Routes))
	for n := range pd.Routes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuildPageData builds template data for the operations under basePath.
func BuildPageData(api huma.API, basePath string, signals map[string]any, data any) PageData {
	pd := PageData{Data: data}

	if signals == nil {
		signals = map[string]any{}
	}
	signalsJSON, _ := json.Marshal(signals)
	pd.Signals = string(signalsJSON)

	pd.Routes, pd.Events = discoverRoutes(api, basePath)
	return pd
}

// discoverRoutes finds action routes by walking OpenAPI paths below
// basePath. The events endpoint is the GET-only path named "events".
func discoverRoutes(api huma.API, basePath string) (map[string]string, string) {
	routes := map[string]string{}
	var events string

	paths := api.OpenAPI().Paths
	if paths == nil || basePath == "" {
		return routes, ""
	}
	prefix := strings.TrimRight(basePath, "/") + "/"

	for path, item := range paths {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		name := routeName(path[len(prefix):])
		if name == "" {
			continue
		}
		if name == "events" && item.Get != nil {
			events = path
			continue
		}
		if item.Post != nil || item.Get != nil {
			routes[name] = path
		}
	}
	return routes, events
}

func routeName(suffix string) string {
	var parts []string
	for _, seg := range strings.Split(suffix, "/") {
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "/")
}
