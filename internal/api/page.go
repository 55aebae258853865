package api

import (
	"fmt"

	"github.com/joeblew999/plat-polymer/internal/humastar"
)

// Page is one offset/limit window of a list. It links to its neighbours.
type Page[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Items skipped"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// paginate cuts the window [offset, offset+limit) out of all.
func paginate[T any](all []T, offset, limit int) Page[T] {
	p := Page[T]{Total: len(all), Offset: offset, Limit: limit, Data: []T{}}
	if offset < len(all) {
		p.Data = all[offset:min(offset+limit, len(all))]
	}
	return p
}

// Links implements humastar.Linker.
func (p Page[T]) Links(self string) []humastar.Link {
	if p.Limit <= 0 {
		return nil
	}
	at := func(offset int, rel string) humastar.Link {
		return humastar.Link{Href: fmt.Sprintf("%s?offset=%d&limit=%d", self, offset, p.Limit), Rel: rel}
	}

	links := []humastar.Link{at(0, "first")}
	if p.Offset > 0 {
		links = append(links, at(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, at(p.Offset+p.Limit, "next"))
	}
	last := 0
	if p.Total > 0 {
		last = (p.Total - 1) / p.Limit * p.Limit
	}
	return append(links, at(last, "last"))
}
