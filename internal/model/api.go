package model

import (
	"strings"

	"github.com/mark3labs/swagger2client/internal/spec"
)

// DefaultGroup names the group of operations that have neither tags nor a grouped operationId.
const DefaultGroup = "Default"

// Group is the set of operations emitted together, in declaration order.
type Group struct {
	Name       string
	Operations []*Operation
}

// API is everything an emitter needs for one run.
type API struct {
	Title       string
	Version     string
	Description string
	BaseURL     string
	Types       *Graph
	Operations  []*Operation
	Groups      []Group
}

// NewAPI assembles the emitter input. Document metadata comes from the first input
// document that declares an info section.
func NewAPI(docs *spec.DocumentSet, g *Graph, ops []*Operation) *API {
	api := &API{Types: g, Operations: ops}
	for _, doc := range docs.Inputs() {
		info := doc.Root.Get("info")
		if info == nil {
			continue
		}
		api.Title = strings.TrimSpace(info.Str("title"))
		api.Version = strings.TrimSpace(info.Get("version").Scalar())
		api.Description = strings.TrimSpace(info.Str("description"))
		api.BaseURL = baseURL(doc)
		break
	}
	index := make(map[string]int)
	for _, op := range ops {
		name := op.Group
		if name == "" {
			name = DefaultGroup
		}
		i, ok := index[name]
		if !ok {
			i = len(api.Groups)
			index[name] = i
			api.Groups = append(api.Groups, Group{Name: name})
		}
		api.Groups[i].Operations = append(api.Groups[i].Operations, op)
	}
	return api
}

func baseURL(doc *spec.Document) string {
	if servers := doc.Root.Get("servers").Items(); len(servers) > 0 {
		return strings.TrimRight(servers[0].Str("url"), "/")
	}
	host := doc.Root.Str("host")
	if host == "" {
		return strings.TrimRight(doc.Root.Str("basePath"), "/")
	}
	scheme := "https"
	if schemes := doc.Root.Strings("schemes"); len(schemes) > 0 {
		scheme = schemes[0]
		for _, s := range schemes {
			if s == "https" {
				scheme = s
			}
		}
	}
	return scheme + "://" + host + strings.TrimRight(doc.Root.Str("basePath"), "/")
}
