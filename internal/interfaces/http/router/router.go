package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// APIVersion is the path segment every domain group is mounted under
const APIVersion = "v1"

// DomainGroup collects the routes of one bounded context under a path
// prefix. Group middleware runs after the engine-wide chain.
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates an empty group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use appends group middleware
func (g *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, mw...)
	return g
}

// Handle adds a route with an arbitrary method
func (g *DomainGroup) Handle(method, p string, handlers ...gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: p, handlers: handlers})
	return g
}

func (g *DomainGroup) GET(p string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodGet, p, handlers...)
}

func (g *DomainGroup) POST(p string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPost, p, handlers...)
}

func (g *DomainGroup) PUT(p string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPut, p, handlers...)
}

func (g *DomainGroup) DELETE(p string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodDelete, p, handlers...)
}

// Mount registers every route of the group on rg
func (g *DomainGroup) Mount(rg gin.IRouter) {
	sub := rg.Group(g.prefix, g.middleware...)
	for _, r := range g.routes {
		sub.Handle(r.method, r.path, r.handlers...)
	}
}

// Name returns the group name
func (g *DomainGroup) Name() string { return g.name }

// Prefix returns the group path prefix
func (g *DomainGroup) Prefix() string { return g.prefix }

// Routes lists the group's routes as "METHOD /prefix/path"
func (g *DomainGroup) Routes() []string {
	out := make([]string, 0, len(g.routes))
	for _, r := range g.routes {
		out = append(out, r.method+" "+path.Join(g.prefix, r.path))
	}
	return out
}

// Mount registers the groups under /api/<version>
func Mount(engine *gin.Engine, version string, groups ...*DomainGroup) {
	api := engine.Group("/api/" + version)
	for _, g := range groups {
		g.Mount(api)
	}
}
