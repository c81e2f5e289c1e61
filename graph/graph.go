package graph

import "fmt"

// Graph is the compiled, immutable form of a workflow: an entry node, a set
// of named nodes, static and conditional edges, and the state schema. Build
// one with a Builder; Compile validates the topology once, before any run
// starts, so unknown targets are rejected up front rather than discovered
// mid-run.
type Graph struct {
	schema      *Schema
	nodes       map[string]NodeFunc
	static      map[string]string
	conditional map[string]*ConditionalEdge
	entry       string
}

// Schema returns the graph's state schema.
func (g *Graph) Schema() *Schema { return g.schema }

// Entry returns the entry node name.
func (g *Graph) Entry() string { return g.entry }

// HasNode reports whether the graph contains a node with the given name.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Builder assembles a Graph. Methods are chainable and defer all validation
// to Compile, so construction order does not matter.
type Builder struct {
	schema      *Schema
	nodes       map[string]NodeFunc
	static      map[string]string
	conditional map[string]*ConditionalEdge
	entry       string
	errs        []error
}

// NewBuilder creates a graph builder over the given state schema.
func NewBuilder(schema *Schema) *Builder {
	if schema == nil {
		schema = NewSchema()
	}
	return &Builder{
		schema:      schema,
		nodes:       make(map[string]NodeFunc),
		static:      make(map[string]string),
		conditional: make(map[string]*ConditionalEdge),
	}
}

// AddNode registers a named node. Names must be unique and must not collide
// with the End sentinel.
func (b *Builder) AddNode(name string, fn NodeFunc) *Builder {
	switch {
	case name == "" || name == End:
		b.errs = append(b.errs, fmt.Errorf("invalid node name %q", name))
	case fn == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q: nil function", name))
	default:
		if _, exists := b.nodes[name]; exists {
			b.errs = append(b.errs, fmt.Errorf("duplicate node %q", name))
			return b
		}
		b.nodes[name] = fn
	}
	return b
}

// AddEdge adds an unconditional edge from one node to another (or to End).
func (b *Builder) AddEdge(from, to string) *Builder {
	if _, exists := b.static[from]; exists {
		b.errs = append(b.errs, fmt.Errorf("node %q already has a static edge", from))
		return b
	}
	b.static[from] = to
	return b
}

// AddConditionalEdges routes from a node through a decision function whose
// return values are translated by pathMap. Every reachable decision value
// must appear in pathMap; End is a legal target.
func (b *Builder) AddConditionalEdges(from string, decide Decision, pathMap map[string]string) *Builder {
	if decide == nil {
		b.errs = append(b.errs, fmt.Errorf("node %q: nil decision function", from))
		return b
	}
	if len(pathMap) == 0 {
		b.errs = append(b.errs, fmt.Errorf("node %q: empty path map", from))
		return b
	}
	if _, exists := b.conditional[from]; exists {
		b.errs = append(b.errs, fmt.Errorf("node %q already has a conditional edge", from))
		return b
	}
	b.conditional[from] = &ConditionalEdge{From: from, Decide: decide, PathMap: pathMap}
	return b
}

// SetEntryPoint names the node where execution starts.
func (b *Builder) SetEntryPoint(name string) *Builder {
	b.entry = name
	return b
}

// Compile validates the assembled topology and returns the immutable Graph.
//
// Validation rules:
//   - the entry point is set and names an existing node
//   - every edge source and target names an existing node (or End)
//   - no node carries both a static and a conditional edge
//   - End is reachable from the entry point (cycles are allowed as long as
//     at least one path terminates)
func (b *Builder) Compile() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.entry == "" {
		return nil, fmt.Errorf("compile: entry point not set")
	}
	if _, ok := b.nodes[b.entry]; !ok {
		return nil, fmt.Errorf("compile: entry point %q is not a node", b.entry)
	}
	for from, to := range b.static {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("compile: edge from unknown node %q", from)
		}
		if _, ok := b.conditional[from]; ok {
			return nil, fmt.Errorf("compile: node %q has both static and conditional edges", from)
		}
		if to != End {
			if _, ok := b.nodes[to]; !ok {
				return nil, fmt.Errorf("compile: edge %q -> unknown node %q", from, to)
			}
		}
	}
	for from, cond := range b.conditional {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("compile: conditional edge from unknown node %q", from)
		}
		for value, target := range cond.PathMap {
			if target == End {
				continue
			}
			if _, ok := b.nodes[target]; !ok {
				return nil, fmt.Errorf("compile: node %q maps %q -> unknown node %q", from, value, target)
			}
		}
	}
	if !b.endReachable() {
		return nil, fmt.Errorf("compile: terminal sentinel is unreachable from entry point %q", b.entry)
	}
	return &Graph{
		schema:      b.schema,
		nodes:       b.nodes,
		static:      b.static,
		conditional: b.conditional,
		entry:       b.entry,
	}, nil
}

// MustCompile is Compile that panics on error, for graphs wired at startup.
func (b *Builder) MustCompile() *Graph {
	g, err := b.Compile()
	if err != nil {
		panic(err)
	}
	return g
}

// endReachable walks the edge adjacency from the entry point and reports
// whether any path reaches End.
func (b *Builder) endReachable() bool {
	seen := make(map[string]bool)
	queue := []string{b.entry}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node == End {
			return true
		}
		if seen[node] {
			continue
		}
		seen[node] = true
		if to, ok := b.static[node]; ok {
			queue = append(queue, to)
		}
		if cond, ok := b.conditional[node]; ok {
			for _, target := range cond.PathMap {
				queue = append(queue, target)
			}
		}
	}
	return false
}
