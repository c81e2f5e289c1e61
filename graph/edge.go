package graph

// End is the terminal routing sentinel. Routing to End finishes the run and
// returns the current state to the caller.
const End = "__end__"

// Edge is an unconditional transition: after from completes, to runs next.
type Edge struct {
	From string
	To   string
}

// Decision maps the current state to the name of the next node.
//
// Decisions must be pure functions of state (no wall-clock reads, no I/O)
// so that replaying a checkpointed state reproduces the same route. The
// returned value is looked up in the owning edge's PathMap; returning a
// value outside the map is a fatal routing error.
type Decision func(state State) string

// ConditionalEdge routes from a node through a decision function.
//
// PathMap translates decision values into target node names (or End). The
// indirection keeps decision functions independent of graph topology: a
// decision returns a label like "continue" or "end", and the graph decides
// what those mean.
type ConditionalEdge struct {
	From    string
	Decide  Decision
	PathMap map[string]string
}

// route resolves the next node after current, given the post-merge state.
// Conditional edges take precedence over static edges; a node has one or
// the other, validated at compile time.
func (g *Graph) route(current string, state State) (string, error) {
	if cond, ok := g.conditional[current]; ok {
		value := cond.Decide(state)
		target, ok := cond.PathMap[value]
		if !ok {
			return "", &RoutingError{Node: current, Value: value}
		}
		return target, nil
	}
	if target, ok := g.static[current]; ok {
		return target, nil
	}
	return "", &RoutingError{Node: current}
}
