package index

import (
	"github.com/emicklei/dot"
)

// DOT renders the graph for visualization. Node shapes follow kind:
// identifiers are boxes, log events ellipses, credentials notes,
// schemas folders.
func (g *Graph) DOT() string {
	out := dot.NewGraph(dot.Directed)
	nodes := make(map[string]dot.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		dn := out.Node(n.Id).Attr("label", string(n.Kind)+"\n"+short(n.Label))
		switch n.Kind {
		case NodeAID:
			dn.Attr("shape", "box")
		case NodeAcdc:
			dn.Attr("shape", "note")
		case NodeSchema:
			dn.Attr("shape", "folder")
		case NodeTelRegistry:
			dn.Attr("shape", "house")
		}
		nodes[n.Id] = dn
	}
	for _, e := range g.Edges {
		from, ok := nodes[e.From]
		if !ok {
			from = out.Node(e.From)
			nodes[e.From] = from
		}
		to, ok := nodes[e.To]
		if !ok {
			to = out.Node(e.To)
			nodes[e.To] = to
		}
		out.Edge(from, to).Attr("label", string(e.Kind))
	}
	return out.String()
}

// short truncates identifier labels so rendered graphs stay legible.
func short(s string) string {
	if len(s) > 12 {
		return s[:12] + "…"
	}
	return s
}
