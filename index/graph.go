package index

import (
	"context"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/event"
)

// Graph node and edge kinds.
type NodeKind string

const (
	NodeAID         NodeKind = "AID"
	NodeKelEvt      NodeKind = "KEL_EVT"
	NodeTelRegistry NodeKind = "TEL_REGISTRY"
	NodeTelEvt      NodeKind = "TEL_EVT"
	NodeAcdc        NodeKind = "ACDC"
	NodeSchema      NodeKind = "SCHEMA"
)

type EdgeKind string

const (
	EdgePrior      EdgeKind = "PRIOR"
	EdgeAnchor     EdgeKind = "ANCHOR"
	EdgeIssues     EdgeKind = "ISSUES"
	EdgeRevokes    EdgeKind = "REVOKES"
	EdgeUsesSchema EdgeKind = "USES_SCHEMA"
	EdgeEdge       EdgeKind = "EDGE"
)

type Node struct {
	Id    string
	Kind  NodeKind
	Label string
}

type GraphEdge struct {
	From string
	To   string
	Kind EdgeKind
}

// Graph is the combined derived view over every stored log. It is built
// in one pass per log and never persisted.
type Graph struct {
	Nodes []Node
	Edges []GraphEdge
}

func (g *Graph) addNode(id string, kind NodeKind, label string) {
	for _, n := range g.Nodes {
		if n.Id == id {
			return
		}
	}
	g.Nodes = append(g.Nodes, Node{Id: id, Kind: kind, Label: label})
}

func (g *Graph) addEdge(from, to string, kind EdgeKind) {
	g.Edges = append(g.Edges, GraphEdge{From: from, To: to, Kind: kind})
}

// BuildGraph derives the combined graph over every KEL, TEL, credential
// and schema in the store.
func (x *Indexer) BuildGraph(ctx context.Context) (*Graph, error) {
	g := &Graph{}

	aids, err := x.store.ListKelAids(ctx)
	if err != nil {
		return nil, err
	}
	for _, aid := range aids {
		g.addNode(aid, NodeAID, aid)
		kel, err := x.store.ListKel(ctx, aid)
		if err != nil {
			return nil, err
		}
		prior := ""
		for _, stored := range kel {
			g.addNode(stored.Said, NodeKelEvt, stored.Meta.Type)
			if prior != "" {
				g.addEdge(stored.Said, prior, EdgePrior)
			}
			prior = stored.Said
			if stored.Meta.Type != event.TypeIxn {
				continue
			}
			_, body, _, err := cesr.Decode(stored.Raw)
			if err != nil {
				return nil, err
			}
			ixn, err := event.ParseIxn(body)
			if err != nil {
				return nil, err
			}
			for _, seal := range ixn.A {
				g.addEdge(stored.Said, seal.I, EdgeAnchor)
			}
		}
	}

	registries, err := x.store.ListTelRegistries(ctx)
	if err != nil {
		return nil, err
	}
	for _, registryId := range registries {
		g.addNode(registryId, NodeTelRegistry, registryId)
		telEvents, err := x.store.ListTel(ctx, registryId)
		if err != nil {
			return nil, err
		}
		prior := ""
		for _, stored := range telEvents {
			if stored.Meta.Type != event.TypeVcp {
				g.addNode(stored.Said, NodeTelEvt, stored.Meta.Type)
				if prior != "" {
					g.addEdge(stored.Said, prior, EdgePrior)
				}
			}
			prior = stored.Said
			switch stored.Meta.Type {
			case event.TypeIss:
				g.addEdge(stored.Said, stored.Meta.Identifier, EdgeIssues)
			case event.TypeRev:
				g.addEdge(stored.Said, stored.Meta.Identifier, EdgeRevokes)
			}
		}
	}

	credentials, err := x.store.ListAcdcSaids(ctx)
	if err != nil {
		return nil, err
	}
	for _, said := range credentials {
		acdc, err := x.store.GetAcdc(ctx, said)
		if err != nil {
			return nil, err
		}
		g.addNode(said, NodeAcdc, said)
		if acdc.S != "" {
			g.addNode(acdc.S, NodeSchema, acdc.S)
			g.addEdge(said, acdc.S, EdgeUsesSchema)
		}
		edges, err := acdc.Edges()
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			g.addEdge(said, edge.N, EdgeEdge)
		}
	}

	x.log.Debugf("index.graph: nodes=%d edges=%d", len(g.Nodes), len(g.Edges))
	return g, nil
}
