package index

import (
	"context"
	"errors"
	"sort"

	"github.com/aaronp/go-kerits/store"
)

// TraversalNode is one credential in an edge traversal tree. Imported
// graphs can contain cycles, so a revisited credential is marked Cycle
// and not expanded again.
type TraversalNode struct {
	CredentialId string
	SchemaSaid   string
	Cycle        bool
	// Children maps edge labels to the targets, in label order.
	Children []TraversalChild
}

type TraversalChild struct {
	Label string
	Node  *TraversalNode
}

// Traverse walks the edge graph from a credential. Targets missing from
// the store terminate their branch with a bare node rather than failing
// the whole walk.
func (x *Indexer) Traverse(ctx context.Context, credentialId string) (*TraversalNode, error) {
	return x.traverse(ctx, credentialId, map[string]bool{})
}

func (x *Indexer) traverse(ctx context.Context, credentialId string, visited map[string]bool) (*TraversalNode, error) {
	node := &TraversalNode{CredentialId: credentialId}
	if visited[credentialId] {
		node.Cycle = true
		return node, nil
	}
	visited[credentialId] = true

	acdc, err := x.store.GetAcdc(ctx, credentialId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// unknown target: terminate the branch with a bare node
			return node, nil
		}
		return nil, err
	}
	node.SchemaSaid = acdc.S
	edges, err := acdc.Edges()
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(edges))
	for l := range edges {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, label := range labels {
		child, err := x.traverse(ctx, edges[label].N, visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, TraversalChild{Label: label, Node: child})
	}
	return node, nil
}
