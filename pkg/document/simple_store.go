// ABOUTME: Document storage built on the typed keyspace layer
// ABOUTME: Nodes and the children index are two disjoint KeySpaces

package document

import (
	"fmt"
	"strings"

	"github.com/reconbug/treekv/pkg/keyspace"
	"github.com/reconbug/treekv/pkg/storage"
)

// Namespaces for the two KeySpaces this store keeps inside one shared
// Tree: a node's full record, and a children-by-parent secondary index.
const (
	nodesKeySpaceName    = "document_nodes"
	childrenKeySpaceName = "document_children"
)

// nodeKey composite-keys a node by (policyID, nodeID).
type nodeKey struct {
	PolicyID string
	NodeID   string
}

func nodeKeyCodec() keyspace.KeyCodec[nodeKey] {
	return keyspace.KeyCodec[nodeKey]{
		SerializeKey: func(k nodeKey) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(k.PolicyID)),
				storage.NewBytesValue([]byte(k.NodeID)),
			})
		},
		DeserializeKey: func(b []byte) (nodeKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 2 {
				return nodeKey{}, fmt.Errorf("document: bad node key: %w", err)
			}
			return nodeKey{PolicyID: string(vals[0].Str), NodeID: string(vals[1].Str)}, nil
		},
	}
}

func nodeValueCodec() keyspace.ValueCodec[*Node] {
	return keyspace.ValueCodec[*Node]{
		SerializeValue: func(n *Node) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(n.PolicyID)),
				storage.NewBytesValue([]byte(n.NodeID)),
				storage.NewBytesValue([]byte(parentIDOrEmpty(n))),
				storage.NewBytesValue([]byte(n.Title)),
				storage.NewInt64Value(int64(n.PageStart)),
				storage.NewInt64Value(int64(n.PageEnd)),
				storage.NewBytesValue([]byte(n.Summary)),
				storage.NewBytesValue([]byte(n.Text)),
				storage.NewBytesValue([]byte(n.SectionPath)),
				storage.NewInt64Value(int64(n.Depth)),
				storage.NewTimeValue(n.CreatedAt),
				storage.NewTimeValue(n.UpdatedAt),
			})
		},
		DeserializeValue: func(b []byte) (*Node, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil {
				return nil, err
			}
			return parseNodeVals(vals)
		},
	}
}

func parentIDOrEmpty(n *Node) string {
	if n.ParentID != nil {
		return *n.ParentID
	}
	return ""
}

// childKey composite-keys the children index by (policyID, parentID,
// nodeID), letting GetChildren scan by the (policyID, parentID) prefix.
type childKey struct {
	PolicyID string
	ParentID string
	NodeID   string
}

func childKeyCodec() keyspace.KeyCodec[childKey] {
	return keyspace.KeyCodec[childKey]{
		SerializeKey: func(k childKey) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(k.PolicyID)),
				storage.NewBytesValue([]byte(k.ParentID)),
				storage.NewBytesValue([]byte(k.NodeID)),
			})
		},
		DeserializeKey: func(b []byte) (childKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return childKey{}, fmt.Errorf("document: bad child key: %w", err)
			}
			return childKey{
				PolicyID: string(vals[0].Str),
				ParentID: string(vals[1].Str),
				NodeID:   string(vals[2].Str),
			}, nil
		},
	}
}

func childPrefixBytes(policyID, parentID string) []byte {
	return storage.EncodeValues([]storage.Value{
		storage.NewBytesValue([]byte(policyID)),
		storage.NewBytesValue([]byte(parentID)),
	})
}

// SimpleStore manages documents atop two disjoint KeySpaces sharing one
// keyspace.Tree: the node records and a children-by-parent index. This is
// the concrete demonstration of namespace disjointness under one
// physical tree (spec §8) — the two schemas never see each other's bytes.
type SimpleStore struct {
	nodesKS    keyspace.KeySpace[nodeKey, *Node]
	childrenKS keyspace.KeySpace[childKey, []byte]

	nodes    keyspace.View[nodeKey, *Node]
	children keyspace.View[childKey, []byte]
}

// NewSimpleStore binds a SimpleStore to tree.
func NewSimpleStore(tree *keyspace.Tree) *SimpleStore {
	nodesKS := keyspace.NewKeySpace[nodeKey, *Node](nodesKeySpaceName, nodeKeyCodec(), nodeValueCodec())
	childrenKS := keyspace.NewKeySpace[childKey, []byte](childrenKeySpaceName, childKeyCodec(), keyspace.BytesValueCodec())

	return &SimpleStore{
		nodesKS:    nodesKS,
		childrenKS: childrenKS,
		nodes:      keyspace.KeySpaceOf(tree, nodesKS),
		children:   keyspace.KeySpaceOf(tree, childrenKS),
	}
}

// StoreDocument stores a document's nodes and maintains the children
// index atomically: either every node and index entry lands, or none do.
func (ss *SimpleStore) StoreDocument(doc *Document, nodes []*Node) error {
	tree := ss.nodes.Tree()

	_, err := keyspace.Txn(tree, true, func(txt *keyspace.TxTree) (struct{}, error) {
		nodesView := keyspace.TxKeySpaceOf(txt, ss.nodesKS)
		childrenView := keyspace.TxKeySpaceOf(txt, ss.childrenKS)

		for _, node := range nodes {
			nodesView.Insert(nodeKey{PolicyID: node.PolicyID, NodeID: node.NodeID}, node)

			childrenView.Insert(childKey{
				PolicyID: node.PolicyID,
				ParentID: parentIDOrEmpty(node),
				NodeID:   node.NodeID,
			}, []byte{})
		}
		return struct{}{}, nil
	})
	return err
}

// GetNode retrieves a node by ID.
func (ss *SimpleStore) GetNode(policyID, nodeID string) (*Node, error) {
	node, ok, err := ss.nodes.Get(nodeKey{PolicyID: policyID, NodeID: nodeID})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("node not found: %s/%s", policyID, nodeID)
	}
	return node, nil
}

// GetChildren returns children of a parent node.
func (ss *SimpleStore) GetChildren(policyID string, parentID *string) ([]*Node, error) {
	pid := ""
	if parentID != nil {
		pid = *parentID
	}

	var children []*Node
	err := ss.children.ScanRawPrefix(childPrefixBytes(policyID, pid), func(rawKeySuffix []byte, _ []byte) bool {
		key, derr := childKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}
		node, err := ss.GetNode(policyID, key.NodeID)
		if err == nil {
			children = append(children, node)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// GetSubtree retrieves a subtree.
func (ss *SimpleStore) GetSubtree(policyID, nodeID string, opts QueryOptions) ([]*Node, error) {
	root, err := ss.GetNode(policyID, nodeID)
	if err != nil {
		return nil, err
	}

	nodes := []*Node{root}
	currentDepth := 0
	toVisit := []*Node{root}

	for len(toVisit) > 0 && (opts.MaxDepth == 0 || currentDepth < opts.MaxDepth) {
		var nextLevel []*Node

		for _, parent := range toVisit {
			children, err := ss.GetChildren(policyID, &parent.NodeID)
			if err != nil {
				continue
			}
			nodes = append(nodes, children...)
			nextLevel = append(nextLevel, children...)
		}

		toVisit = nextLevel
		currentDepth++
	}

	return nodes, nil
}

// GetAncestorPath returns path from root to node.
func (ss *SimpleStore) GetAncestorPath(policyID, nodeID string) ([]*Node, error) {
	var path []*Node

	currentID := nodeID
	for currentID != "" {
		node, err := ss.GetNode(policyID, currentID)
		if err != nil {
			return nil, err
		}

		path = append([]*Node{node}, path...)

		if node.ParentID == nil {
			break
		}
		currentID = *node.ParentID
	}

	return path, nil
}

// Search performs simple text search over every node under a policy.
func (ss *SimpleStore) Search(policyID, query string, limit int) ([]*SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))

	prefix := storage.EncodeValues([]storage.Value{storage.NewBytesValue([]byte(policyID))})

	var results []*SearchResult
	err := ss.nodes.ScanRawPrefix(prefix, func(_ []byte, node *Node) bool {
		if len(results) >= limit {
			return false
		}

		score := scoreNode(node, terms)
		if score > 0 {
			results = append(results, &SearchResult{
				NodeID:   node.NodeID,
				PolicyID: node.PolicyID,
				Title:    node.Title,
				Summary:  node.Summary,
				Score:    score,
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func parseNodeVals(vals []storage.Value) (*Node, error) {
	if len(vals) < 12 {
		return nil, fmt.Errorf("incomplete node data")
	}

	node := &Node{
		PolicyID:    string(vals[0].Str),
		NodeID:      string(vals[1].Str),
		Title:       string(vals[3].Str),
		PageStart:   int(vals[4].I64),
		PageEnd:     int(vals[5].I64),
		Summary:     string(vals[6].Str),
		Text:        string(vals[7].Str),
		SectionPath: string(vals[8].Str),
		Depth:       int(vals[9].I64),
		CreatedAt:   vals[10].Time,
		UpdatedAt:   vals[11].Time,
	}

	if len(vals[2].Str) > 0 {
		pid := string(vals[2].Str)
		node.ParentID = &pid
	}

	return node, nil
}

func scoreNode(node *Node, terms []string) float64 {
	score := 0.0
	titleLower := strings.ToLower(node.Title)
	summaryLower := strings.ToLower(node.Summary)
	textLower := strings.ToLower(node.Text)

	for _, term := range terms {
		if strings.Contains(titleLower, term) {
			score += 3.0
		}
		if strings.Contains(summaryLower, term) {
			score += 2.0
		}
		if strings.Contains(textLower, term) {
			score += 1.0
		}
	}

	return score
}
