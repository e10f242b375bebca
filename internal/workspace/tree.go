package workspace

import (
	"sort"
	"strings"
)

// Node types.
const (
	NodeFile      = "file"
	NodeDirectory = "directory"
)

// Node is one entry of the workspace tree.
type Node struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Children []Node `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n Node) IsDir() bool {
	return n.Type == NodeDirectory
}

type buildNode struct {
	name     string
	path     string
	dir      bool
	children map[string]*buildNode
}

// BuildTree turns a flat list of file paths into a nested tree. Directories
// sort before files, then by name.
func BuildTree(paths []string) []Node {
	root := map[string]*buildNode{}
	for _, p := range paths {
		parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
		current := root
		currentPath := ""
		for i, part := range parts {
			if currentPath == "" {
				currentPath = part
			} else {
				currentPath += "/" + part
			}
			last := i == len(parts)-1
			node, ok := current[part]
			if !ok {
				node = &buildNode{name: part, path: currentPath, dir: !last}
				if !last {
					node.children = map[string]*buildNode{}
				}
				current[part] = node
			}
			if node.children == nil {
				break
			}
			current = node.children
		}
	}
	return toNodes(root)
}

func toNodes(m map[string]*buildNode) []Node {
	out := make([]Node, 0, len(m))
	for _, n := range m {
		node := Node{Name: n.name, Path: n.path, Type: NodeFile}
		if n.dir {
			node.Type = NodeDirectory
			node.Children = toNodes(n.children)
		}
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir() != out[j].IsDir() {
			return out[i].IsDir()
		}
		return out[i].Name < out[j].Name
	})
	return out
}
