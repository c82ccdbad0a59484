// Package tree builds and renders directory trees over storage
// providers.
package tree

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/joe/filemon/pkg/storage"
)

// Node is one entry in a directory tree. Directory nodes aggregate the
// file count and byte total of everything beneath them.
type Node struct {
	// Name is the entry's base name. The root node's name is the root
	// path, or "." for the provider root.
	Name string
	// Path is the provider-relative path of the entry.
	Path string
	// IsDir reports whether the node is a directory.
	IsDir bool
	// Size is the file's own size in bytes. Zero for directories.
	Size int64
	// FileCount is the number of files under the node, descendants
	// included.
	FileCount int
	// TotalBytes is the byte total of every file under the node,
	// descendants included.
	TotalBytes int64
	// Children are the node's entries, directories first, each group
	// sorted by name.
	Children []*Node
}

// WalkOptions controls tree construction.
type WalkOptions struct {
	// Pattern filters which files appear. Empty matches everything.
	Pattern string
	// DirectoriesOnly omits file nodes. Directory counts and byte
	// totals still include the omitted files.
	DirectoriesOnly bool
}

// ProgressFunc receives running totals while the tree is built.
type ProgressFunc func(filesProcessed int, bytesProcessed int64)

// Walk builds the directory tree rooted at root.
func Walk(ctx context.Context, provider storage.Provider, root string, opts WalkOptions, progress ProgressFunc) (*Node, error) {
	rootName := root
	if rootName == "" {
		rootName = "."
	}

	rootNode := &Node{Name: rootName, Path: root, IsDir: true}
	nodes := map[string]*Node{"": rootNode}

	dirs, err := provider.ListDirectories(ctx, root, "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to list directories under %q: %w", root, err)
	}

	sort.Strings(dirs)

	for _, dir := range dirs {
		ensureDir(nodes, rootNode, relative(root, dir))
	}

	var (
		token      string
		filesSeen  int
		totalBytes int64
	)

	for {
		page, err := provider.List(ctx, root, opts.Pattern, true, token)
		if err != nil {
			return nil, fmt.Errorf("failed to list files under %q: %w", root, err)
		}

		for _, md := range page.Files {
			rel := relative(root, md.Path)
			parent := ensureDir(nodes, rootNode, parentOf(rel))

			if !opts.DirectoriesOnly {
				parent.Children = append(parent.Children, &Node{
					Name: baseOf(rel),
					Path: md.Path,
					Size: md.Size,
				})
			}

			aggregate(nodes, rel, md.Size)

			filesSeen++
			totalBytes += md.Size

			if progress != nil {
				progress(filesSeen, totalBytes)
			}
		}

		if page.NextToken == "" {
			break
		}

		token = page.NextToken
	}

	sortTree(rootNode)

	return rootNode, nil
}

// ensureDir returns the directory node at rel, creating it and its
// ancestors as needed. rel "" is the root node.
func ensureDir(nodes map[string]*Node, root *Node, rel string) *Node {
	if rel == "" {
		return root
	}

	if node, ok := nodes[rel]; ok {
		return node
	}

	parent := ensureDir(nodes, root, parentOf(rel))
	node := &Node{
		Name:  baseOf(rel),
		Path:  joinPath(root.Path, rel),
		IsDir: true,
	}

	parent.Children = append(parent.Children, node)
	nodes[rel] = node

	return node
}

// aggregate adds one file's size to every directory on its path.
func aggregate(nodes map[string]*Node, rel string, size int64) {
	for dir := parentOf(rel); ; dir = parentOf(dir) {
		node := nodes[dir]
		node.FileCount++
		node.TotalBytes += size

		if dir == "" {
			return
		}
	}
}

// sortTree orders children directories-first, each group by name.
func sortTree(node *Node) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		left, right := node.Children[i], node.Children[j]
		if left.IsDir != right.IsDir {
			return left.IsDir
		}

		return left.Name < right.Name
	})

	for _, child := range node.Children {
		if child.IsDir {
			sortTree(child)
		}
	}
}

// relative strips the walk root from a provider path.
func relative(root, path string) string {
	if root == "" {
		return path
	}

	return strings.TrimPrefix(strings.TrimPrefix(path, root), "/")
}

// parentOf returns the parent of a relative path, "" at the top.
func parentOf(rel string) string {
	idx := strings.LastIndex(rel, "/")
	if idx < 0 {
		return ""
	}

	return rel[:idx]
}

// baseOf returns the last element of a relative path.
func baseOf(rel string) string {
	idx := strings.LastIndex(rel, "/")
	if idx < 0 {
		return rel
	}

	return rel[idx+1:]
}

// joinPath joins the walk root with a relative path.
func joinPath(root, rel string) string {
	if root == "" {
		return rel
	}

	return root + "/" + rel
}
