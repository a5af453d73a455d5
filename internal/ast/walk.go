package ast

// Inspect traverses the tree rooted at n in depth-first order. If f returns
// false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, f)
	}
}

// PathAt returns the chain of nodes from root down to the innermost node
// whose range contains pos. Only subtrees whose range can contain pos are
// visited. The result is empty when root itself does not contain pos.
func PathAt(root Node, pos Pos) []Node {
	if root == nil || !root.Span().Contains(pos) {
		return nil
	}
	path := []Node{root}
	for n := root; ; {
		var next Node
		for _, c := range n.Children() {
			if c.Span().Contains(pos) {
				next = c
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		n = next
	}
}

// Idents returns every identifier in the tree rooted at n in source order.
func Idents(n Node) []*Ident {
	var out []*Ident
	Inspect(n, func(c Node) bool {
		if id, ok := c.(*Ident); ok {
			out = append(out, id)
		}
		return true
	})
	return out
}
