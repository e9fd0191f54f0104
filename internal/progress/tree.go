package progress

// Node is one entry in the progress tree.
type Node struct {
	ID       string
	Event    Event
	Children []*Node
}

// Tree indexes progress events by node id with parent linkage. Events
// without a node id, or naming an unknown parent, root at the top level.
type Tree struct {
	nodes map[string]*Node
	roots []*Node
}

// NewTree creates an empty progress tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[string]*Node)}
}

// Add places the event in the tree and returns its node with its depth.
// An event updating a known node id refreshes that node's event in place.
func (t *Tree) Add(ev Event) (*Node, int) {
	id := ev.NodeID()
	if id != "" {
		if existing, ok := t.nodes[id]; ok {
			existing.Event = ev
			return existing, t.depth(existing)
		}
	}

	node := &Node{ID: id, Event: ev}
	if id != "" {
		t.nodes[id] = node
	}

	if parent, ok := t.nodes[ev.ParentID]; ok && ev.ParentID != "" && ev.ParentID != id {
		parent.Children = append(parent.Children, node)
		return node, t.depth(node)
	}
	t.roots = append(t.roots, node)
	return node, 0
}

// depth walks up via parent ids with a visited set so a malformed cycle
// cannot spin the walk.
func (t *Tree) depth(n *Node) int {
	depth := 0
	visited := map[string]bool{n.ID: true}
	cur := n.Event.ParentID
	for cur != "" && !visited[cur] {
		parent, ok := t.nodes[cur]
		if !ok {
			break
		}
		visited[cur] = true
		depth++
		cur = parent.Event.ParentID
	}
	return depth
}

// Walk visits every reachable node depth-first with its depth. A visited
// set guards against cycles from malformed parent links.
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	visited := make(map[*Node]bool)
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if visited[n] {
			return
		}
		visited[n] = true
		fn(n, depth)
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	for _, root := range t.roots {
		walk(root, 0)
	}
}

// Len reports the number of indexed nodes (rooted anonymous nodes included).
func (t *Tree) Len() int {
	count := 0
	t.Walk(func(*Node, int) { count++ })
	return count
}
