package directory

// Tree is an arena of department nodes keyed by id, built fresh for each
// resolution. Only parent links are stored; containment is answered by
// walking upward from the descendant.
type Tree struct {
	nodes map[int64]Department
}

func NewTree(departments []Department) *Tree {
	t := &Tree{nodes: make(map[int64]Department, len(departments))}
	for _, d := range departments {
		t.nodes[d.ID] = d
	}
	return t
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Contains(id int64) bool {
	_, ok := t.nodes[id]
	return ok
}

func (t *Tree) Get(id int64) (Department, bool) {
	d, ok := t.nodes[id]
	return d, ok
}

// IsAncestorOrSelf reports whether node sits in the subtree rooted at
// ancestor. Unknown nodes are never contained. The walk stops at a root, at a
// parent missing from the arena, or on a revisit.
func (t *Tree) IsAncestorOrSelf(ancestor, node int64) bool {
	if !t.Contains(ancestor) {
		return false
	}

	visited := make(map[int64]struct{})
	current, ok := t.nodes[node]
	for ok {
		if current.ID == ancestor {
			return true
		}
		if _, seen := visited[current.ID]; seen {
			return false
		}
		visited[current.ID] = struct{}{}
		if current.ParentID == nil {
			return false
		}
		current, ok = t.nodes[*current.ParentID]
	}
	return false
}

// Path returns department names from the root down to id, for display.
func (t *Tree) Path(id int64) []string {
	var names []string
	visited := make(map[int64]struct{})
	current, ok := t.nodes[id]
	for ok {
		if _, seen := visited[current.ID]; seen {
			break
		}
		visited[current.ID] = struct{}{}
		names = append([]string{current.Name}, names...)
		if current.ParentID == nil {
			break
		}
		current, ok = t.nodes[*current.ParentID]
	}
	return names
}
