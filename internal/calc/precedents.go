package calc

// This engine tracks precedent/dependent bookkeeping as a host-facing
// introspection index: "what does this formula read from" and "what would
// break if I changed this cell". Every Recalc still rebuilds a fresh state
// map and walks every formula cell, so this index drives no incremental
// recalculation of its own — dirty-flag propagation has no place here,
// since nothing would ever read it back. The one piece of domain logic
// that does consult this index is SUBTOTAL's "skip nested SUBTOTAL calls"
// rule.

// PrecedentNode tracks one cell's direct references, in both directions,
// plus the formula text last recorded for it (SUBTOTAL's self-exclusion
// check reads this instead of re-parsing the AST).
type PrecedentNode struct {
	CellPrecedents  map[CellAddress]*PrecedentNode // cells this cell's formula reads
	CellDependents  map[CellAddress]*PrecedentNode // cells whose formulas read this cell
	RangePrecedents map[RangeAddress]struct{}      // ranges this cell's formula reads
	Formula         string
}

// PrecedentIndex is a best-effort map of which formulas read which cells,
// rebuilt incrementally as Workbook.Set/Remove record and clear a cell's
// references. Recalc/EvaluateFormula never use it to order or skip
// evaluation — they always walk the full state map. The one read during
// evaluation is SUBTOTAL's subtotalExcludes, which looks up a cell's
// recorded formula text (GetFormula) to skip nested SUBTOTAL calls.
type PrecedentIndex struct {
	nodes          map[CellAddress]*PrecedentNode
	rangeObservers map[RangeAddress]map[CellAddress]struct{}
	volatileCells  map[CellAddress]struct{}
}

// NewPrecedentIndex creates an empty index.
func NewPrecedentIndex() *PrecedentIndex {
	return &PrecedentIndex{
		nodes:          make(map[CellAddress]*PrecedentNode),
		rangeObservers: make(map[RangeAddress]map[CellAddress]struct{}),
		volatileCells:  make(map[CellAddress]struct{}),
	}
}

func (pi *PrecedentIndex) getOrCreateNode(addr CellAddress) *PrecedentNode {
	if node, exists := pi.nodes[addr]; exists {
		return node
	}
	node := &PrecedentNode{
		CellPrecedents:  make(map[CellAddress]*PrecedentNode),
		CellDependents:  make(map[CellAddress]*PrecedentNode),
		RangePrecedents: make(map[RangeAddress]struct{}),
	}
	pi.nodes[addr] = node
	return node
}

// RemoveNode drops a cell from the index, unlinking it from every
// precedent and dependent that referenced it.
func (pi *PrecedentIndex) RemoveNode(addr CellAddress) {
	node, exists := pi.nodes[addr]
	if !exists {
		return
	}

	for precedentAddr, precedentNode := range node.CellPrecedents {
		delete(precedentNode.CellDependents, addr)
		pi.cleanupNodeIfEmpty(precedentAddr)
	}
	for _, dependentNode := range node.CellDependents {
		delete(dependentNode.CellPrecedents, addr)
	}
	for rangeAddr := range node.RangePrecedents {
		pi.unobserveRange(addr, rangeAddr)
	}
	delete(pi.volatileCells, addr)
	delete(pi.nodes, addr)
}

func (pi *PrecedentIndex) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := pi.nodes[addr]
	if !exists {
		return
	}
	if node.Formula != "" || len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 || len(node.RangePrecedents) > 0 {
		return
	}
	delete(pi.nodes, addr)
}

// AddCellDependency records that the formula at from reads the cell at to.
func (pi *PrecedentIndex) AddCellDependency(from, to CellAddress) {
	fromNode := pi.getOrCreateNode(from)
	toNode := pi.getOrCreateNode(to)
	fromNode.CellPrecedents[to] = toNode
	toNode.CellDependents[from] = fromNode
}

// AddRangeDependency records that the formula at from reads every cell of
// rangeAddr.
func (pi *PrecedentIndex) AddRangeDependency(from CellAddress, rangeAddr RangeAddress) {
	node := pi.getOrCreateNode(from)
	node.RangePrecedents[rangeAddr] = struct{}{}
	if pi.rangeObservers[rangeAddr] == nil {
		pi.rangeObservers[rangeAddr] = make(map[CellAddress]struct{})
	}
	pi.rangeObservers[rangeAddr][from] = struct{}{}
}

func (pi *PrecedentIndex) unobserveRange(from CellAddress, rangeAddr RangeAddress) {
	if observers, exists := pi.rangeObservers[rangeAddr]; exists {
		delete(observers, from)
		if len(observers) == 0 {
			delete(pi.rangeObservers, rangeAddr)
		}
	}
}

// ClearDependencies forgets every precedent this cell previously recorded,
// called before a cell's formula is replaced or removed so stale edges
// never linger.
func (pi *PrecedentIndex) ClearDependencies(addr CellAddress) {
	node, exists := pi.nodes[addr]
	if !exists {
		return
	}
	for precedentAddr, precedentNode := range node.CellPrecedents {
		delete(precedentNode.CellDependents, addr)
		delete(node.CellPrecedents, precedentAddr)
		pi.cleanupNodeIfEmpty(precedentAddr)
	}
	for rangeAddr := range node.RangePrecedents {
		pi.unobserveRange(addr, rangeAddr)
		delete(node.RangePrecedents, rangeAddr)
	}
}

// GetDirectDependents returns the cells whose formulas directly reference addr.
func (pi *PrecedentIndex) GetDirectDependents(addr CellAddress) []CellAddress {
	node, exists := pi.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellDependents))
	for dependentAddr := range node.CellDependents {
		result = append(result, dependentAddr)
	}
	return result
}

// GetAllDependents returns the transitive closure of cells that would be
// affected by a change to addr.
func (pi *PrecedentIndex) GetAllDependents(addr CellAddress) []CellAddress {
	visited := make(map[CellAddress]struct{})
	var result []CellAddress
	pi.collectDependents(addr, visited, &result)
	return result
}

func (pi *PrecedentIndex) collectDependents(addr CellAddress, visited map[CellAddress]struct{}, result *[]CellAddress) {
	if _, seen := visited[addr]; seen {
		return
	}
	visited[addr] = struct{}{}

	node, exists := pi.nodes[addr]
	if !exists {
		return
	}
	for dependentAddr := range node.CellDependents {
		if _, seen := visited[dependentAddr]; !seen {
			*result = append(*result, dependentAddr)
			pi.collectDependents(dependentAddr, visited, result)
		}
	}
}

// GetDirectPrecedents returns the cells addr's formula directly reads.
func (pi *PrecedentIndex) GetDirectPrecedents(addr CellAddress) []CellAddress {
	node, exists := pi.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellPrecedents))
	for precedentAddr := range node.CellPrecedents {
		result = append(result, precedentAddr)
	}
	return result
}

// GetRangePrecedents returns the ranges addr's formula directly reads.
func (pi *PrecedentIndex) GetRangePrecedents(addr CellAddress) []RangeAddress {
	node, exists := pi.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]RangeAddress, 0, len(node.RangePrecedents))
	for rangeAddr := range node.RangePrecedents {
		result = append(result, rangeAddr)
	}
	return result
}

// SetFormula records the formula text last set for addr; fnSubtotal reads
// this back to recognize and skip nested SUBTOTAL calls.
func (pi *PrecedentIndex) SetFormula(addr CellAddress, formula string) {
	node := pi.getOrCreateNode(addr)
	node.Formula = formula
}

// GetFormula returns the formula text recorded for addr, if any.
func (pi *PrecedentIndex) GetFormula(addr CellAddress) (string, bool) {
	node, exists := pi.nodes[addr]
	if !exists {
		return "", false
	}
	return node.Formula, true
}

// NodeCount reports how many cells currently carry precedent/dependent
// edges or a recorded formula; used by tests to check the index stays in
// sync with Set/Remove.
func (pi *PrecedentIndex) NodeCount() int {
	return len(pi.nodes)
}

// MarkVolatile records that addr's formula contains a volatile function
// (NOW, TODAY, RAND, RANDBETWEEN). Every Recalc re-evaluates every formula
// regardless, so this is read-only diagnostic information, surfaced via
// Workbook.ListVolatileCells for a host that wants to warn about formulas
// whose value can change on every recalculation.
func (pi *PrecedentIndex) MarkVolatile(addr CellAddress) {
	pi.volatileCells[addr] = struct{}{}
}

// UnmarkVolatile removes the volatile marking, called when a cell's
// formula is replaced with one that no longer contains a volatile call.
func (pi *PrecedentIndex) UnmarkVolatile(addr CellAddress) {
	delete(pi.volatileCells, addr)
}

// GetVolatileCells returns every cell currently marked volatile.
func (pi *PrecedentIndex) GetVolatileCells() []CellAddress {
	result := make([]CellAddress, 0, len(pi.volatileCells))
	for addr := range pi.volatileCells {
		result = append(result, addr)
	}
	return result
}
