/*
catalog.go - The recognized material name list

PURPOSE:
  The catalog is the fixed, ordered list of material names the primary entry
  points (opening-balance assignment, usage logging) offer for selection.
  It is advisory, not enforced by the ledger itself: a site-detail edit may
  introduce an off-catalog name and the ledger will still carry it.

SEE ALSO:
  - factory/config.go: Catalog override from portal config
*/
package ledger

// Catalog is a static, ordered list of recognized material names.
// It has no mutation operations.
type Catalog struct {
	names []string
	index map[string]struct{}
}

// NewCatalog builds a catalog from the given names in order. Duplicates are
// dropped, keeping the first occurrence.
func NewCatalog(names ...string) *Catalog {
	c := &Catalog{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, seen := c.index[n]; seen {
			continue
		}
		c.index[n] = struct{}{}
		c.names = append(c.names, n)
	}
	return c
}

// DefaultCatalog lists the consumables the contractor stocks today.
// Order matters: the UI renders dropdowns in this order.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		"Cement OPC-53",
		"M-Sand",
		"Aggregate 20mm",
		"TMT Bar 12mm",
		"Binding Wire",
		"Shuttering Plate",
		"GI Strip",
		"GI Wire",
		"Earthing Rod",
		"Cable-95mm",
		"Cable-300mm",
		"PVC Conduit 25mm",
	)
}

// List returns the catalog names in their fixed order. The returned slice is
// a copy; callers may not mutate the catalog through it.
func (c *Catalog) List() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Contains reports whether name is a recognized material.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.names) }
