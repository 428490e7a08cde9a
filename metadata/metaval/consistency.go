// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval

import (
	"slices"

	"github.com/google/uuid"

	"tracdap.io/tracmeta/metadata"
)

// ReferenceBundle holds the resolved identity of every object a consistency
// pass may reference: catalog state loaded up front plus the headers of any
// objects created earlier in the same batch.
type ReferenceBundle map[uuid.UUID]metadata.TagHeader

// Resolve looks up the header for a selector's object id.
func (b ReferenceBundle) Resolve(s *metadata.TagSelector) (metadata.TagHeader, bool) {
	header, ok := b[s.ObjectID]
	return header, ok
}

// DefinitionConsistencyValidator checks every reference embedded in a
// definition against the bundle: the referenced object must exist, carry the
// type the selector declares, and hold the version the selector names.
func DefinitionConsistencyValidator(bundle ReferenceBundle) func(*Context, *metadata.ObjectDefinition) {
	return func(v *Context, def *metadata.ObjectDefinition) {
		for _, selector := range def.EmbeddedSelectors() {
			header, ok := bundle.Resolve(selector)
			if !ok {
				v.Fail("reference [%s] does not exist in the current tenant", selector.ObjectID)
				continue
			}
			if header.ObjectType != selector.ObjectType {
				v.Fail("reference [%s] is of type %v, the definition expects %v",
					selector.ObjectID, header.ObjectType, selector.ObjectType)
				continue
			}
			if selector.ObjectVersion > header.ObjectVersion {
				v.Fail("reference [%s] names version %d, only %d versions exist",
					selector.ObjectID, selector.ObjectVersion, header.ObjectVersion)
			}
		}
	}
}

// ReferenceCycles fails when the definitions of one batch reference each
// other in a cycle. References leaving the batch cannot form cycles because
// stored objects only embed fixed selectors to pre-existing objects.
func ReferenceCycles(v *Context, batch map[uuid.UUID]*metadata.ObjectDefinition) {
	nodes := make([]string, 0, len(batch))
	adjacency := make(map[string][]string, len(batch))

	for id, def := range batch {
		nodes = append(nodes, id.String())
		for _, selector := range def.EmbeddedSelectors() {
			if _, inBatch := batch[selector.ObjectID]; inBatch {
				adjacency[id.String()] = append(adjacency[id.String()], selector.ObjectID.String())
			}
		}
	}

	slices.Sort(nodes)
	if cycle := findCycle(nodes, adjacency); cycle != "" {
		v.Fail("the batch contains a reference cycle through object [%s]", cycle)
	}
}
