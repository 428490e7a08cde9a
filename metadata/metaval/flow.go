// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval

import (
	"slices"

	"tracdap.io/tracmeta/metadata"
)

// FlowValidator checks a flow payload: node and socket shape first, then the
// semantic rules of the graph. Input nodes take no incoming edges, output
// nodes take exactly one, every model input is fed exactly once, every node
// is used and the graph is acyclic.
func FlowValidator(v *Context, f *metadata.FlowDefinition) {
	v.PushMap("nodes", f.Nodes)
	Apply(v, MapNotEmpty[metadata.FlowNode])
	CaseInsensitiveDuplicates(v, sortedKeys(f.Nodes))
	v.Pop()

	if len(f.Nodes) == 0 {
		return
	}

	for _, name := range sortedKeys(f.Nodes) {
		node := f.Nodes[name]
		v.PushMap("nodes", f.Nodes)
		v.PushMapValue(name, node)
		flowNodeValidator(v, name, node)
		v.Pop()
		v.Pop()
	}

	shapeOK := true
	for i, edge := range f.Edges {
		v.PushRepeated("edges", f.Edges)
		v.PushRepeatedItem(i, edge)
		if !flowEdgeValidator(v, f, edge) {
			shapeOK = false
		}
		v.Pop()
		v.Pop()
	}

	modelParametersValidator(v, "parameters", f.Parameters)
	modelSchemasValidator(v, "inputs", f.Inputs)
	modelSchemasValidator(v, "outputs", f.Outputs)

	// graph-level rules only make sense once every edge endpoint resolves
	if v.Failed() || !shapeOK {
		return
	}
	flowGraphValidator(v, f)
}

func flowNodeValidator(v *Context, name string, node metadata.FlowNode) {
	keyedIdentifier(v, name)

	v.Push("nodeType", node.NodeType)
	Apply(v, NonZeroEnum[metadata.FlowNodeType])
	Apply(v, RecognizedEnum[metadata.FlowNodeType])
	v.Pop()

	switch node.NodeType {
	case metadata.FlowNodeInput, metadata.FlowNodeOutput:
		// socket lists belong to model nodes; input and output nodes carry
		// one implicit socket named after the node
		if len(node.Inputs) > 0 || len(node.Outputs) > 0 {
			v.Fail("node [%s] is not a model node and cannot declare sockets", name)
		}

	case metadata.FlowNodeModel:
		v.PushRepeated("inputs", node.Inputs)
		Apply(v, ListNotEmpty[string])
		CaseInsensitiveDuplicates(v, node.Inputs)
		v.Pop()

		v.PushRepeated("outputs", node.Outputs)
		Apply(v, ListNotEmpty[string])
		CaseInsensitiveDuplicates(v, node.Outputs)
		v.Pop()

		for _, socket := range append(slices.Clone(node.Inputs), node.Outputs...) {
			if !metadata.IsIdentifier(socket) {
				v.Fail("socket [%s] of node [%s] is not a valid identifier", socket, name)
			}
		}
	}
}

// flowEdgeValidator checks that both endpoints of an edge name an existing
// node and a socket consistent with the node type. It reports whether the
// edge resolved.
func flowEdgeValidator(v *Context, f *metadata.FlowDefinition, edge metadata.FlowEdge) bool {
	sourceOK := flowSocketValidator(v, f, "source", edge.Source, true)
	targetOK := flowSocketValidator(v, f, "target", edge.Target, false)
	return sourceOK && targetOK
}

func flowSocketValidator(v *Context, f *metadata.FlowDefinition, side string, socket metadata.FlowSocket, isSource bool) bool {
	v.Push(side, socket)
	defer v.Pop()

	node, ok := f.Nodes[socket.Node]
	if !ok {
		v.Fail("%s [%s] does not reference a node in the flow", side, socket)
		return false
	}

	switch {
	case node.NodeType == metadata.FlowNodeInput && !isSource:
		v.Fail("input node [%s] cannot be an edge target", socket.Node)
	case node.NodeType == metadata.FlowNodeOutput && isSource:
		v.Fail("output node [%s] cannot be an edge source", socket.Node)
	case node.NodeType == metadata.FlowNodeModel:
		sockets := node.Inputs
		if isSource {
			sockets = node.Outputs
		}
		if socket.Socket == "" || !slices.Contains(sockets, socket.Socket) {
			v.Fail("%s [%s] does not name a socket of model node [%s]", side, socket, socket.Node)
			return false
		}
	default:
		if socket.Socket != "" {
			v.Fail("%s [%s] names a socket on a non-model node", side, socket)
			return false
		}
	}
	return true
}

// flowGraphValidator runs the whole-graph rules over resolved edges.
func flowGraphValidator(v *Context, f *metadata.FlowDefinition) {
	incoming := map[string]int{}  // per target socket
	outgoing := map[string]int{}  // per source socket
	adjacency := map[string][]string{}

	for _, edge := range f.Edges {
		incoming[edge.Target.String()]++
		outgoing[edge.Source.String()]++
		adjacency[edge.Source.Node] = append(adjacency[edge.Source.Node], edge.Target.Node)
	}

	for _, name := range sortedKeys(f.Nodes) {
		node := f.Nodes[name]
		switch node.NodeType {
		case metadata.FlowNodeInput:
			if outgoing[name] == 0 {
				v.Fail("input node [%s] is not used by any edge", name)
			}

		case metadata.FlowNodeOutput:
			if incoming[name] != 1 {
				v.Fail("output node [%s] must be fed by exactly one edge, got %d", name, incoming[name])
			}

		case metadata.FlowNodeModel:
			for _, socket := range node.Inputs {
				ref := metadata.FlowSocket{Node: name, Socket: socket}
				if n := incoming[ref.String()]; n != 1 {
					v.Fail("model input [%s] must be fed by exactly one edge, got %d", ref, n)
				}
			}
			used := false
			for _, socket := range node.Outputs {
				ref := metadata.FlowSocket{Node: name, Socket: socket}
				if outgoing[ref.String()] > 0 {
					used = true
				}
			}
			if !used {
				v.Fail("model node [%s] produces no output used by the flow", name)
			}
		}
	}

	if cycle := findCycle(sortedKeys(f.Nodes), adjacency); cycle != "" {
		v.Fail("the flow contains a cycle through node [%s]", cycle)
	}
}

// findCycle returns a node on a cycle, or empty when the graph is acyclic.
func findCycle(nodes []string, adjacency map[string][]string) string {
	const (
		unvisited = 0
		inStack   = 1
		finished  = 2
	)
	state := make(map[string]int, len(nodes))

	var visit func(string) string
	visit = func(node string) string {
		state[node] = inStack
		for _, next := range adjacency[node] {
			switch state[next] {
			case inStack:
				return next
			case unvisited:
				if found := visit(next); found != "" {
					return found
				}
			}
		}
		state[node] = finished
		return ""
	}

	for _, node := range nodes {
		if state[node] == unvisited {
			if found := visit(node); found != "" {
				return found
			}
		}
	}
	return ""
}
