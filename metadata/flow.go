// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

// FlowNodeType discriminates the node kinds of a flow graph.
type FlowNodeType int

// Flow node types.
const (
	FlowNodeUnset FlowNodeType = iota
	FlowNodeInput
	FlowNodeOutput
	FlowNodeModel
)

var flowNodeTypeNames = map[FlowNodeType]string{
	FlowNodeUnset:  "NODE_TYPE_NOT_SET",
	FlowNodeInput:  "INPUT_NODE",
	FlowNodeOutput: "OUTPUT_NODE",
	FlowNodeModel:  "MODEL_NODE",
}

// String returns the wire name of the node type.
func (t FlowNodeType) String() string {
	if name, ok := flowNodeTypeNames[t]; ok {
		return name
	}
	return "NODE_TYPE_UNRECOGNIZED"
}

// Recognized reports whether the node type is a known enum member.
func (t FlowNodeType) Recognized() bool {
	_, ok := flowNodeTypeNames[t]
	return ok
}

// FlowDefinition is the payload of a FLOW object: a directed graph of input,
// output and model nodes, with optional declared parameters and schemas.
type FlowDefinition struct {
	Nodes map[string]FlowNode `json:"nodes"`
	Edges []FlowEdge          `json:"edges"`

	Parameters map[string]ModelParameter   `json:"parameters,omitempty"`
	Inputs     map[string]ModelInputSchema `json:"inputs,omitempty"`
	Outputs    map[string]ModelInputSchema `json:"outputs,omitempty"`
}

// FlowNode is one node of the flow graph. Inputs and Outputs name the
// sockets of a model node; input and output nodes carry a single implicit
// socket named after the node.
type FlowNode struct {
	NodeType FlowNodeType `json:"nodeType"`
	Inputs   []string     `json:"inputs,omitempty"`
	Outputs  []string     `json:"outputs,omitempty"`
	Label    string       `json:"label,omitempty"`
}

// FlowSocket addresses one input or output socket of one node. Socket is
// empty for input and output nodes.
type FlowSocket struct {
	Node   string `json:"node"`
	Socket string `json:"socket,omitempty"`
}

// String renders the socket as node or node.socket.
func (s FlowSocket) String() string {
	if s.Socket == "" {
		return s.Node
	}
	return s.Node + "." + s.Socket
}

// FlowEdge connects a source socket to a target socket.
type FlowEdge struct {
	Source FlowSocket `json:"source"`
	Target FlowSocket `json:"target"`
}
