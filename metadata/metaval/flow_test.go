// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metaval"
)

// basicFlow is a two-model pipeline: one input feeds both models, the first
// model also feeds the second, and the second feeds the output.
func basicFlow() *metadata.FlowDefinition {
	return &metadata.FlowDefinition{
		Nodes: map[string]metadata.FlowNode{
			"customer_data": {NodeType: metadata.FlowNodeInput},
			"pd_model":      {NodeType: metadata.FlowNodeModel, Inputs: []string{"customers"}, Outputs: []string{"scores"}},
			"lgd_model":     {NodeType: metadata.FlowNodeModel, Inputs: []string{"customers", "scores"}, Outputs: []string{"losses"}},
			"loss_report":   {NodeType: metadata.FlowNodeOutput},
		},
		Edges: []metadata.FlowEdge{
			{Source: socket("customer_data", ""), Target: socket("pd_model", "customers")},
			{Source: socket("customer_data", ""), Target: socket("lgd_model", "customers")},
			{Source: socket("pd_model", "scores"), Target: socket("lgd_model", "scores")},
			{Source: socket("lgd_model", "losses"), Target: socket("loss_report", "")},
		},
	}
}

func socket(node, sock string) metadata.FlowSocket {
	return metadata.FlowSocket{Node: node, Socket: sock}
}

func TestFlowValidatorAcceptsBasicFlow(t *testing.T) {
	require.NoError(t, validate(metaval.FlowValidator, basicFlow()))
}

func TestFlowValidatorNoNodes(t *testing.T) {
	err := validate(metaval.FlowValidator, &metadata.FlowDefinition{})
	require.ErrorContains(t, err, "at least one entry is required")
}

func TestFlowValidatorUnknownEdgeNode(t *testing.T) {
	flow := basicFlow()
	flow.Edges = append(flow.Edges, metadata.FlowEdge{
		Source: socket("missing_node", ""),
		Target: socket("loss_report", ""),
	})
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "does not reference a node in the flow")
}

func TestFlowValidatorUnknownSocket(t *testing.T) {
	flow := basicFlow()
	flow.Edges[2].Target = socket("lgd_model", "no_such_socket")
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "does not name a socket of model node")
}

func TestFlowValidatorEdgeDirection(t *testing.T) {
	flow := basicFlow()
	flow.Edges = append(flow.Edges, metadata.FlowEdge{
		Source: socket("loss_report", ""),
		Target: socket("customer_data", ""),
	})
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "output node [loss_report] cannot be an edge source")
	require.ErrorContains(t, err, "input node [customer_data] cannot be an edge target")
}

func TestFlowValidatorOutputFedTwice(t *testing.T) {
	flow := basicFlow()
	flow.Edges = append(flow.Edges, metadata.FlowEdge{
		Source: socket("pd_model", "scores"),
		Target: socket("loss_report", ""),
	})
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "must be fed by exactly one edge, got 2")
}

func TestFlowValidatorModelInputUnfed(t *testing.T) {
	flow := basicFlow()
	flow.Edges = flow.Edges[1:]
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "model input [pd_model.customers] must be fed by exactly one edge, got 0")
}

func TestFlowValidatorUnusedNodes(t *testing.T) {
	flow := basicFlow()
	flow.Nodes["spare_input"] = metadata.FlowNode{NodeType: metadata.FlowNodeInput}
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "input node [spare_input] is not used by any edge")

	flow = basicFlow()
	flow.Nodes["idle_model"] = metadata.FlowNode{
		NodeType: metadata.FlowNodeModel,
		Inputs:   []string{"customers"},
		Outputs:  []string{"unused"},
	}
	flow.Edges = append(flow.Edges, metadata.FlowEdge{
		Source: socket("customer_data", ""),
		Target: socket("idle_model", "customers"),
	})
	err = validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "model node [idle_model] produces no output used by the flow")
}

func TestFlowValidatorCycle(t *testing.T) {
	flow := &metadata.FlowDefinition{
		Nodes: map[string]metadata.FlowNode{
			"input_a":  {NodeType: metadata.FlowNodeInput},
			"model_a":  {NodeType: metadata.FlowNodeModel, Inputs: []string{"seed", "feedback"}, Outputs: []string{"forward"}},
			"model_b":  {NodeType: metadata.FlowNodeModel, Inputs: []string{"forward"}, Outputs: []string{"feedback", "result"}},
			"output_a": {NodeType: metadata.FlowNodeOutput},
		},
		Edges: []metadata.FlowEdge{
			{Source: socket("input_a", ""), Target: socket("model_a", "seed")},
			{Source: socket("model_a", "forward"), Target: socket("model_b", "forward")},
			{Source: socket("model_b", "feedback"), Target: socket("model_a", "feedback")},
			{Source: socket("model_b", "result"), Target: socket("output_a", "")},
		},
	}
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "the flow contains a cycle")
}

func TestFlowValidatorNonModelSockets(t *testing.T) {
	flow := basicFlow()
	node := flow.Nodes["customer_data"]
	node.Outputs = []string{"stray_socket"}
	flow.Nodes["customer_data"] = node
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "not a model node and cannot declare sockets")
}

func TestFlowValidatorDeclaredContract(t *testing.T) {
	flow := basicFlow()
	flow.Parameters = map[string]metadata.ModelParameter{
		"cutoff_date": {ParamType: metadata.BasicTypeDate},
	}
	flow.Inputs = map[string]metadata.ModelInputSchema{"customer_data": {}}
	flow.Outputs = map[string]metadata.ModelInputSchema{"loss_report": {}}
	require.NoError(t, validate(metaval.FlowValidator, flow))

	flow.Parameters = map[string]metadata.ModelParameter{
		"cutoff_date": {ParamType: metadata.BasicTypeArray},
	}
	err := validate(metaval.FlowValidator, flow)
	require.ErrorContains(t, err, "not a primitive type")
}
