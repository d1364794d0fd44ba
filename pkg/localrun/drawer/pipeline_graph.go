package drawer

import (
	"io"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Vertices standing for the pipeline inputs and its return block.
const (
	InputVertex  = model.Self
	ReturnVertex = "return"
)

// PipelineGraph builds the data-flow graph of a pipeline: an edge A -> B for every binding of
// call B that references A, labelled with the referenced fields. Self references start at
// InputVertex and return bindings end at ReturnVertex.
func PipelineGraph(pipe *model.Pipeline) (graph.Graph[string, string], error) {
	gra := graph.New(graph.StringHash, graph.Directed())

	err := gra.AddVertex(InputVertex, graph.VertexAttribute("shape", "box"), graph.VertexAttribute("xlabel", pipe.Name))
	if err != nil {
		return nil, errors.Wrap(err, "unable to add input vertex")
	}
	err = gra.AddVertex(ReturnVertex, graph.VertexAttribute("shape", "box"))
	if err != nil {
		return nil, errors.Wrap(err, "unable to add return vertex")
	}

	for _, call := range pipe.Calls {
		opts := []func(*graph.VertexProperties){}
		if len(call.Modifiers) > 0 {
			opts = append(opts, graph.VertexAttribute("xlabel", strings.Join(call.Modifiers, " ")))
		}
		err := gra.AddVertex(call.Name, opts...)
		if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, errors.Wrapf(err, "unable to add call %s", call.Name)
		}
	}

	for _, call := range pipe.Calls {
		for _, b := range call.Bindings {
			if err := addRef(gra, b.Ref, call.Name); err != nil {
				return nil, err
			}
		}
	}
	for _, b := range pipe.Return {
		if err := addRef(gra, b.Ref, ReturnVertex); err != nil {
			return nil, err
		}
	}

	return gra, nil
}

// addRef links the target of ref to child. References to unknown calls get a dashed vertex.
func addRef(gra graph.Graph[string, string], ref *model.Ref, child string) error {
	if ref == nil {
		return nil
	}

	err := gra.AddVertex(ref.Target, graph.VertexAttribute("style", "dashed"))
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrapf(err, "unable to add vertex %s", ref.Target)
	}

	err = gra.AddEdge(ref.Target, child, graph.EdgeAttribute("label", ref.Field))
	if err == nil {
		return nil
	}
	if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", ref.Target, child)
	}

	edge, err := gra.Edge(ref.Target, child)
	if err != nil {
		return errors.Wrapf(err, "unable to get edge from %s to %s", ref.Target, child)
	}
	label := edge.Properties.Attributes["label"] + `\n` + ref.Field

	return errors.Wrap(gra.UpdateEdge(ref.Target, child, graph.EdgeAttribute("label", label)), "unable to update edge")
}

// DrawPipeline writes the DOT rendering of PipelineGraph(pipe) to wrt.
func DrawPipeline(wrt io.Writer, pipe *model.Pipeline) error {
	gra, err := PipelineGraph(pipe)
	if err != nil {
		return err
	}

	return dot(gra, wrt, GraphAttribute("rankdir", "LR"))
}
