package manifest

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/starwell/coherence/internal/reality"
)

// CompileError describes a manifest field that failed to compile.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// compileConstruct decodes one construct value. The value has already
// been unified against the schema, so types and bounds hold; this pass
// extracts the data and re-checks the invariants the schema cannot
// express.
func compileConstruct(v cue.Value) (*reality.Construct, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &reality.Construct{}

	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return nil, &CompileError{Field: "id", Message: "construct id is required", Pos: v.Pos()}
	}
	id, err := idVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	c.ID = id

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.Kind = reality.ConstructKind(kind)
	} else {
		c.Kind = reality.KindBaseline
	}

	healthVal := v.LookupPath(cue.ParsePath("health"))
	if !healthVal.Exists() {
		return nil, &CompileError{Field: "health", Message: "health scores are required", Pos: v.Pos()}
	}
	c.Health, err = compileHealth(healthVal)
	if err != nil {
		return nil, err
	}

	c.Anchors, err = compileAnchors(v.LookupPath(cue.ParsePath("anchors")))
	if err != nil {
		return nil, err
	}

	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	c.Nodes, err = compileNodes(nodesVal)
	if err != nil {
		return nil, err
	}
	if len(c.Nodes) == 0 {
		return nil, &CompileError{
			Field:   "nodes",
			Message: fmt.Sprintf("construct %q declares no nodes", c.ID),
			Pos:     v.Pos(),
		}
	}

	// Duplicate node ids and anything else the schema cannot see.
	if err := c.Validate(); err != nil {
		return nil, &CompileError{Field: c.ID, Message: err.Error(), Pos: v.Pos()}
	}

	return c, nil
}

func compileHealth(v cue.Value) (reality.Health, error) {
	var h reality.Health
	var err error
	if h.Stability, err = scoreAt(v, "stability"); err != nil {
		return h, err
	}
	if h.Coherence, err = scoreAt(v, "coherence"); err != nil {
		return h, err
	}
	if h.DimensionalIntegrity, err = scoreAt(v, "dimensional_integrity"); err != nil {
		return h, err
	}
	if h.TemporalStability, err = scoreAt(v, "temporal_stability"); err != nil {
		return h, err
	}
	if h.Consistency, err = scoreAt(v, "consistency"); err != nil {
		return h, err
	}
	return h, nil
}

func scoreAt(v cue.Value, name string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, &CompileError{Field: "health." + name, Message: "score is required", Pos: v.Pos()}
	}
	score, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return score, nil
}

func compileAnchors(v cue.Value) ([]reality.AnchorPoint, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var anchors []reality.AnchorPoint
	for iter.Next() {
		av := iter.Value()
		var a reality.AnchorPoint

		if a.ID, err = stringAt(av, "id"); err != nil {
			return nil, err
		}
		if a.Position, err = compilePosition(av.LookupPath(cue.ParsePath("position"))); err != nil {
			return nil, err
		}
		if a.Stability, err = floatAt(av, "stability"); err != nil {
			return nil, err
		}
		if a.Influence, err = floatAt(av, "influence"); err != nil {
			return nil, err
		}
		anchors = append(anchors, a)
	}
	return anchors, nil
}

func compileNodes(v cue.Value) ([]*reality.Node, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []*reality.Node
	for iter.Next() {
		nv := iter.Value()
		n := &reality.Node{}

		if n.ID, err = stringAt(nv, "id"); err != nil {
			return nil, err
		}
		kind, err := stringAt(nv, "kind")
		if err != nil {
			return nil, err
		}
		n.Kind = reality.NodeKind(kind)
		if n.Position, err = compilePosition(nv.LookupPath(cue.ParsePath("position"))); err != nil {
			return nil, err
		}
		if n.Stability, err = floatAt(nv, "stability"); err != nil {
			return nil, err
		}
		if n.Capacity, err = floatAt(nv, "capacity"); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func compilePosition(v cue.Value) ([]float64, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var pos []float64
	for iter.Next() {
		coord, err := iter.Value().Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		pos = append(pos, coord)
	}
	return pos, nil
}

func stringAt(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func floatAt(v cue.Value, name string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return f, nil
}

// formatCUEError converts a CUE error into a CompileError carrying the
// offending field path and the first reported position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	field := strings.Join(firstErr.Path(), ".")
	if field == "" {
		field = "manifest"
	}

	ce := &CompileError{Field: field, Message: firstErr.Error()}
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
