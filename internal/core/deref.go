package core

import (
	"fmt"

	"curvegraph/pkg/domain"
)

// ResolveInput returns the input with each referenced curve embedded, in
// reference order. Stored records are not modified.
func (s *Store) ResolveInput(id Identity) (Input, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.resolveInput(id)
}

// ResolveModel returns the model with every input, and each input's curves, embedded.
func (s *Store) ResolveModel(id Identity) (Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.resolveModel(id)
}

func (s tableState) resolveInput(id Identity) (Input, error) {
	rec, ok := s.inputs[id]
	if !ok {
		return Input{}, domain.MissingReferenceError{Table: TableInputs, ID: id}
	}
	out := Input{
		ID:              rec.ID,
		Name:            rec.Name,
		InputAttributes: rec.InputAttributes,
		Notes:           rec.Notes,
		Curves:          make([]Curve, 0, len(rec.Curves)),
	}
	for _, cid := range rec.Curves {
		c, ok := s.curves[cid]
		if !ok {
			return Input{}, domain.MissingReferenceError{Table: TableCurves, ID: cid, From: fmt.Sprintf("%s %d", TableInputs, id)}
		}
		out.Curves = append(out.Curves, domain.CloneCurve(c))
	}
	return out, nil
}

func (s tableState) resolveModel(id Identity) (Model, error) {
	rec, ok := s.models[id]
	if !ok {
		return Model{}, domain.MissingReferenceError{Table: TableModels, ID: id}
	}
	out := Model{
		ID:     rec.ID,
		Name:   rec.Name,
		Notes:  rec.Notes,
		Inputs: make([]Input, 0, len(rec.Inputs)),
	}
	for _, iid := range rec.Inputs {
		if _, ok := s.inputs[iid]; !ok {
			return Model{}, domain.MissingReferenceError{Table: TableInputs, ID: iid, From: fmt.Sprintf("%s %d", TableModels, id)}
		}
		in, err := s.resolveInput(iid)
		if err != nil {
			return Model{}, err
		}
		out.Inputs = append(out.Inputs, in)
	}
	return out, nil
}
