package core

import "curvegraph/pkg/domain"

// View is the denormalized graph handed to consumers, plus the two pinned
// selections: the model being charted and the input being shown in detail.
type View struct {
	Revision     string   `json:"revision"`
	Models       []*Model `json:"models"`
	Inputs       []*Input `json:"inputs"`
	ChartedModel *Model   `json:"charted_model,omitempty"`
	ShownInput   *Input   `json:"shown_input,omitempty"`
	// Dropped lists pins whose identity vanished in the last projection.
	Dropped []Pin `json:"dropped,omitempty"`
}

// Pin names a pinned record by table and identity.
type Pin struct {
	Table Table    `json:"table"`
	ID    Identity `json:"id"`
}

// Selection holds pinned identities. Consumers holding a Selection re-resolve
// through the store on every read instead of holding object references.
type Selection struct {
	ModelID Identity `json:"model_id,omitempty"`
	InputID Identity `json:"input_id,omitempty"`
}

// Selection returns the identities currently pinned by v.
func (v View) Selection() Selection {
	var sel Selection
	if v.ChartedModel != nil {
		sel.ModelID = v.ChartedModel.ID
	}
	if v.ShownInput != nil {
		sel.InputID = v.ShownInput.ID
	}
	return sel
}

// Project rebuilds every model and input from the current tables, in identity
// order, and re-binds the pins of prev to the rebuilt objects sharing their
// identity. A pin whose identity no longer exists is cleared and reported in
// Dropped. Any missing reference aborts the projection.
func (s *Store) Project(prev View) (View, error) {
	return s.ProjectSelection(prev.Selection())
}

// ProjectSelection is Project for pins held as identities.
func (s *Store) ProjectSelection(sel Selection) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.project(s.revision, sel)
}

func (s tableState) project(revision string, sel Selection) (View, error) {
	next := View{
		Revision: revision,
		Models:   make([]*Model, 0, len(s.models)),
		Inputs:   make([]*Input, 0, len(s.inputs)),
	}
	for _, id := range sortedIDs(s.models) {
		m, err := s.resolveModel(id)
		if err != nil {
			return View{}, err
		}
		ptr := &m
		next.Models = append(next.Models, ptr)
		if sel.ModelID != 0 && sel.ModelID == id {
			next.ChartedModel = ptr
		}
	}
	for _, id := range sortedIDs(s.inputs) {
		in, err := s.resolveInput(id)
		if err != nil {
			return View{}, err
		}
		ptr := &in
		next.Inputs = append(next.Inputs, ptr)
		if sel.InputID != 0 && sel.InputID == id {
			next.ShownInput = ptr
		}
	}
	if sel.ModelID != 0 && next.ChartedModel == nil {
		next.Dropped = append(next.Dropped, Pin{Table: TableModels, ID: sel.ModelID})
	}
	if sel.InputID != 0 && next.ShownInput == nil {
		next.Dropped = append(next.Dropped, Pin{Table: TableInputs, ID: sel.InputID})
	}
	return next, nil
}

// Charted resolves the pinned model of sel against the current tables. ok is
// false when nothing is pinned or the pinned identity no longer exists.
func (s *Store) Charted(sel Selection) (Model, bool, error) {
	if sel.ModelID == 0 {
		return Model{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.models[sel.ModelID]; !ok {
		return Model{}, false, nil
	}
	m, err := s.state.resolveModel(sel.ModelID)
	if err != nil {
		return Model{}, false, err
	}
	return m, true, nil
}

// Shown resolves the pinned input of sel against the current tables.
func (s *Store) Shown(sel Selection) (Input, bool, error) {
	if sel.InputID == 0 {
		return Input{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.inputs[sel.InputID]; !ok {
		return Input{}, false, nil
	}
	in, err := s.state.resolveInput(sel.InputID)
	if err != nil {
		return Input{}, false, err
	}
	return in, true, nil
}

// pinError reports a pin request for an identity the tables do not hold.
func pinError(table Table, id Identity) error {
	return domain.MissingReferenceError{Table: table, ID: id}
}
