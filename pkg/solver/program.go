// Package solver adapts gonum's simplex implementation to the optimization
// problems of flux balance analysis and gapfilling.
package solver

import (
	"fmt"
	"math"

	"github.com/ekaya-inc/ekaya-gem/pkg/models"
)

// Status is the outcome class of an optimization.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
)

// Direction is the optimization sense for Optimize.
type Direction string

const (
	Maximize Direction = "maximize"
	Minimize Direction = "minimize"
)

// Variable is an LP column with bounds and a minimization cost.
// Bounds may be infinite.
type Variable struct {
	ID    string
	Lower float64
	Upper float64
	Cost  float64
}

// Row is an equality constraint: sum(Coefficients[j] * x_j) = RHS.
type Row struct {
	ID           string
	Coefficients map[int]float64
	RHS          float64
}

// LinearProgram is a bounded, equality-constrained linear program that is
// always minimized.
type LinearProgram struct {
	Variables []Variable
	Rows      []*Row

	varIndex map[string]int
	rowIndex map[string]int
}

// NewLinearProgram creates an empty program.
func NewLinearProgram() *LinearProgram {
	return &LinearProgram{
		varIndex: make(map[string]int),
		rowIndex: make(map[string]int),
	}
}

// AddVariable appends a column. Variable ids must be unique.
func (p *LinearProgram) AddVariable(v Variable) (int, error) {
	if _, dup := p.varIndex[v.ID]; dup {
		return 0, fmt.Errorf("duplicate variable %q", v.ID)
	}
	if math.IsNaN(v.Lower) || math.IsNaN(v.Upper) || math.IsNaN(v.Cost) {
		return 0, fmt.Errorf("variable %q has NaN bounds or cost", v.ID)
	}
	p.varIndex[v.ID] = len(p.Variables)
	p.Variables = append(p.Variables, v)
	return len(p.Variables) - 1, nil
}

// VariableIndex returns the column index of id.
func (p *LinearProgram) VariableIndex(id string) (int, bool) {
	i, ok := p.varIndex[id]
	return i, ok
}

// Row returns the constraint named id, creating it with RHS 0 if missing.
func (p *LinearProgram) Row(id string) *Row {
	if i, ok := p.rowIndex[id]; ok {
		return p.Rows[i]
	}
	r := &Row{ID: id, Coefficients: make(map[int]float64)}
	p.rowIndex[id] = len(p.Rows)
	p.Rows = append(p.Rows, r)
	return r
}

// AddCoefficient adds coef to the entry of column j in row id.
func (p *LinearProgram) AddCoefficient(rowID string, j int, coef float64) {
	if coef == 0 {
		return
	}
	r := p.Row(rowID)
	r.Coefficients[j] += coef
}

// SetBounds replaces the bounds of column j.
func (p *LinearProgram) SetBounds(j int, lower, upper float64) {
	p.Variables[j].Lower = lower
	p.Variables[j].Upper = upper
}

// SetCost replaces the cost of column j.
func (p *LinearProgram) SetCost(j int, cost float64) {
	p.Variables[j].Cost = cost
}

// ClearCosts zeroes every cost.
func (p *LinearProgram) ClearCosts() {
	for j := range p.Variables {
		p.Variables[j].Cost = 0
	}
}

// Clone returns a deep copy of p.
func (p *LinearProgram) Clone() *LinearProgram {
	c := &LinearProgram{
		Variables: append([]Variable(nil), p.Variables...),
		Rows:      make([]*Row, len(p.Rows)),
		varIndex:  make(map[string]int, len(p.varIndex)),
		rowIndex:  make(map[string]int, len(p.rowIndex)),
	}
	for k, v := range p.varIndex {
		c.varIndex[k] = v
	}
	for k, v := range p.rowIndex {
		c.rowIndex[k] = v
	}
	for i, r := range p.Rows {
		cr := &Row{ID: r.ID, RHS: r.RHS, Coefficients: make(map[int]float64, len(r.Coefficients))}
		for j, v := range r.Coefficients {
			cr.Coefficients[j] = v
		}
		c.Rows[i] = cr
	}
	return c
}

// FromNetwork builds the steady-state mass-balance program of network: one
// column per reaction (named by reaction id, with the reaction's bounds) and
// one zero-RHS row per metabolite.
func FromNetwork(network models.Network) (*LinearProgram, error) {
	p := NewLinearProgram()
	for _, id := range network.ReactionIDs() {
		r, ok := network.Reaction(id)
		if !ok {
			return nil, fmt.Errorf("reaction %q listed but not found", id)
		}
		j, err := p.AddVariable(Variable{ID: r.ID, Lower: r.LowerBound, Upper: r.UpperBound})
		if err != nil {
			return nil, err
		}
		for _, metID := range r.MetaboliteIDs() {
			p.AddCoefficient(metID, j, r.Metabolites[metID])
		}
	}
	return p, nil
}

// LPSolution is the result of SolveLP. Values are keyed by variable id and
// only populated for optimal solutions.
type LPSolution struct {
	Status    Status
	Objective float64
	Values    map[string]float64
}

// Value returns the value of variable id, zero when absent.
func (s *LPSolution) Value(id string) float64 {
	return s.Values[id]
}

// Solution is the result of Optimize.
type Solution struct {
	Status         Status             `json:"status"`
	ObjectiveValue float64            `json:"objective_value"`
	Fluxes         map[string]float64 `json:"fluxes,omitempty"`
}
