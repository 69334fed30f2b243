package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/ekaya-inc/ekaya-gem/pkg/models"
)

// DefaultTolerance is the reduced-cost tolerance passed to the simplex.
const DefaultTolerance = 1e-10

// ErrObjectiveNotFound is returned by Optimize when the objective reaction is
// not part of the network.
var ErrObjectiveNotFound = errors.New("objective reaction not found")

// Engine solves linear programs.
type Engine interface {
	// Optimize maximizes or minimizes the flux through objective subject to
	// steady state and the network's bounds.
	Optimize(ctx context.Context, network models.Network, objective string, direction Direction) (*Solution, error)
	// SolveLP minimizes an arbitrary program.
	SolveLP(ctx context.Context, program *LinearProgram) (*LPSolution, error)
}

// SimplexEngine is an Engine backed by gonum's simplex.
type SimplexEngine struct {
	tol    float64
	logger *zap.Logger
}

// NewSimplexEngine creates a simplex-backed engine. A non-positive tol selects
// DefaultTolerance.
func NewSimplexEngine(tol float64, logger *zap.Logger) *SimplexEngine {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return &SimplexEngine{tol: tol, logger: logger.Named("solver")}
}

var _ Engine = (*SimplexEngine)(nil)

func (e *SimplexEngine) Optimize(ctx context.Context, network models.Network, objective string, direction Direction) (*Solution, error) {
	program, err := FromNetwork(network)
	if err != nil {
		return nil, fmt.Errorf("failed to build program: %w", err)
	}
	j, ok := program.VariableIndex(objective)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectiveNotFound, objective)
	}
	sign := -1.0
	if direction == Minimize {
		sign = 1.0
	}
	program.SetCost(j, sign)

	res, err := e.SolveLP(ctx, program)
	if err != nil {
		return nil, err
	}
	sol := &Solution{Status: res.Status}
	if res.Status == StatusOptimal {
		sol.ObjectiveValue = res.Values[objective]
		sol.Fluxes = res.Values
	}
	return sol, nil
}

// column is one standard-form column: a non-negative variable y with
// x_var = offset + sign*y, or an upper-bound slack when varIdx < 0.
type column struct {
	varIdx int
	sign   float64
	cost   float64
}

type standardForm struct {
	cols    []column
	rows    [][]float64
	rhs     []float64
	offsets []float64
	// varCols lists the column indexes backing each program variable.
	varCols [][]int
}

// SolveLP converts program to standard form, removes linearly dependent
// constraints and zero columns, and runs the simplex.
func (e *SimplexEngine) SolveLP(ctx context.Context, program *LinearProgram) (*LPSolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sf, status := toStandardForm(program)
	if status != "" {
		return &LPSolution{Status: status}, nil
	}

	keptRows, consistent := independentRows(sf.rows, sf.rhs)
	if !consistent {
		return &LPSolution{Status: StatusInfeasible}, nil
	}

	// Columns that appear in no remaining constraint sit at zero unless their
	// cost rewards growth, which no constraint can stop.
	var active []int
	for c, col := range sf.cols {
		used := false
		for _, i := range keptRows {
			if sf.rows[i][c] != 0 {
				used = true
				break
			}
		}
		if used {
			active = append(active, c)
			continue
		}
		if col.cost < 0 {
			return &LPSolution{Status: StatusUnbounded}, nil
		}
	}

	y := make([]float64, len(sf.cols))
	if len(keptRows) > 0 {
		m, n := len(keptRows), len(active)
		a := mat.NewDense(m, n, nil)
		b := make([]float64, m)
		c := make([]float64, n)
		for r, i := range keptRows {
			for k, col := range active {
				a.Set(r, k, sf.rows[i][col])
			}
			b[r] = sf.rhs[i]
		}
		for k, col := range active {
			c[k] = sf.cols[col].cost
		}

		_, x, err := lp.Simplex(c, a, b, e.tol, nil)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return &LPSolution{Status: StatusInfeasible}, nil
		case errors.Is(err, lp.ErrUnbounded):
			return &LPSolution{Status: StatusUnbounded}, nil
		case err != nil:
			e.logger.Warn("Simplex failed",
				zap.Int("rows", m),
				zap.Int("columns", n),
				zap.Error(err))
			return nil, fmt.Errorf("simplex: %w", err)
		}
		for k, col := range active {
			y[col] = x[k]
		}
	}

	sol := &LPSolution{Status: StatusOptimal, Values: make(map[string]float64, len(program.Variables))}
	for j, v := range program.Variables {
		val := sf.offsets[j]
		for _, c := range sf.varCols[j] {
			val += sf.cols[c].sign * y[c]
		}
		sol.Values[v.ID] = val
		sol.Objective += v.Cost * val
	}
	return sol, nil
}

// toStandardForm rewrites every bounded variable as an offset plus
// non-negative columns, adding a slack row for each finite upper bound.
// A non-empty status means the bounds alone decide the outcome.
func toStandardForm(p *LinearProgram) (*standardForm, Status) {
	sf := &standardForm{
		offsets: make([]float64, len(p.Variables)),
		varCols: make([][]int, len(p.Variables)),
	}
	type slack struct {
		col int
		rhs float64
	}
	var slacks []slack

	addCol := func(j int, sign float64) int {
		sf.cols = append(sf.cols, column{varIdx: j, sign: sign, cost: sign * p.Variables[j].Cost})
		sf.varCols[j] = append(sf.varCols[j], len(sf.cols)-1)
		return len(sf.cols) - 1
	}

	for j, v := range p.Variables {
		lo, up := v.Lower, v.Upper
		switch {
		case lo > up, math.IsInf(lo, 1), math.IsInf(up, -1):
			return nil, StatusInfeasible
		case lo == up:
			sf.offsets[j] = lo
		case !math.IsInf(lo, -1):
			sf.offsets[j] = lo
			c := addCol(j, 1)
			if !math.IsInf(up, 1) {
				slacks = append(slacks, slack{col: c, rhs: up - lo})
			}
		case !math.IsInf(up, 1):
			sf.offsets[j] = up
			addCol(j, -1)
		default:
			addCol(j, 1)
			addCol(j, -1)
		}
	}

	slackBase := len(sf.cols)
	for range slacks {
		sf.cols = append(sf.cols, column{varIdx: -1, sign: 1})
	}
	n := len(sf.cols)

	for _, r := range p.Rows {
		row := make([]float64, n)
		rhs := r.RHS
		for j, a := range r.Coefficients {
			if a == 0 {
				continue
			}
			rhs -= a * sf.offsets[j]
			for _, c := range sf.varCols[j] {
				row[c] += a * sf.cols[c].sign
			}
		}
		sf.rows = append(sf.rows, row)
		sf.rhs = append(sf.rhs, rhs)
	}
	for k, s := range slacks {
		row := make([]float64, n)
		row[s.col] = 1
		row[slackBase+k] = 1
		sf.rows = append(sf.rows, row)
		sf.rhs = append(sf.rhs, s.rhs)
	}
	return sf, ""
}

// independentRows returns the indexes of a maximal linearly independent
// subset of rows. It reports false when a dependent row contradicts the
// others, which makes the system infeasible.
func independentRows(rows [][]float64, rhs []float64) ([]int, bool) {
	type reduced struct {
		row   []float64
		rhs   float64
		pivot int
	}
	var basis []reduced
	var kept []int

	for i, orig := range rows {
		row := append([]float64(nil), orig...)
		b := rhs[i]
		scale := math.Abs(b)
		for _, v := range row {
			scale = math.Max(scale, math.Abs(v))
		}
		if scale == 0 {
			continue
		}

		for _, k := range basis {
			f := row[k.pivot] / k.row[k.pivot]
			if f == 0 {
				continue
			}
			for c, v := range k.row {
				if v != 0 {
					row[c] -= f * v
				}
			}
			b -= f * k.rhs
		}

		eps := 1e-9 * scale
		pivot, maxAbs := -1, eps
		for c, v := range row {
			if math.Abs(v) > maxAbs {
				pivot, maxAbs = c, math.Abs(v)
			}
		}
		if pivot < 0 {
			if math.Abs(b) > eps {
				return nil, false
			}
			continue
		}
		basis = append(basis, reduced{row: row, rhs: b, pivot: pivot})
		kept = append(kept, i)
	}
	return kept, true
}
