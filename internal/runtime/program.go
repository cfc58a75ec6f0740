package runtime

import "slices"

// Program is one unit of behavior. Run is called once per frame while the
// program is present (its marker is on the table) or resident.
//
// Run executes concurrently with other programs against a buffered Scope.
// A returned error is logged as "Error in program <id>: ..." and does not
// stop the frame.
type Program interface {
	ID() int
	Resident() bool
	Run(s *Scope) error
}

// Func adapts a function to the Program interface.
type Func struct {
	ProgramID  int
	IsResident bool
	Fn         func(s *Scope) error
}

func (f Func) ID() int        { return f.ProgramID }
func (f Func) Resident() bool { return f.IsResident }

func (f Func) Run(s *Scope) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(s)
}

// Blank is the placeholder program for a marker id with no known program.
// It claims nothing itself; the loop still publishes its marker's geometry.
type Blank struct {
	ProgramID int
}

func (b Blank) ID() int            { return b.ProgramID }
func (b Blank) Resident() bool     { return false }
func (b Blank) Run(s *Scope) error { return nil }

// Programs indexes programs by id. It is owned by the loop goroutine.
type Programs struct {
	byID map[int]Program
}

// NewPrograms indexes ps. A later program replaces an earlier one with the
// same id.
func NewPrograms(ps ...Program) *Programs {
	p := &Programs{byID: make(map[int]Program, len(ps))}
	for _, prog := range ps {
		p.Add(prog)
	}
	return p
}

// Add inserts or replaces a program.
func (p *Programs) Add(prog Program) {
	p.byID[prog.ID()] = prog
}

// Get returns the program with id.
func (p *Programs) Get(id int) (Program, bool) {
	prog, ok := p.byID[id]
	return prog, ok
}

// GetOrBlank returns the program with id, adding a Blank placeholder if
// there is none.
func (p *Programs) GetOrBlank(id int) Program {
	if prog, ok := p.byID[id]; ok {
		return prog
	}
	blank := Blank{ProgramID: id}
	p.byID[id] = blank
	return blank
}

// Resident returns the resident programs sorted by id.
func (p *Programs) Resident() []Program {
	var out []Program
	for _, prog := range p.byID {
		if prog.Resident() {
			out = append(out, prog)
		}
	}
	slices.SortFunc(out, func(a, b Program) int { return a.ID() - b.ID() })
	return out
}

// IDs returns every program id, sorted.
func (p *Programs) IDs() []int {
	ids := make([]int, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of programs.
func (p *Programs) Len() int {
	return len(p.byID)
}
