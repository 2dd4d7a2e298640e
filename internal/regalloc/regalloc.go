// Package regalloc provides an optional small free-register pool tracker
//. The current code generator uses fixed-register conventions
// throughout and does not drive this package automatically; it is offered
// as an affordance for future back-end work (e.g. lowering deeply nested
// expressions without exhausting d0/d1) that wants dynamic allocation
// without re-deriving the bookkeeping.
package regalloc

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// class distinguishes the data-register pool from the address-register
// pool; they're tracked separately since a spill/restore sequence for one
// never competes with the other.
type class int

const (
	classData class = iota
	classAddr
)

// Pool tracks free data/address registers, excluding locked and reserved
// ones (d7, a6, a7, plus anything named in a `#pragma lockreg`).
type Pool struct {
	free    [2]*bitset.BitSet // indexed by class; bit n set => register n is free
	stack   [][]spill
	locked  map[string]bool
}

type spill struct {
	reg   string
	class class
}

// NewPool builds a pool with all eight data and eight address registers
// free except the permanently reserved set and any additionally locked by
// pragma.
func NewPool(locked map[string]bool) *Pool {
	p := &Pool{
		free:   [2]*bitset.BitSet{bitset.New(8), bitset.New(8)},
		locked: locked,
	}
	for n := 0; n < 8; n++ {
		if !p.isReserved(classData, n) {
			p.free[classData].Set(uint(n))
		}
		if !p.isReserved(classAddr, n) {
			p.free[classAddr].Set(uint(n))
		}
	}
	return p
}

func (p *Pool) isReserved(c class, n int) bool {
	name := regName(c, n)
	if name == "d7" || name == "a6" || name == "a7" {
		return true
	}
	return p.locked[name]
}

func regName(c class, n int) string {
	if c == classData {
		return fmt.Sprintf("d%d", n)
	}
	return fmt.Sprintf("a%d", n)
}

// allocate picks the lowest-numbered free register in class c. When none
// are free, it spills the lowest-numbered non-reserved register to the
// stack and returns it along with the spill code needed to free it first.
func (p *Pool) allocate(c class, preferred string) (reg string, spillCode []string) {
	if preferred != "" {
		if n, ok := parseRegNum(c, preferred); ok && p.free[c].Test(uint(n)) {
			p.free[c].Clear(uint(n))
			return preferred, nil
		}
	}
	for n := 0; n < 8; n++ {
		if p.free[c].Test(uint(n)) {
			p.free[c].Clear(uint(n))
			return regName(c, n), nil
		}
	}
	// Exhausted: spill the lowest-numbered non-reserved register.
	for n := 0; n < 8; n++ {
		if !p.isReserved(c, n) {
			reg := regName(c, n)
			spillCode = []string{fmt.Sprintf("move.l %s,-(a7)", reg)}
			if len(p.stack) == 0 {
				p.stack = append(p.stack, nil)
			}
			top := len(p.stack) - 1
			p.stack[top] = append(p.stack[top], spill{reg: reg, class: c})
			return reg, spillCode
		}
	}
	return "", nil
}

// AllocateData allocates a data register, preferring preferred if free.
func (p *Pool) AllocateData(preferred string) (string, []string) {
	return p.allocate(classData, preferred)
}

// AllocateAddress allocates an address register, preferring preferred if
// free.
func (p *Pool) AllocateAddress(preferred string) (string, []string) {
	return p.allocate(classAddr, preferred)
}

// Free returns reg to the pool.
func (p *Pool) Free(reg string) {
	if len(reg) != 2 {
		return
	}
	var c class
	switch reg[0] {
	case 'd':
		c = classData
	case 'a':
		c = classAddr
	default:
		return
	}
	if n, ok := parseRegNum(c, reg); ok {
		p.free[c].Set(uint(n))
	}
}

// RestoreSpilled pops the most recently spilled register for this call
// context, returning its name and the restore instruction.
func (p *Pool) RestoreSpilled() (reg string, restoreCode []string, ok bool) {
	if len(p.stack) == 0 {
		return "", nil, false
	}
	top := p.stack[len(p.stack)-1]
	if len(top) == 0 {
		return "", nil, false
	}
	last := top[len(top)-1]
	p.stack[len(p.stack)-1] = top[:len(top)-1]
	return last.reg, []string{fmt.Sprintf("move.l (a7)+,%s", last.reg)}, true
}

// SaveContext pushes a new, empty spill frame for an upcoming call site
//.
func (p *Pool) SaveContext() {
	p.stack = append(p.stack, nil)
}

// RestoreContext pops the spill frame, returning the restore instructions
// for any registers that were spilled within it, in reverse (LIFO) order.
func (p *Pool) RestoreContext() []string {
	if len(p.stack) == 0 {
		return nil
	}
	frame := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	var out []string
	for i := len(frame) - 1; i >= 0; i-- {
		out = append(out, fmt.Sprintf("move.l (a7)+,%s", frame[i].reg))
		p.free[frame[i].class].Set(uint(mustParseRegNum(frame[i].class, frame[i].reg)))
	}
	return out
}

func parseRegNum(c class, reg string) (int, bool) {
	if len(reg) != 2 {
		return 0, false
	}
	want := byte('d')
	if c == classAddr {
		want = 'a'
	}
	if reg[0] != want || reg[1] < '0' || reg[1] > '7' {
		return 0, false
	}
	return int(reg[1] - '0'), true
}

func mustParseRegNum(c class, reg string) int {
	n, _ := parseRegNum(c, reg)
	return n
}
