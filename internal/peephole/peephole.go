// Package peephole implements a multi-pass, bounded local rewriter:
// twelve conservative transformations over the emitted
// assembly text, each restricted to register destinations where a
// condition-code or memory side effect could otherwise be disturbed.
// Passes operate on an immutable snapshot and return a new sequence,
// matching the "no process-wide mutable state" design note.
package peephole

import (
	"regexp"
	"strconv"
	"strings"
)

// maxPasses bounds the optimizer: five passes, or fewer if a pass makes no
// change (fixpoint).
const maxPasses = 5

// line is one parsed output line: a label, a directive (SECTION/XREF/XDEF/
// dc/ds/equ, left untouched), or an instruction with its operand text and
// trailing comment split out.
type line struct {
	raw       string
	isLabel   bool
	isOpaque  bool // directive lines the optimizer never rewrites
	isBlank   bool
	op        string
	operands  []string
	comment   string
	hadIndent bool
}

var opaquePrefixes = []string{"SECTION", "XREF", "XDEF"}

func parseLine(raw string) line {
	if strings.TrimSpace(raw) == "" {
		return line{raw: raw, isBlank: true}
	}
	trimmed := strings.TrimLeft(raw, " \t")
	if !strings.HasPrefix(raw, " ") && !strings.HasPrefix(raw, "\t") {
		// column-0 text: a label, or an opaque top-level directive.
		for _, p := range opaquePrefixes {
			if strings.HasPrefix(trimmed, p) || strings.HasPrefix(trimmed, "\t"+p) {
				return line{raw: raw, isOpaque: true}
			}
		}
		if strings.HasSuffix(trimmed, ":") {
			return line{raw: raw, isLabel: true}
		}
		// a bare equ/dc/ds label line (e.g. "name:" already handled above,
		// "name  equ  N" or similar) is left opaque; conservatively treat
		// any other column-0 line as opaque.
		return line{raw: raw, isOpaque: true}
	}

	body := trimmed
	comment := ""
	if idx := strings.Index(body, ";"); idx >= 0 {
		comment = strings.TrimSpace(body[idx+1:])
		body = strings.TrimSpace(body[:idx])
	}
	if body == "" {
		return line{raw: raw, isOpaque: true}
	}
	fields := strings.SplitN(body, " ", 2)
	op := fields[0]
	var operands []string
	if len(fields) > 1 {
		operands = splitOperands(fields[1])
	}
	if isOpaqueMnemonic(op) {
		return line{raw: raw, isOpaque: true}
	}
	return line{raw: raw, op: op, operands: operands, comment: comment, hadIndent: true}
}

func isOpaqueMnemonic(op string) bool {
	switch {
	case strings.HasPrefix(op, "dc."), strings.HasPrefix(op, "ds."), strings.HasPrefix(op, "equ"):
		return true
	case strings.HasPrefix(op, "SECTION"), strings.HasPrefix(op, "XREF"), strings.HasPrefix(op, "XDEF"):
		// directives indented like instructions
		return true
	}
	return false
}

func splitOperands(s string) []string {
	var out []string
	depth := 0
	cur := strings.Builder{}
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if r == ',' && depth == 0 {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}

func (l line) render() string {
	if l.isBlank || l.isLabel || l.isOpaque {
		return l.raw
	}
	text := l.op
	if len(l.operands) > 0 {
		text += " " + strings.Join(l.operands, ",")
	}
	out := "    " + text
	if l.comment != "" {
		out += "  ; " + l.comment
	}
	return out
}

func (l line) isBranch() bool {
	return strings.HasPrefix(l.op, "b") && l.op != "bchg" && l.op != "bset" && l.op != "bclr" && l.op != "btst" ||
		l.op == "dbra" || l.op == "bsr" || l.op == "jsr" || l.op == "rts"
}

// Optimize runs up to maxPasses rewrite passes over the given assembly
// lines and returns the optimized sequence.
func Optimize(lines []string) []string {
	cur := make([]line, len(lines))
	for i, raw := range lines {
		cur[i] = parseLine(raw)
	}

	for pass := 0; pass < maxPasses; pass++ {
		next, changed := runPass(cur)
		cur = next
		if !changed {
			break
		}
	}

	out := make([]string, len(cur))
	for i, l := range cur {
		out[i] = l.render()
	}
	return out
}

// runPass applies every rule once, left to right, restarting the scan
// position after any match so later rules can see the freshly rewritten
// neighborhood within the same pass.
func runPass(in []line) ([]line, bool) {
	out := append([]line(nil), in...)
	changedAny := false

	rules := []func([]line, int) ([]line, bool){
		ruleMoveSelf,
		ruleMoveBackAndForth,
		ruleDupLea,
		ruleDeadStore,
		ruleNarrowImmediate,
		ruleFoldMoveThenStore,
		ruleClrThenOverwrite,
		ruleMoveChainForward,
		ruleRedundantCmp,
		ruleConstantShiftFold,
		ruleZeroOffsetAddressing,
		ruleBranchToBranch,
	}

	i := 0
	for i < len(out) {
		matched := false
		for _, rule := range rules {
			if rewritten, ok := rule(out, i); ok {
				out = rewritten
				changedAny = true
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return out, changedAny
}

func splice(lines []line, at, remove int, replacement ...line) []line {
	out := make([]line, 0, len(lines)-remove+len(replacement))
	out = append(out, lines[:at]...)
	out = append(out, replacement...)
	out = append(out, lines[at+remove:]...)
	return out
}

// 1. Eliminate `move.x rN,rN`.
func ruleMoveSelf(lines []line, i int) ([]line, bool) {
	l := lines[i]
	if !isMoveLike(l.op) || len(l.operands) != 2 {
		return nil, false
	}
	if l.operands[0] == l.operands[1] {
		return splice(lines, i, 1), true
	}
	return nil, false
}

// 2. Eliminate `move.x d0,EA; move.x EA,d0` back-to-back pairs.
func ruleMoveBackAndForth(lines []line, i int) ([]line, bool) {
	if i+1 >= len(lines) {
		return nil, false
	}
	a, b := lines[i], lines[i+1]
	if !isMoveLike(a.op) || !isMoveLike(b.op) || a.op != b.op {
		return nil, false
	}
	if len(a.operands) != 2 || len(b.operands) != 2 {
		return nil, false
	}
	if a.operands[0] == b.operands[1] && a.operands[1] == b.operands[0] {
		return splice(lines, i, 2, a), true
	}
	return nil, false
}

// 3. Drop immediately duplicated `lea addr,aN`.
func ruleDupLea(lines []line, i int) ([]line, bool) {
	if i+1 >= len(lines) {
		return nil, false
	}
	a, b := lines[i], lines[i+1]
	if a.op != "lea" || b.op != "lea" {
		return nil, false
	}
	if len(a.operands) == 2 && len(b.operands) == 2 && a.operands[0] == b.operands[0] && a.operands[1] == b.operands[1] {
		return splice(lines, i, 1), true
	}
	return nil, false
}

// 4. Dead stores: a write to dN/aN immediately overwritten before any use
// (register destinations only; memory destinations are never elided).
func ruleDeadStore(lines []line, i int) ([]line, bool) {
	l := lines[i]
	if (!isMoveLike(l.op) && l.op != "moveq") || len(l.operands) != 2 {
		return nil, false
	}
	dst := l.operands[1]
	if !isBareReg(dst) {
		return nil, false
	}
	if i+1 >= len(lines) {
		return nil, false
	}
	next := lines[i+1]
	if next.isLabel || next.isBlank || next.isOpaque || next.isBranch() {
		return nil, false
	}
	// only a full 32-bit write overwrites the earlier value entirely
	if (next.op != "move.l" && next.op != "movea.l" && next.op != "moveq") || len(next.operands) != 2 {
		return nil, false
	}
	if next.operands[1] != dst {
		return nil, false
	}
	if operandReadsReg(next.operands[0], dst) {
		return nil, false
	}
	return splice(lines, i, 1), true
}

// 5. Narrow immediates.
func ruleNarrowImmediate(lines []line, i int) ([]line, bool) {
	l := lines[i]
	if len(l.operands) != 2 {
		return nil, false
	}
	imm, ok := immediateValue(l.operands[0])
	if !ok {
		return nil, false
	}
	dst := l.operands[1]
	if !isDataReg(dst) {
		return nil, false
	}
	switch l.op {
	case "add.l":
		if imm >= 1 && imm <= 8 {
			return replaceOp(lines, i, "addq.l", l.operands), true
		}
	case "sub.l":
		if imm >= 1 && imm <= 8 {
			return replaceOp(lines, i, "subq.l", l.operands), true
		}
	case "move.l":
		if imm >= -128 && imm <= 127 {
			return replaceOp(lines, i, "moveq", l.operands), true
		}
	}
	return nil, false
}

func replaceOp(lines []line, i int, op string, operands []string) []line {
	out := append([]line(nil), lines...)
	nl := out[i]
	nl.op = op
	nl.operands = operands
	out[i] = nl
	return out
}

// 6. Fold `moveq/move.l #N,dX; move.<sz> dX,<mem>` (at most one
// dX-preserving instruction between) into a direct immediate store; also
// folds `clr.<sz> dX; move.<sz> dX,<mem>` into `move.<sz> #0,<mem>`.
func ruleFoldMoveThenStore(lines []line, i int) ([]line, bool) {
	l := lines[i]
	var immText string
	var dx string
	switch {
	case (l.op == "moveq" || l.op == "move.l") && len(l.operands) == 2 && isImmediate(l.operands[0]) && isDataReg(l.operands[1]):
		immText = l.operands[0]
		dx = l.operands[1]
	case strings.HasPrefix(l.op, "clr.") && len(l.operands) == 1 && isDataReg(l.operands[0]):
		immText = "#0"
		dx = l.operands[0]
	default:
		return nil, false
	}

	for skip := 1; skip <= 2 && i+skip < len(lines); skip++ {
		mid := lines[i+skip]
		if skip == 2 {
			prev := lines[i+1]
			if prev.isLabel || prev.isBlank || prev.isOpaque || prev.isBranch() || modifiesReg(prev, dx) || operandsReadReg(prev, dx) {
				break
			}
		}
		if mid.isLabel || mid.isBlank || mid.isOpaque || mid.isBranch() {
			break
		}
		if isMoveLike(mid.op) && len(mid.operands) == 2 && mid.operands[0] == dx && strings.Contains(mid.operands[1], "(") {
			newLine := mid
			newLine.operands = []string{immText, mid.operands[1]}
			out := splice(lines, i, skip+1, newLine)
			return out, true
		}
		if modifiesReg(mid, dx) {
			break
		}
	}
	return nil, false
}

// 7. Eliminate `clr.l dN` when the following move overwrites dN entirely.
func ruleClrThenOverwrite(lines []line, i int) ([]line, bool) {
	l := lines[i]
	if l.op != "clr.l" || len(l.operands) != 1 {
		return nil, false
	}
	dst := l.operands[0]
	if i+1 >= len(lines) {
		return nil, false
	}
	next := lines[i+1]
	if (next.op == "move.l" || next.op == "movea.l") && len(next.operands) == 2 && next.operands[1] == dst {
		return splice(lines, i, 1), true
	}
	return nil, false
}

// 8. Move-chain forwarding.
func ruleMoveChainForward(lines []line, i int) ([]line, bool) {
	if i+1 >= len(lines) {
		return nil, false
	}
	a, b := lines[i], lines[i+1]
	if !isMoveLike(a.op) || a.op != b.op || len(a.operands) != 2 || len(b.operands) != 2 {
		return nil, false
	}
	if a.operands[1] != b.operands[0] {
		return nil, false
	}
	if b.operands[1] == a.operands[0] {
		return nil, false
	}
	nb := b
	nb.operands = []string{a.operands[0], b.operands[1]}
	return splice(lines, i+1, 1, nb), true
}

// 9. Eliminate redundant `cmp` with identical operands within the same
// basic block; resets on any label, branch, or modification of either
// operand.
func ruleRedundantCmp(lines []line, i int) ([]line, bool) {
	l := lines[i]
	if !strings.HasPrefix(l.op, "cmp") || len(l.operands) != 2 {
		return nil, false
	}
	for j := i + 1; j < len(lines); j++ {
		cur := lines[j]
		if cur.isLabel || cur.isBlank || cur.isOpaque {
			return nil, false
		}
		if cur.isBranch() && cur.op != "bsr" {
			// a conditional/unconditional branch ends the block for this
			// purpose, except a call (bsr) which doesn't affect flags
			// deterministically enough to assume CCR survives.
			return nil, false
		}
		if strings.HasPrefix(cur.op, "cmp") && len(cur.operands) == 2 &&
			cur.operands[0] == l.operands[0] && cur.operands[1] == l.operands[1] {
			return splice(lines, j, 1), true
		}
		if modifiesReg(cur, l.operands[0]) || modifiesReg(cur, l.operands[1]) {
			return nil, false
		}
	}
	return nil, false
}

// 10. Fold constant shifts.
func ruleConstantShiftFold(lines []line, i int) ([]line, bool) {
	if i+1 >= len(lines) {
		return nil, false
	}
	a, b := lines[i], lines[i+1]
	if (a.op != "moveq" && a.op != "move.l") || len(a.operands) != 2 {
		return nil, false
	}
	n, ok := immediateValue(a.operands[0])
	if !ok {
		return nil, false
	}
	if b.op != "lsl.l" || len(b.operands) != 2 || b.operands[1] != a.operands[1] {
		return nil, false
	}
	m, ok := immediateValue(b.operands[0])
	if !ok {
		return nil, false
	}
	folded := n << uint(m)
	op := "moveq"
	if folded < -128 || folded > 127 {
		op = "move.l"
	}
	nl := line{op: op, operands: []string{"#" + strconv.Itoa(folded), a.operands[1]}, hadIndent: true}
	return splice(lines, i, 2, nl), true
}

// 11. Collapse zero-offset indexed addressing: `(aN,0.l)` / `0(aN)` → `(aN)`.
var zeroOffsetPattern = regexp.MustCompile(`^(?:0\((a[0-7])\)|\((a[0-7]),0\.l\))$`)

func ruleZeroOffsetAddressing(lines []line, i int) ([]line, bool) {
	l := lines[i]
	if l.isLabel || l.isBlank || l.isOpaque {
		return nil, false
	}
	changed := false
	newOperands := make([]string, len(l.operands))
	for idx, op := range l.operands {
		if m := zeroOffsetPattern.FindStringSubmatch(op); m != nil {
			newOperands[idx] = "(" + m[1] + m[2] + ")"
			changed = true
		} else {
			newOperands[idx] = op
		}
	}
	if !changed {
		return nil, false
	}
	nl := l
	nl.operands = newOperands
	out := append([]line(nil), lines...)
	out[i] = nl
	return out, true
}

// 12. Branch-to-branch: `b<cc> L1; bra L2; L1:` → `b<inv(cc)> L2; L2... L1:`
// (the intervening `bra` is removed since the inverted branch now reaches
// L2 directly; L1: is left as a (possibly now-unreferenced) label for a
// later dead-label pass, conservatively not removed here).
func ruleBranchToBranch(lines []line, i int) ([]line, bool) {
	if i+2 >= len(lines) {
		return nil, false
	}
	a, b, c := lines[i], lines[i+1], lines[i+2]
	if !isConditionalBranch(a.op) || b.op != "bra" || !c.isLabel {
		return nil, false
	}
	if len(a.operands) != 1 || len(b.operands) != 1 {
		return nil, false
	}
	target := strings.TrimSuffix(strings.TrimSpace(c.raw), ":")
	if a.operands[0] != target {
		return nil, false
	}
	inv := invertBranch(a.op)
	if inv == "" {
		return nil, false
	}
	na := a
	na.op = inv
	na.operands = []string{b.operands[0]}
	return splice(lines, i, 2, na), true
}

var conditionalBranches = map[string]string{
	"beq": "bne", "bne": "beq",
	"blt": "bge", "bge": "blt",
	"ble": "bgt", "bgt": "ble",
	"bcs": "bcc", "bcc": "bcs",
	"blo": "bhs", "bhs": "blo",
	"bls": "bhi", "bhi": "bls",
}

func isConditionalBranch(op string) bool {
	_, ok := conditionalBranches[op]
	return ok
}

func invertBranch(op string) string { return conditionalBranches[op] }

// ---------------------------------------------------------------------
// shared operand helpers
// ---------------------------------------------------------------------

func isMoveLike(op string) bool {
	return op == "move.l" || op == "move.w" || op == "move.b" || op == "movea.l"
}

var bareRegPattern = regexp.MustCompile(`^[ad][0-7]$`)

func isBareReg(s string) bool { return bareRegPattern.MatchString(s) }
func isDataReg(s string) bool { return len(s) == 2 && s[0] == 'd' && s[1] >= '0' && s[1] <= '7' }

func isImmediate(s string) bool { return strings.HasPrefix(s, "#") }

func immediateValue(s string) (int, bool) {
	if !strings.HasPrefix(s, "#") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// operandReadsReg reports whether an operand text's addressing mode
// mentions reg at all (conservative: any substring match).
func operandReadsReg(operand, reg string) bool {
	return strings.Contains(operand, reg)
}

func operandsReadReg(l line, reg string) bool {
	for _, op := range l.operands {
		if operandReadsReg(op, reg) {
			return true
		}
	}
	return false
}

// modifiesReg reports whether instruction l writes to reg: jsr, bsr,
// movem, link, unlk, dbra and exg are assumed to modify every register;
// for any other instruction only its last operand counts as written, so
// side effects on other operands (such as an address register's
// post-increment) are not seen.
func modifiesReg(l line, reg string) bool {
	switch l.op {
	case "jsr", "bsr", "movem.l", "movem.w", "link", "unlk", "dbra", "exg":
		// multi-register or flow-affecting writes: assume everything is
		// clobbered.
		return true
	}
	if len(l.operands) == 0 {
		return false
	}
	dst := l.operands[len(l.operands)-1]
	return dst == reg
}
