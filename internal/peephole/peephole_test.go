package peephole

import (
	"reflect"
	"strings"
	"testing"
)

func optimize(lines ...string) []string {
	return Optimize(lines)
}

func joined(lines []string) string { return strings.Join(lines, "\n") }

func TestMoveSelfEliminated(t *testing.T) {
	out := optimize("    move.l d0,d0", "    move.l d1,d2")
	if len(out) != 1 || !strings.Contains(out[0], "d1,d2") {
		t.Errorf("out = %v", out)
	}
}

func TestMoveBackAndForthEliminated(t *testing.T) {
	out := optimize("    move.l d0,-4(a4)", "    move.l -4(a4),d0")
	if len(out) != 1 {
		t.Fatalf("out = %v, want just the store", out)
	}
	if !strings.Contains(out[0], "move.l d0,-4(a4)") {
		t.Errorf("out = %v", out)
	}
}

func TestDupLeaDropped(t *testing.T) {
	out := optimize("    lea table,a0", "    lea table,a0")
	if len(out) != 1 {
		t.Errorf("out = %v", out)
	}
}

func TestDeadStoreRemoved(t *testing.T) {
	out := optimize("    move.l #1,d3", "    move.l #2,d3")
	// the first store is dead; the second may then narrow to moveq
	if len(out) != 1 {
		t.Fatalf("out = %v, want one line", out)
	}
	if !strings.Contains(out[0], "#2,d3") {
		t.Errorf("out = %v", out)
	}
}

func TestDeadStoreKeptWhenRead(t *testing.T) {
	out := optimize("    move.l #1,d3", "    move.l d3,d4")
	if len(out) != 2 {
		t.Errorf("store wrongly removed: %v", out)
	}
}

func TestDeadStoreNeverTouchesMemory(t *testing.T) {
	in := []string{"    move.l d0,-(sp)", "    move.l d1,-(sp)"}
	out := optimize(in...)
	if len(out) != 2 {
		t.Errorf("memory store removed: %v", out)
	}
}

func TestNarrowAddToAddq(t *testing.T) {
	out := optimize("    add.l #4,d0")
	if !strings.Contains(out[0], "addq.l #4,d0") {
		t.Errorf("out = %v", out)
	}
}

func TestNarrowSubToSubq(t *testing.T) {
	out := optimize("    sub.l #8,d2")
	if !strings.Contains(out[0], "subq.l #8,d2") {
		t.Errorf("out = %v", out)
	}
}

func TestNarrowKeepsLargeImmediates(t *testing.T) {
	out := optimize("    add.l #9,d0")
	if !strings.Contains(out[0], "add.l #9,d0") {
		t.Errorf("out = %v", out)
	}
}

func TestNarrowMoveToMoveq(t *testing.T) {
	out := optimize("    move.l #42,d0")
	if !strings.Contains(out[0], "moveq #42,d0") {
		t.Errorf("out = %v", out)
	}
	out = optimize("    move.l #-128,d0")
	if !strings.Contains(out[0], "moveq #-128,d0") {
		t.Errorf("out = %v", out)
	}
	out = optimize("    move.l #128,d0")
	if !strings.Contains(out[0], "move.l #128,d0") {
		t.Errorf("128 must not narrow: %v", out)
	}
}

func TestNarrowOnlyDataRegisters(t *testing.T) {
	out := optimize("    add.l #4,a0", "    add.l #4,sp")
	if !strings.Contains(out[0], "add.l #4,a0") || !strings.Contains(out[1], "add.l #4,sp") {
		t.Errorf("address-register adds must not narrow (CCR): %v", out)
	}
}

func TestFoldMoveThenStore(t *testing.T) {
	out := optimize("    moveq #5,d0", "    move.l d0,-4(a4)")
	if len(out) != 1 || !strings.Contains(out[0], "move.l #5,-4(a4)") {
		t.Errorf("out = %v", out)
	}
}

func TestFoldClrThenStore(t *testing.T) {
	out := optimize("    clr.w d1", "    move.w d1,-6(a4)")
	if len(out) != 1 || !strings.Contains(out[0], "move.w #0,-6(a4)") {
		t.Errorf("out = %v", out)
	}
}

func TestFoldBlockedByIntermediateWrite(t *testing.T) {
	in := []string{"    moveq #5,d0", "    moveq #6,d0", "    move.l d0,-4(a4)"}
	out := optimize(in...)
	// the dead first moveq goes away, but the fold must use #6
	if strings.Contains(joined(out), "#5,-4(a4)") {
		t.Errorf("folded a stale value: %v", out)
	}
}

func TestClrThenOverwriteEliminated(t *testing.T) {
	out := optimize("    clr.l d2", "    move.l -4(a4),d2")
	if len(out) != 1 || !strings.Contains(out[0], "move.l -4(a4),d2") {
		t.Errorf("out = %v", out)
	}
}

func TestMoveChainForwarding(t *testing.T) {
	out := optimize("    move.l d1,d2", "    move.l d2,d3")
	if len(out) != 2 {
		t.Fatalf("out = %v", out)
	}
	if !strings.Contains(out[1], "move.l d1,d3") {
		t.Errorf("chain not forwarded: %v", out)
	}
}

func TestRedundantCmpEliminated(t *testing.T) {
	out := optimize("    cmp.l d1,d0", "    sne d2", "    cmp.l d1,d0", "    beq done")
	cmps := 0
	for _, l := range out {
		if strings.Contains(l, "cmp.l") {
			cmps++
		}
	}
	if cmps != 1 {
		t.Errorf("cmp count = %d, want 1: %v", cmps, out)
	}
}

func TestRedundantCmpResetAcrossLabel(t *testing.T) {
	in := []string{"    cmp.l d1,d0", "loop:", "    cmp.l d1,d0", "    beq out"}
	out := optimize(in...)
	cmps := 0
	for _, l := range out {
		if strings.Contains(l, "cmp.l") {
			cmps++
		}
	}
	if cmps != 2 {
		t.Errorf("cmp across a label must survive: %v", out)
	}
}

func TestConstantShiftFolding(t *testing.T) {
	out := optimize("    moveq #3,d0", "    lsl.l #4,d0")
	if len(out) != 1 || !strings.Contains(out[0], "moveq #48,d0") {
		t.Errorf("out = %v", out)
	}
}

func TestConstantShiftFoldingWide(t *testing.T) {
	out := optimize("    moveq #100,d0", "    lsl.l #8,d0")
	if len(out) != 1 || !strings.Contains(out[0], "move.l #25600,d0") {
		t.Errorf("out = %v", out)
	}
}

func TestZeroOffsetCollapsed(t *testing.T) {
	out := optimize("    move.l 0(a3),d0")
	if !strings.Contains(out[0], "move.l (a3),d0") {
		t.Errorf("out = %v", out)
	}
}

func TestBranchToBranchInverted(t *testing.T) {
	in := []string{"    beq skip", "    bra target", "skip:"}
	out := optimize(in...)
	if !strings.Contains(joined(out), "bne target") {
		t.Errorf("branch not inverted: %v", out)
	}
	if strings.Contains(joined(out), "bra target") {
		t.Errorf("bra survived: %v", out)
	}
}

func TestBranchToBranchUnsigned(t *testing.T) {
	in := []string{"    blo skip", "    bra target", "skip:"}
	out := optimize(in...)
	if !strings.Contains(joined(out), "bhs target") {
		t.Errorf("blo not inverted to bhs: %v", out)
	}
}

func TestDirectivesUntouched(t *testing.T) {
	in := []string{
		"\tSECTION\tD,data",
		"arr:",
		"    dc.w\t1,2,3,4",
		"buf:",
		"    ds.b\t64",
		"Sprite_x\tequ\tSprite+0",
	}
	out := optimize(in...)
	if !reflect.DeepEqual(out, in) {
		t.Errorf("directives rewritten:\nin  %v\nout %v", in, out)
	}
}

func TestCommentsPreserved(t *testing.T) {
	out := optimize("    move.l #3,d0  ; answer seed")
	if !strings.Contains(out[0], "; answer seed") {
		t.Errorf("comment lost: %v", out)
	}
	if !strings.Contains(out[0], "moveq #3,d0") {
		t.Errorf("rewrite skipped: %v", out)
	}
}

func TestIdempotence(t *testing.T) {
	in := []string{
		"f:",
		"    link a6,#-8",
		"    move.l #1,d0",
		"    move.l d0,-4(a6)",
		"    move.l -4(a6),d0",
		"    add.l #2,d0",
		"    beq skip",
		"    bra end",
		"skip:",
		"    clr.l d1",
		"    move.l d0,d1",
		"end:",
		"    unlk a6",
		"    rts",
	}
	once := Optimize(in)
	twice := Optimize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("not idempotent:\nonce  %v\ntwice %v", once, twice)
	}
}

func TestNeverLengthens(t *testing.T) {
	in := []string{
		"    move.l d0,d0",
		"    move.l #5,d3",
		"    move.l d3,-2(a4)",
		"    lea buf,a0",
		"    lea buf,a0",
		"    add.l #3,d1",
	}
	out := Optimize(in)
	if len(out) > len(in) {
		t.Errorf("optimizer lengthened the program: %d -> %d", len(in), len(out))
	}
}
