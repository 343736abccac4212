// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package core

import "github.com/jetsetilly/cm3pipeline/logger"

// DecodeStateKind identifies which variant of DecodeState is populated. Go
// has no tagged union, so DecodeState carries every variant's fields and
// Kind says which of them are meaningful.
type DecodeStateKind int

const (
	// decode is idle, waiting for Execute to pull the next instruction and
	// for Fetch to have a word ready
	WaitingForFetchAndExecute DecodeStateKind = iota

	// decode has a fully classified instruction but it reads a register the
	// AGU still considers dirty (an in-flight load's destination); decode
	// must wait for that load to retire before it can let Execute see this
	// instruction
	AGUWaitingForData

	// decode resolved a branch whose target Fetch needs telling about
	// before Fetch reads any further down the old path
	NotifyFetchAboutBranch

	// decode has a result ready for Execute to collect
	ResultReady
)

// PipelineStepPack is the package Decode hands to Execute: the instruction
// itself, the address it was fetched from, an optional folded instruction
// (the result of "zero cost" IT folding where an IT following a narrow
// instruction is collapsed into its neighbour rather than spending a cycle
// on it), and the Brchstat classification decode computed for it.
type PipelineStepPack struct {
	Instruction        Instruction
	FoldedInstruction  *Instruction
	Address            uint32
	BranchKind         Brchstat
	BranchMispredicted bool
	Length             uint8
}

// FollowingInstructionAddress returns the address of the instruction
// immediately after this one in program order.
func (p PipelineStepPack) FollowingInstructionAddress() uint32 {
	return p.Address + uint32(p.Length)
}

// FoldedInstructionAddress returns the address of the folded instruction,
// if there is one.
func (p PipelineStepPack) FoldedInstructionAddress() uint32 {
	return p.Address + uint32(p.Instruction.Length)
}

// DecodeState is the current state of the Decode stage.
type DecodeState struct {
	Kind DecodeStateKind

	// AGUWaitingForData fields: the instruction already pulled from Fetch
	// and classified, parked until its source registers are clean
	Addr                 uint32
	Instr                Instruction
	FoldedInstr          *Instruction
	Length               uint8
	DirtyRegisters       RegisterBitmap
	PostponedAdvanceHead bool

	// NotifyFetchAboutBranch additionally needs:
	LRIsDirty bool

	// snapshot of xPSR taken when this instruction was decoded, carried
	// alongside the state so a later speculative-branch rollback can
	// restore it atomically
	Status xPSR

	// ResultReady field
	Value PipelineStepPack
}

// TriggerKind distinguishes the two ways Execute can prompt Decode to move
// its pipeline forward.
type TriggerKind int

const (
	// ignore whatever instruction is currently sitting in front of Decode
	// (it was on a mispredicted path, or the core is sleeping)
	IgnoreCurrent TriggerKind = iota

	// decode the instruction currently at the fetch head
	DecodeCurrent
)

// TriggerData is the input Execute supplies to Decode.Step.
type TriggerData struct {
	Kind TriggerKind

	// meaningful only for DecodeCurrent
	DirtyRegisters       RegisterBitmap
	Status               xPSR
	PostponedAdvanceHead bool
}

// DecodeFunction is the pluggable instruction decoder: a pure function from
// the halfword stream (plus the current xPSR, whose ITSTATE bits a handful
// of decode decisions depend on) to an Instruction. The core ships
// DefaultDecoder; a host can substitute its own without touching the
// pipeline state machine below.
type DecodeFunction func(firstHalfword uint32, secondHalfword func() (uint32, error), addr uint32, status xPSR) (Instruction, error)

// Decode is the Decode pipeline stage.
type Decode struct {
	fetch   *Fetch
	bank    *Bank
	decoder DecodeFunction
	log     *logger.Logger

	state DecodeState

	// prevInstructionWritesLR mirrors LR's dirty bit but is tracked
	// independently because the "writes LR" condition that Brchstat.
	// FromInstruction needs is about program order (did the immediately
	// preceding instruction write LR), not about whether LR's value has
	// actually retired yet.
	prevInstructionWritesLR bool

	// mulsBcondStall is set when the previously decoded instruction was a
	// MULS (T1 Multiply with SetFlagsDependsOnIT) and forces Decode to
	// spend one extra cycle before resolving a following conditional
	// branch, matching an undocumented hardware interaction carried
	// forward without a full explanation of its root cause.
	mulsBcondStall bool

	// blSetsWritesLR mirrors preferences.ARMPreferences.BLSetsWritesLR:
	// whether a BL immediate counts as "writes LR" for the following
	// instruction's bx_write_pc decode-time rule. BLX Rm always counts,
	// regardless of this toggle, since only BL's behaviour is in
	// question in the reference material.
	blSetsWritesLR bool
}

// NewDecode creates a Decode stage reading from fetch and using decoder to
// turn fetched words into Instructions.
func NewDecode(fetch *Fetch, bank *Bank, decoder DecodeFunction, blSetsWritesLR bool, log *logger.Logger) *Decode {
	return &Decode{
		fetch:          fetch,
		bank:           bank,
		decoder:        decoder,
		log:            log,
		state:          DecodeState{Kind: WaitingForFetchAndExecute},
		blSetsWritesLR: blSetsWritesLR,
	}
}

// IsReady reports whether Decode has a result Execute can collect.
func (d *Decode) IsReady() bool {
	return d.state.Kind == ResultReady
}

// IsAGUStalled reports whether Decode is parked waiting for a dirty
// register to clear.
func (d *Decode) IsAGUStalled() bool {
	return d.state.Kind == AGUWaitingForData
}

// Result returns the ready PipelineStepPack. Callers must check IsReady
// first.
func (d *Decode) Result() PipelineStepPack {
	return d.state.Value
}

// Consume marks the ready result as collected by Execute, returning Decode
// to its idle state.
func (d *Decode) Consume() {
	d.state = DecodeState{Kind: WaitingForFetchAndExecute}
}

// isInstrTainted reports whether the fetch head currently shows the
// "cursed" pattern: a narrow halfword at position 0 with IT-shaped bits at
// position 1. The bits at position 1 need not belong to a real IT -- stale
// prefetch contents that merely look like one are enough -- and whatever
// was decoded at position 0 is irrelevant; only the raw shadow bits
// matter. A tainted instruction must not be allowed to fold (pipeline)
// with its predecessor.
func (d *Decode) isInstrTainted() bool {
	pos0, err := d.fetch.PeekShadowHead(0)
	if err != nil {
		return false
	}
	pos1, err := d.fetch.PeekShadowHead(1)
	if err != nil {
		return false
	}
	return LooksLikeIT(pos1) && !IsLongInstruction(pos0)
}

// isConditionalBranchPattern reports whether a halfword looks like a 16 bit
// conditional branch (B<c> T1), the only shape the MULS flag-stall has been
// observed to delay.
func isConditionalBranchPattern(halfword uint32) bool {
	if halfword&0xf000 != 0xd000 {
		return false
	}
	cond := (halfword >> 8) & 0xf
	return cond < 0b1110
}

// Step advances Decode by one cycle given trigger from Execute.
func (d *Decode) Step(trigger TriggerData) error {
	if trigger.Kind == IgnoreCurrent {
		d.state = DecodeState{Kind: WaitingForFetchAndExecute}
		d.prevInstructionWritesLR = false
		d.mulsBcondStall = false
		return nil
	}

	// a parked instruction resumes from its saved state rather than
	// re-reading the fetch stream (the halfwords were already consumed
	// the cycle the stall began)
	if d.state.Kind == AGUWaitingForData {
		if trigger.DirtyRegisters&d.state.Instr.SourceRegisters() != 0 {
			return nil
		}
		instr := d.state.Instr
		addr := d.state.Addr
		folded := d.state.FoldedInstr
		d.finishDecode(addr, instr, folded, trigger)
		return nil
	}

	// the MULS/conditional-branch interaction: a flag-setting MULS makes
	// the APSR available one cycle later than a conditional branch
	// resolving at decode time would want, so the branch waits a cycle
	// before it is even decoded
	if d.mulsBcondStall {
		d.mulsBcondStall = false
		if head, err := d.fetch.PeekShadowHead(0); err == nil && isConditionalBranchPattern(head) {
			return nil
		}
	}

	addr := d.fetch.Head()

	first, err := d.fetch.ReadHalfword()
	if err != nil {
		return err
	}

	second := func() (uint32, error) { return d.fetch.ReadHalfword() }

	instr, err := d.decoder(first, second, addr, trigger.Status)
	if err != nil {
		return err
	}

	folded := d.tryFoldIT(instr, addr)

	if trigger.DirtyRegisters&instr.SourceRegisters() != 0 {
		d.state = DecodeState{
			Kind:                 AGUWaitingForData,
			Addr:                 addr,
			Instr:                instr,
			FoldedInstr:          folded,
			Length:               instr.Length,
			DirtyRegisters:       trigger.DirtyRegisters,
			PostponedAdvanceHead: trigger.PostponedAdvanceHead,
			Status:               trigger.Status,
		}
		return nil
	}

	d.finishDecode(addr, instr, folded, trigger)
	return nil
}

// finishDecode performs the branch phase: classify the instruction, tell
// Fetch about decode-time branches (redirecting speculatively for the
// conditional ones), update the program-order bookkeeping and publish the
// pack.
func (d *Decode) finishDecode(addr uint32, instr Instruction, folded *Instruction, trigger TriggerData) {
	branch := FromInstruction(instr, d.prevInstructionWritesLR, trigger.Status.InITBlock())

	// a return through LR whose value is an EXC_RETURN token cannot be
	// resolved here: recognising the token and unstacking belongs to the
	// exception collaborator, so the branch demotes to execute time
	if branch == DecodeTimeUnconditional && instr.Kind != KindBranchImmediate &&
		instr.Kind != KindBranchWithLinkImmediate && isExceptionReturn(d.bank.Get(LR)) {
		branch = ExecuteTimeUnconditional
	}

	pack := PipelineStepPack{
		Instruction: instr,
		Address:     addr,
		BranchKind:  branch,
		Length:      instr.Length,
	}

	if folded != nil {
		pack.FoldedInstruction = folded
		pack.Length += folded.Length
	}

	// AGU phase: compute and latch the effective address of the memory
	// path now, while the source registers are known clean, so Execute's
	// address phase reads the latch instead of the register file
	switch instr.Kind {
	case KindMemory:
		if instr.Multiple {
			base := d.bank.Get(int(instr.Rn))
			if instr.Decrement {
				base -= uint32(RegisterBitmap(instr.Imm).Count()) * 4
			}
			d.bank.LatchAGU(base)
		} else {
			var base uint32
			if instr.Literal {
				base = AlignTo32bits(addr + 4)
			} else {
				base = d.bank.Get(int(instr.Rn))
			}
			var offset uint32
			if instr.RegisterOffset {
				offset = d.bank.Get(int(instr.Rm)) << instr.ShiftAmount
			} else {
				offset = instr.Imm
			}
			offsetAddr := base + offset
			if !instr.Add {
				offsetAddr = base - offset
			}
			if instr.Index {
				d.bank.LatchAGU(offsetAddr)
			} else {
				d.bank.LatchAGU(base)
			}
		}
	case KindTableBranch:
		index := d.bank.Get(int(instr.Rm))
		if instr.Imm != 0 {
			index <<= 1
		}
		d.bank.LatchAGU(d.bank.Get(int(instr.Rn)) + index)
	}

	// branch phase: a decode-time branch redirects Fetch this cycle, so the
	// address stream follows the branch with no execute bubble
	switch {
	case branch.IsSpeculative():
		// the branch target is PC relative: the architectural PC is the
		// instruction's address plus four. the condition is evaluated
		// against the fast-forwarded xPSR; a failing condition marks the
		// pack mispredicted and leaves Fetch on the fall-through path.
		target := addr + 4 + instr.Imm
		if branch.EvaluateCondition(instr, trigger.Status) {
			d.fetch.Redirect(target, true)
		} else {
			pack.BranchMispredicted = true
		}

	case branch == DecodeTimeUnconditional:
		switch instr.Kind {
		case KindBranchImmediate, KindBranchWithLinkImmediate:
			d.fetch.Redirect(addr+4+instr.Imm, false)
		default:
			// BX LR / BLX LR / MOV PC, LR with a settled LR
			d.fetch.Redirect(d.bank.Get(LR)&^1, false)
		}
	}

	if instr.Kind == KindBranchWithLinkImmediate {
		d.prevInstructionWritesLR = instr.WritesLR && d.blSetsWritesLR
	} else {
		d.prevInstructionWritesLR = instr.WritesLR
	}
	d.mulsBcondStall = instr.SetFlagsDependsOnIT && instr.SetFlags

	d.state = DecodeState{
		Kind:   ResultReady,
		Value:  pack,
		Status: trigger.Status,
	}
}

// canFoldWithIT reports whether instr is eligible to have a following IT
// instruction folded into its pack: a single narrow halfword, not an LSU
// access, not a branch, not CPS, not a write to SP, and not a compare whose
// Rn is SP.
func canFoldWithIT(instr Instruction) bool {
	if instr.Length != 2 {
		return false
	}
	switch instr.Kind {
	case KindALU, KindMultiply:
		// fall through to the SP checks below
	default:
		return false
	}
	if instr.Kind == KindALU {
		if int(instr.Rd) == PC {
			return false
		}
		if int(instr.Rd) == SP && !instr.Compare {
			return false
		}
		if instr.Compare && int(instr.Rn) == SP {
			return false
		}
	}
	return true
}

// tryFoldIT looks one halfword past the just-decoded main instruction and,
// if it is eligible to fold and that halfword decodes to a live IT, returns
// it and consumes it from Fetch -- the "zero cost" pipelining the GLOSSARY's
// "Folded IT" entry describes. The candidate is decoded against an empty
// xPSR rather than the pre-main value: IT decoding depends only on its own
// encoded bits, and by the time the fold takes effect the main instruction
// (the last of any block in progress) has already consumed its ITSTATE
// slot, so the pre-main ITSTATE must not make the fold look like an IT
// inside an IT block.
func (d *Decode) tryFoldIT(instr Instruction, addr uint32) *Instruction {
	if !canFoldWithIT(instr) {
		return nil
	}

	shadow, err := d.fetch.PeekShadowHead(0)
	if err != nil {
		return nil
	}
	if !LooksLikeIT(shadow) {
		return nil
	}

	// the IT curse: when the slot past the candidate also shows IT-shaped
	// bits the candidate is tainted and cannot pipeline, even though it
	// would otherwise fold
	if d.isInstrTainted() {
		d.log.Logf(logger.Allow, "decode", "tainted IT pattern at %08x: fold suppressed", addr)
		return nil
	}

	folded, err := d.decoder(shadow, func() (uint32, error) { return 0, nil }, 0, xPSR{})
	if err != nil || folded.Kind != KindIT {
		return nil
	}

	if _, err := d.fetch.ReadHalfword(); err != nil {
		return nil
	}

	return &folded
}
