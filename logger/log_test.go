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

package logger_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jetsetilly/cm3pipeline/errors"
	"github.com/jetsetilly/cm3pipeline/logger"
	"github.com/jetsetilly/cm3pipeline/test"
)

// the tags and messages below mirror the pipeline's real call sites: the
// LSU's misalignment notices, the decoder's tainted-IT diagnostic and the
// core's sleep transition.

func TestPipelineDiagnostics(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	test.ExpectEquality(t, w.String(), "")

	log.Logf(logger.Allow, "lsu", "misaligned %s: %08x (PC: %08x)", "LDRH", uint32(0x20000001), uint32(0x104))
	log.Write(w)
	test.ExpectEquality(t, w.String(), "lsu: misaligned LDRH: 20000001 (PC: 00000104)\n")

	w.Reset()

	log.Logf(logger.Allow, "decode", "tainted IT pattern at %08x: fold suppressed", uint32(0x1f8))
	log.Write(w)
	test.ExpectEquality(t, w.String(),
		"lsu: misaligned LDRH: 20000001 (PC: 00000104)\ndecode: tainted IT pattern at 000001f8: fold suppressed\n")

	// Tail() with a budget larger than the log is everything
	w.Reset()
	log.Tail(w, 100)
	test.ExpectEquality(t, w.String(),
		"lsu: misaligned LDRH: 20000001 (PC: 00000104)\ndecode: tainted IT pattern at 000001f8: fold suppressed\n")

	// a budget of one is just the most recent diagnostic
	w.Reset()
	log.Tail(w, 1)
	test.ExpectEquality(t, w.String(), "decode: tainted IT pattern at 000001f8: fold suppressed\n")

	// and a budget of zero is silence
	w.Reset()
	log.Tail(w, 0)
	test.ExpectEquality(t, w.String(), "")
}

// a misaligned access inside a tight loop logs on every iteration; the ring
// buffer must drop the oldest notices, not the newest
func TestRingBufferDiscardsOldest(t *testing.T) {
	log := logger.NewLogger(4)
	w := &strings.Builder{}

	for i := 0; i < 10; i++ {
		log.Logf(logger.Allow, "lsu", "misaligned STRH: %08x", uint32(0x20000001+i*4))
	}

	log.Write(w)
	test.ExpectEquality(t, w.String(),
		"lsu: misaligned STRH: 20000019\nlsu: misaligned STRH: 2000001d\nlsu: misaligned STRH: 20000021\nlsu: misaligned STRH: 20000025\n")
}

// cycleDebug is the shape of permission a host attaches when it only wants
// pipeline diagnostics while a cycle-debug session is live
type cycleDebug struct {
	live bool
}

func (p cycleDebug) AllowLogging() bool {
	return p.live
}

func TestPermissionGate(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	var p cycleDebug

	// gate closed: the tainted-IT diagnostic is dropped entirely
	log.Logf(p, "decode", "tainted IT pattern at %08x: fold suppressed", uint32(0x200))
	log.Write(w)
	test.ExpectEquality(t, w.String(), "")

	// gate open: it lands
	p.live = true
	log.Logf(p, "decode", "tainted IT pattern at %08x: fold suppressed", uint32(0x200))
	log.Write(w)
	test.ExpectEquality(t, w.String(), "decode: tainted IT pattern at 00000200: fold suppressed\n")
}

// Log() renders a curated error through its Error() result, so a bus fault
// recorded against the log reads the same as it would from the fault path
func TestCuratedErrorLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	err := errors.Errorf(errors.UsageFaultCandidate, "LDRH", uint32(0x104))

	log.Log(logger.Allow, "lsu", err)
	log.Write(w)
	test.ExpectEquality(t, w.String(), fmt.Sprintf("lsu: %s\n", err.Error()))
}

// Log() renders Stringer values through String()
type flavorSetting int

func (f flavorSetting) String() string {
	if f == 0 {
		return "multiplier flavour: slow (Cortex-M3)"
	}
	return "multiplier flavour: fast (Cortex-M4)"
}

func TestStringerLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "core", flavorSetting(0))
	log.Write(w)
	test.ExpectEquality(t, w.String(), "core: multiplier flavour: slow (Cortex-M3)\n")
}

// anything else falls back to the fmt package's %v verb
func TestFallbackFormatting(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "core", 256)
	log.Write(w)
	test.ExpectEquality(t, w.String(), "core: 256\n")
}
