//go:build debugger

package debugonly

import (
	"fmt"
	"os"
)

// BreakHere is a breakpoint target; set a breakpoint on its body in a debugger build.
func BreakHere() {
	_ = 0
}

// Enabled reports whether the debugger build tag is active.
func Enabled() bool { return true }

// DumpTrace writes the trace chain of a finished run to stderr.
func DumpTrace(lines []string) {
	fmt.Fprintln(os.Stderr, "---- flow trace ----")
	for _, l := range lines {
		fmt.Fprintln(os.Stderr, l)
	}
}
