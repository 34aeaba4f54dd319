// Command migfix renumbers conflicting Django migrations after a merge.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/Mschirtzinger/migfix/internal/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeLog()

	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitError ends the process with a code and no message; the output
// explaining it has already been written.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitCode reports err and returns the process exit code for it.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code == 0 {
			return 1
		}
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
	return 1
}
