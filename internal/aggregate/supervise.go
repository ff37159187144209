package aggregate

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Supervise is the single error boundary around a whole run. Any error or
// panic escaping fn is logged, printed to out, and turned into exit code 1.
func Supervise(log *zap.Logger, out io.Writer, fn func() (int, error)) (code int) {
	if log == nil {
		log = zap.NewNop()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("run_panic", zap.Any("panic", r), zap.Stack("stack"))
			fmt.Fprintf(out, "✖ health check aborted: unexpected failure: %v\n", r)
			code = 1
		}
	}()

	code, err := fn()
	if err != nil {
		log.Error("run_failed", zap.Error(err))
		fmt.Fprintf(out, "✖ health check aborted: %v\n", err)
		return 1
	}
	return code
}
