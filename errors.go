package assetgen

import (
	"os"

	"github.com/rotisserie/eris"
)

var (
	ErrUnknownTask     = eris.New("unknown task")
	ErrDependencyCycle = eris.New("dependency cycle")
)

// panicOrError lets a failing pipeline blow up with a full stack trace
// instead of returning, which helps when debugging a stage.
func panicOrError(err error) error {
	if err != nil {
		if os.Getenv("PANIC_ON_ALL_ERRORS") == "true" || os.Getenv("ASSETGEN_PANIC_ON_ERRORS") == "true" {
			panic(err)
		}
	}
	return err
}
