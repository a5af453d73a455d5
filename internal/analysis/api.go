package analysis

import (
	_ "embed"
	"sync"

	"github.com/jward/mclens/internal/ast"
)

// APIFile is the path under which the bundled Toybox declarations are
// registered. Declarations from it are read-only.
const APIFile = "api.mir"

//go:embed api.mc
var apiSource string

var (
	apiOnce sync.Once
	apiAST  *ast.File
	apiErr  error
)

// apiFile parses the bundled declarations once. The resulting tree is
// shared by every program and never mutated.
func apiFile() (*ast.File, error) {
	apiOnce.Do(func() {
		apiAST, apiErr = ast.Parse(APIFile, apiSource)
	})
	return apiAST, apiErr
}
