package backup

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaSource []byte

type schema struct {
	ctx    *cue.Context
	backup cue.Value
}

var loadSchema = sync.OnceValues(func() (*schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile backup schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Backup"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Backup: %w", err)
	}
	return &schema{ctx: ctx, backup: def}, nil
})

var schemaMu sync.Mutex

// checkSchema unifies the raw file with #Backup. Violations come back as a
// *FormatError listing each one.
func checkSchema(raw []byte) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}
	expr, err := cuejson.Extract("backup.json", raw)
	if err != nil {
		return &FormatError{Reason: "not valid JSON", Err: err}
	}

	// cue.Context is not safe for concurrent use.
	schemaMu.Lock()
	defer schemaMu.Unlock()

	unified := s.backup.Unify(s.ctx.BuildExpr(expr))
	if verr := unified.Validate(cue.Concrete(true)); verr != nil {
		return &FormatError{Reason: "does not match the backup schema", Err: errors.New(cueerrors.Details(verr, nil))}
	}
	return nil
}
