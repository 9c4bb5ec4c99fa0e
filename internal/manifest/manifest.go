// Package manifest compiles CUE reality-network manifests into constructs.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/starwell/coherence/internal/reality"
)

// schemaSource is unified with every user manifest. It bounds scores to
// [0, 1], requires positive node capacity, and closes the construct
// shape so misspelled fields fail compilation.
//
//go:embed schema.cue
var schemaSource string

// Load reads a manifest from path, which may be a single .cue file or a
// directory of them, and decodes the constructs it declares.
//
// Every returned construct has passed both schema unification and
// reality.Construct.Validate, so callers can hand them straight to the
// engine.
func Load(path string) ([]*reality.Construct, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &CompileError{Field: "manifest", Message: fmt.Sprintf("manifest not found: %s", path)}
	}
	if err != nil {
		return nil, &CompileError{Field: "manifest", Message: fmt.Sprintf("accessing manifest: %v", err)}
	}

	ctx := cuecontext.New()

	var value cue.Value
	if info.IsDir() {
		value, err = buildDir(ctx, path)
	} else {
		value, err = buildFile(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	return Decode(ctx, value)
}

// Compile decodes constructs from raw CUE source. Used by tests and by
// callers that already hold manifest bytes.
func Compile(data []byte, filename string) ([]*reality.Construct, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Decode(ctx, value)
}

// Decode unifies value against the embedded schema and extracts the
// declared constructs. Constraint violations surface as CompileErrors
// carrying the offending field path and position.
func Decode(ctx *cue.Context, value cue.Value) ([]*reality.Construct, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := value.Unify(schema)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	root := unified.LookupPath(cue.ParsePath("construct"))
	if !root.Exists() {
		return nil, &CompileError{Field: "construct", Message: "manifest declares no constructs"}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var constructs []*reality.Construct
	for iter.Next() {
		c, err := compileConstruct(iter.Value())
		if err != nil {
			return nil, err
		}
		constructs = append(constructs, c)
	}
	if len(constructs) == 0 {
		return nil, &CompileError{Field: "construct", Message: "manifest declares no constructs"}
	}

	// CUE field order is declaration order; sort so multi-file loads
	// decode the same way every time.
	sort.Slice(constructs, func(i, j int) bool { return constructs[i].ID < constructs[j].ID })

	return constructs, nil
}

// buildFile compiles a single .cue file.
func buildFile(ctx *cue.Context, path string) (cue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, &CompileError{Field: "manifest", Message: fmt.Sprintf("reading manifest: %v", err)}
	}
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// buildDir loads every .cue file under dir as one instance, so a
// network can be split across files that reference each other.
func buildDir(ctx *cue.Context, dir string) (cue.Value, error) {
	files, err := findCUEFiles(dir)
	if err != nil {
		return cue.Value{}, &CompileError{Field: "manifest", Message: fmt.Sprintf("scanning %s: %v", dir, err)}
	}
	if len(files) == 0 {
		return cue.Value{}, &CompileError{Field: "manifest", Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	// Name the files explicitly: manifests carry no package clause, so
	// loading the directory as a package would exclude them all.
	args := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(dir, f)
		if err != nil {
			rel = f
		}
		args[i] = rel
	}

	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &CompileError{Field: "manifest", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &CompileError{Field: "manifest", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
