// Command schemagen writes the JSON schemas of the rulebook file kinds.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"

	"github.com/macropower/rulebook/api/v1beta1/configs"
	"github.com/macropower/rulebook/api/v1beta1/workspaces"
	"github.com/macropower/rulebook/pkg/yaml"
)

var (
	kind    = flag.String("kind", "config", "Kind to generate: config, state or registry")
	outFile = flag.String("o", "schema.json", "Output file for the generated schema")

	errUnknownKind = errors.New("unknown kind")
	errNoModule    = errors.New("go.mod not found")
)

func object(kind string) (any, error) {
	switch kind {
	case "config":
		return configs.New(), nil
	case "state":
		return workspaces.NewState(), nil
	case "registry":
		return workspaces.NewRegistry(), nil
	}

	return nil, fmt.Errorf("%w: %q", errUnknownKind, kind)
}

// moduleRoot walks up from dir to the directory holding go.mod and returns
// it together with the module path.
func moduleRoot(dir string) (string, string, error) {
	for {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod")) //nolint:gosec // G304: Fixed file name.
		if err == nil {
			return dir, modfile.ModulePath(data), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", errNoModule
		}

		dir = parent
	}
}

func main() {
	flag.Parse()

	v, err := object(*kind)
	if err != nil {
		log.Fatal(err)
	}

	out, err := filepath.Abs(*outFile)
	if err != nil {
		log.Fatalf("resolve output: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("get working directory: %v", err)
	}

	root, module, err := moduleRoot(wd)
	if err != nil {
		log.Fatal(err)
	}

	// Comments are read relative to the module root, and api/v1beta1
	// holds every package the kinds are built from.
	err = os.Chdir(root)
	if err != nil {
		log.Fatalf("change directory: %v", err)
	}

	gen := yaml.NewSchemaGenerator(v,
		yaml.WithGoComments(module, module+"/api/v1beta1"),
	)

	jsData, err := gen.Generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(out, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
