package yaml

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

var errNilValue = errors.New("nil value")

// UpdateDocument rewrites the root mapping of the YAML document in data with
// the fields of v. Keys of v replace existing keys wholesale and keep their
// comments; keys only present in data are left alone. A document without a
// body (empty or comments only) gets v appended.
func UpdateDocument(data []byte, v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("update yaml: %w", errNilValue)
	}

	file, err := parser.ParseBytes(data, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if !hasBody(file) {
		b, err := Marshal(v)
		if err != nil {
			return nil, err
		}

		head := bytes.TrimRight(data, "\n")
		if len(head) == 0 {
			return b, nil
		}

		return append(append(head, '\n'), b...), nil
	}

	node, err := yaml.ValueToNode(v, DefaultEncoderOptions...)
	if err != nil {
		return nil, fmt.Errorf("convert value to node: %w", err)
	}

	err = NewPathBuilder().Root().Build().MergeFromNode(file, node)
	if err != nil {
		return nil, fmt.Errorf("update yaml: %w", err)
	}

	return []byte(file.String()), nil
}

func hasBody(file *ast.File) bool {
	if len(file.Docs) == 0 {
		return false
	}

	switch file.Docs[0].Body.(type) {
	case nil, *ast.CommentGroupNode:
		return false
	}

	return true
}
