package expr

import (
	"math"
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"

	"github.com/macropower/rulebook/pkg/catalog"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Strings(),
		ext.Lists(),

		// `semverAtLeast` reports whether a version is at least min.
		// Example: semverAtLeast(rule.version, "1.2.0").
		cel.Function("semverAtLeast",
			cel.Overload("semver_at_least", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(version, minVersion ref.Val) ref.Val {
					v, ok := version.(types.String)
					if !ok {
						return types.NewErr("semverAtLeast: invalid version value")
					}

					m, ok := minVersion.(types.String)
					if !ok {
						return types.NewErr("semverAtLeast: invalid min value")
					}

					if !catalog.ValidVersion(string(v)) {
						return types.False
					}

					return types.Bool(catalog.CompareVersions(string(v), string(m)) >= 0)
				}),
			),
		),

		// `semverCompare` returns -1, 0 or 1.
		// Example: semverCompare(rule.version, "2.0.0") < 0.
		cel.Function("semverCompare",
			cel.Overload("semver_compare", []*cel.Type{cel.StringType, cel.StringType}, cel.IntType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					as, ok := a.(types.String)
					if !ok {
						return types.NewErr("semverCompare: invalid version value")
					}

					bs, ok := b.(types.String)
					if !ok {
						return types.NewErr("semverCompare: invalid version value")
					}

					return types.Int(catalog.CompareVersions(string(as), string(bs)))
				}),
			),
		),

		// `hasTag` reports whether a rule carries a tag.
		// Example: hasTag(rule, "serverless").
		cel.Function("hasTag",
			cel.Overload("has_tag", []*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(rule, tag ref.Val) ref.Val {
					m, ok := rule.(traits.Mapper)
					if !ok {
						return types.NewErr("hasTag: invalid rule value")
					}

					tags, found := m.Find(types.String("tags"))
					if !found {
						return types.False
					}

					lister, ok := tags.(traits.Lister)
					if !ok {
						return types.False
					}

					return lister.Contains(tag)
				}),
			),
		),

		// `pathBase` returns the last element of the path.
		// Example: pathBase(rule.file) == "aws.md".
		cel.Function("pathBase",
			cel.Overload("path_base", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathBase: invalid string value")
					}

					return types.String(filepath.Base(pathValue))
				}),
			),
		),

		// `pathExt` returns the file extension of the path.
		// Example: pathExt(rule.file) == ".md".
		cel.Function("pathExt",
			cel.Overload("path_ext", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathExt: invalid string value")
					}

					return types.String(filepath.Ext(pathValue))
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// ConvertToCELValue converts a Go value to a CEL value.
// Handles JSON-like types and returns null for unsupported types.
//
//nolint:ireturn // Following CEL's function signature.
func ConvertToCELValue(value any) ref.Val {
	switch v := value.(type) {
	case nil:
		return types.NullValue

	case bool:
		return types.Bool(v)

	case int:
		return types.Int(v)

	case int64:
		return types.Int(v)

	case uint64:
		// Check for overflow when converting to int64.
		if v > math.MaxInt64 {
			return types.Double(float64(v))
		}

		return types.Int(int64(v))

	case float64:
		return types.Double(v)

	case string:
		return types.String(v)

	case []string:
		celValues := make([]ref.Val, len(v))
		for i, item := range v {
			celValues[i] = types.String(item)
		}

		return types.NewDynamicList(types.DefaultTypeAdapter, celValues)

	case []any:
		// Convert slice to CEL list.
		celValues := make([]ref.Val, len(v))
		for i, item := range v {
			celValues[i] = ConvertToCELValue(item)
		}

		return types.NewDynamicList(types.DefaultTypeAdapter, celValues)

	case map[string]any:
		// Convert string map to CEL map.
		celMap := make(map[ref.Val]ref.Val)
		for key, val := range v {
			celKey := types.String(key)
			celVal := ConvertToCELValue(val)
			celMap[celKey] = celVal
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, celMap)

	default:
		// For unsupported types, return null instead of erroring.
		return types.NullValue
	}
}
