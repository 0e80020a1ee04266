// Package buildlang decodes the rule catalog Bazel serves through
// `bazel info build-language`: every rule the server knows, with its
// attribute schema and documentation. Editors use it to complete rule
// names outside string literals.
package buildlang

import (
	"fmt"
	"sort"
	"strings"

	buildpb "github.com/bazelbuild/buildtools/build_proto"
	"google.golang.org/protobuf/proto"
)

// Rule is one buildable rule kind, such as cc_library.
type Rule struct {
	Name          string
	Documentation string
	Attributes    []Attribute
}

// Attribute is one attribute a rule accepts.
type Attribute struct {
	Name          string
	Type          string
	Documentation string
	Mandatory     bool
}

// Decode parses the binary BuildLanguage proto. Rules come back sorted
// by name so completion output is stable.
func Decode(data []byte) ([]Rule, error) {
	var lang buildpb.BuildLanguage
	if err := proto.Unmarshal(data, &lang); err != nil {
		return nil, fmt.Errorf("decode build language: %w", err)
	}
	rules := make([]Rule, 0, len(lang.GetRule()))
	for _, r := range lang.GetRule() {
		rule := Rule{
			Name:          r.GetName(),
			Documentation: r.GetDocumentation(),
		}
		for _, a := range r.GetAttribute() {
			rule.Attributes = append(rule.Attributes, Attribute{
				Name:          a.GetName(),
				Type:          typeString(a.GetType()),
				Documentation: a.GetDocumentation(),
				Mandatory:     a.GetMandatory(),
			})
		}
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules, nil
}

// Signature renders a call skeleton listing the mandatory attributes,
// with "..." standing in for the optional ones.
func (r Rule) Signature() string {
	var params []string
	for _, a := range r.Attributes {
		if a.Mandatory {
			params = append(params, a.Name)
		}
	}
	if len(params) < len(r.Attributes) {
		params = append(params, "...")
	}
	return r.Name + "(" + strings.Join(params, ", ") + ")"
}

// attributeTypes maps attribute discriminators to the Starlark type
// annotations editors show.
var attributeTypes = map[buildpb.Attribute_Discriminator]string{
	buildpb.Attribute_INTEGER:                 "int",
	buildpb.Attribute_STRING:                  "str",
	buildpb.Attribute_LABEL:                   "Label",
	buildpb.Attribute_OUTPUT:                  "str",
	buildpb.Attribute_STRING_LIST:             "list[str]",
	buildpb.Attribute_LABEL_LIST:              "list[Label]",
	buildpb.Attribute_OUTPUT_LIST:             "list[str]",
	buildpb.Attribute_DISTRIBUTION_SET:        "list[str]",
	buildpb.Attribute_LICENSE:                 "License",
	buildpb.Attribute_STRING_DICT:             "dict[str, str]",
	buildpb.Attribute_FILESET_ENTRY_LIST:      "list[FilesetEntry]",
	buildpb.Attribute_LABEL_LIST_DICT:         "dict[str, list[Label]]",
	buildpb.Attribute_STRING_LIST_DICT:        "dict[str, list[str]]",
	buildpb.Attribute_BOOLEAN:                 "bool",
	buildpb.Attribute_TRISTATE:                "int",
	buildpb.Attribute_INTEGER_LIST:            "list[int]",
	buildpb.Attribute_LABEL_DICT_UNARY:        "dict[str, Label]",
	buildpb.Attribute_SELECTOR_LIST:           "select",
	buildpb.Attribute_LABEL_KEYED_STRING_DICT: "dict[Label, str]",
}

func typeString(t buildpb.Attribute_Discriminator) string {
	if s, ok := attributeTypes[t]; ok {
		return s
	}
	return "unknown"
}
