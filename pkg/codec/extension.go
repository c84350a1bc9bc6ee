package codec

import (
	"fmt"
	"reflect"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
)

const tagKey = "json"

// ruleExtension rewrites struct bindings before jsoniter builds its encoders.
type ruleExtension struct {
	jsoniter.DummyExtension
	rules map[string]TypeRules
}

func (e *ruleExtension) UpdateStructDescriptor(desc *jsoniter.StructDescriptor) {
	rules, hasRules := e.rules[desc.Type.Type1().Name()]

	for _, binding := range desc.Fields {
		// unexported or otherwise hidden
		if len(binding.ToNames) == 0 && len(binding.FromNames) == 0 {
			continue
		}

		name := propertyName(binding.Field)
		binding.ToNames = []string{name}
		binding.FromNames = []string{name}

		fieldType := binding.Field.Type()
		kind := fieldType.Kind()
		if isNullable(kind) {
			binding.Encoder = &nilOmittingEncoder{ValEncoder: binding.Encoder, typ: fieldType}
			binding.Field = withOmitEmpty(binding.Field)
		}

		if !hasRules {
			continue
		}

		if rules.OmitBlankStrings && kind == reflect.String {
			binding.Encoder = &blankStringEncoder{ValEncoder: binding.Encoder}
			binding.Field = withOmitEmpty(binding.Field)
		}

		rule, ok := rules.lookup(name)
		if !ok {
			continue
		}
		if rule.Ignore {
			binding.ToNames = []string{}
			binding.FromNames = []string{}
			continue
		}

		switch rule.Convert {
		case ConvertKeyString:
			if isSignedInteger(kind) {
				c := keyStringCodec{kind: kind}
				binding.Encoder = c
				binding.Decoder = c
			}
		case ConvertJSONFragment:
			if kind == reflect.String {
				binding.Encoder = fragmentCodec{}
				binding.Decoder = fragmentCodec{}
			}
		}
	}
}

// lookup finds the rule for a property name, ignoring case as decoding does.
func (r TypeRules) lookup(name string) (FieldRule, bool) {
	if rule, ok := r.Fields[name]; ok {
		return rule, true
	}
	for key, rule := range r.Fields {
		if strings.EqualFold(key, name) {
			return rule, true
		}
	}
	return FieldRule{}, false
}

func propertyName(field reflect2.StructField) string {
	tag := field.Tag().Get(tagKey)
	if name := strings.Split(tag, ",")[0]; name != "" {
		return name
	}
	return CamelCase(field.Name())
}

func isNullable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	default:
		return false
	}
}

func isSignedInteger(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

// taggedField overrides the struct tag jsoniter reads when it applies omitempty.
type taggedField struct {
	reflect2.StructField
	tag reflect.StructTag
}

func (f taggedField) Tag() reflect.StructTag {
	return f.tag
}

func withOmitEmpty(field reflect2.StructField) reflect2.StructField {
	value := field.Tag().Get(tagKey)
	parts := strings.Split(value, ",")
	for _, part := range parts[1:] {
		if part == "omitempty" {
			return field
		}
	}
	return taggedField{
		StructField: field,
		tag:         reflect.StructTag(fmt.Sprintf("%s:%q", tagKey, value+",omitempty")),
	}
}
