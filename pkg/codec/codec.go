// Package codec serializes documents exchanged with Cosmos DB.
//
// Property names follow camelCase unless a json tag names them, nil references are
// omitted on write, and per-type rules rename, ignore or convert individual properties.
package codec

import (
	jsoniter "github.com/json-iterator/go"
)

// Codec converts documents to and from their stored JSON form.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// CosmosCodec is the Codec used for every container.
type CosmosCodec struct {
	api jsoniter.API
}

// NewCosmosCodec builds a codec applying the given per-type rules.
// Rules registered later for the same type name replace earlier ones.
func NewCosmosCodec(rules ...TypeRules) *CosmosCodec {
	api := jsoniter.Config{
		EscapeHTML:             false,
		SortMapKeys:            false,
		ValidateJsonRawMessage: true,
	}.Froze()

	byType := make(map[string]TypeRules, len(rules))
	for _, r := range rules {
		byType[r.TypeName] = r
	}
	api.RegisterExtension(&ruleExtension{rules: byType})

	return &CosmosCodec{api: api}
}

// NewDefaultCodec returns a codec carrying DefaultRules.
func NewDefaultCodec() *CosmosCodec {
	return NewCosmosCodec(DefaultRules()...)
}

// Marshal encodes v as compact JSON.
func (c *CosmosCodec) Marshal(v any) ([]byte, error) {
	return c.api.Marshal(v)
}

// Unmarshal decodes data into v. Property names match case-insensitively.
func (c *CosmosCodec) Unmarshal(data []byte, v any) error {
	return c.api.Unmarshal(data, v)
}
