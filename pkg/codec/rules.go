package codec

// Conversion selects how a property is rewritten between its Go and JSON forms.
type Conversion int

const (
	// ConvertNone keeps the default encoding.
	ConvertNone Conversion = iota
	// ConvertKeyString stores an integer field as a JSON string ("42").
	ConvertKeyString
	// ConvertJSONFragment stores a string field holding JSON text as embedded JSON.
	ConvertJSONFragment
)

// FieldRule customizes a single property, addressed by its JSON name.
type FieldRule struct {
	Ignore  bool
	Convert Conversion
}

// TypeRules groups the property rules of one Go type, matched by its unqualified type name.
type TypeRules struct {
	TypeName string
	Fields   map[string]FieldRule
	// OmitBlankStrings drops string properties that are empty or whitespace.
	OmitBlankStrings bool
}

var ignored = FieldRule{Ignore: true}

// DefaultRules returns the rules for the application record types stored in the
// default containers.
func DefaultRules() []TypeRules {
	return []TypeRules{
		{
			TypeName: "CallModel",
			Fields: map[string]FieldRule{
				"id":                    {Convert: ConvertKeyString},
				"availableActions":      ignored,
				"channels":              ignored,
				"chatChannelSid":        ignored,
				"lastModifiedTimestamp": ignored,
				"statuses":              ignored,
				"_ts":                   ignored,
			},
		},
		{
			TypeName:         "CallContactModel",
			OmitBlankStrings: true,
			Fields: map[string]FieldRule{
				"isProblemCustomer": ignored,
				"callId":            ignored,
			},
		},
		{
			TypeName: "ActivityLogItem",
			Fields: map[string]FieldRule{
				"id": {Convert: ConvertKeyString},
			},
		},
		{
			TypeName: "NotificationMessage",
			Fields: map[string]FieldRule{
				"id":   {Convert: ConvertKeyString},
				"json": {Convert: ConvertJSONFragment},
			},
		},
		{
			TypeName: "QuoteModel",
			Fields: map[string]FieldRule{
				"availableActions": ignored,
				"url":              ignored,
			},
		},
	}
}
