package document

import (
	"slices"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/google/uuid"
)

// Query is a SQL query text and its named parameters. The text is sent unchanged.
type Query struct {
	Text       string
	Parameters []Parameter
}

// Parameter is a named query parameter such as "@companyId".
type Parameter struct {
	Name  string
	Value any
}

func NewQuery(text string) Query {
	return Query{Text: text}
}

// WithParameter returns a copy of q with one more parameter.
func (q Query) WithParameter(name string, value any) Query {
	q.Parameters = append(slices.Clip(q.Parameters), Parameter{Name: name, Value: value})
	return q
}

func (q Query) sdkParameters() []azcosmos.QueryParameter {
	if len(q.Parameters) == 0 {
		return nil
	}
	params := make([]azcosmos.QueryParameter, len(q.Parameters))
	for i, p := range q.Parameters {
		params[i] = azcosmos.QueryParameter{Name: p.Name, Value: p.Value}
	}
	return params
}

// NewID returns a random identifier for a new document.
func NewID() string {
	return uuid.NewString()
}
