package codec

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_KeyStringRoundTrip(t *testing.T) {
	c := NewDefaultCodec()
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("64-bit ids survive a round trip as strings", prop.ForAll(
		func(id int64) bool {
			data, err := c.Marshal(ActivityLogItem{ID: id})
			if err != nil {
				return false
			}
			if string(data) != `{"id":"`+strconv.FormatInt(id, 10)+`","partitionKey":""}` {
				return false
			}
			var out ActivityLogItem
			if err := c.Unmarshal(data, &out); err != nil {
				return false
			}
			return out.ID == id
		},
		gen.Int64(),
	))

	properties.Property("numeric ids in stored documents are accepted", prop.ForAll(
		func(id int) bool {
			var out NotificationMessage
			if err := c.Unmarshal([]byte(`{"id":`+strconv.Itoa(id)+`}`), &out); err != nil {
				return false
			}
			return out.ID == id
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}
