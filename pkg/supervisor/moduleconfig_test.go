package supervisor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeEscapesEmbeddedQuotes(t *testing.T) {
	specs := map[Section][]ModuleSpec{
		SectionApplications: {
			{ClassPath: "ride.rided.RideD", Name: "rided", Kwargs: map[string]interface{}{
				"addresses": []string{"224.0.1.100"},
			}},
		},
	}

	out, err := Serialize(specs)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(out, "'"))
	require.True(t, strings.HasSuffix(out, "'"))
	assert.Contains(t, out, `\"class\"`)

	// Strip the wrapping quotes and unescape to confirm the payload
	// round-trips as valid JSON, the way a shell would hand it back to
	// the subprocess.
	inner := out[1 : len(out)-1]
	unescaped := strings.ReplaceAll(inner, `\"`, `"`)
	var doc map[string]map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(unescaped), &doc))
	assert.Equal(t, "ride.rided.RideD", doc["applications"]["rided"]["class"])
}

func TestSerializeIncludesAllFourSections(t *testing.T) {
	out, err := Serialize(map[Section][]ModuleSpec{})
	require.NoError(t, err)
	inner := strings.ReplaceAll(out[1:len(out)-1], `\"`, `"`)
	var doc map[string]map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(inner), &doc))
	for _, section := range []string{"applications", "sensors", "event-sinks", "networks"} {
		_, ok := doc[section]
		assert.True(t, ok, "missing section %q", section)
	}
}
