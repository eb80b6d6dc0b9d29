package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDictionary(t *testing.T) {
	d, err := ParseDictionary([]byte("version slink-1\n0 response identify_response offset=%u data=%*s\n1 command identify offset=%u count=%c\n4 command start\n"))
	require.NoError(t, err)
	assert.Equal(t, "slink-1", d.Version)
	require.Len(t, d.Messages, 3)

	m, ok := d.Lookup("start")
	require.True(t, ok)
	assert.Equal(t, Message{ID: 4, Name: "start"}, m)
	assert.Equal(t, "identify", d.Name(1))
	assert.Equal(t, "#9", d.Name(9))

	m, _ = d.Lookup("identify_response")
	assert.True(t, m.Response)
	assert.Equal(t, "offset=%u data=%*s", m.Format)
}

func TestParseDictionaryRejects(t *testing.T) {
	for name, text := range map[string]string{
		"no version": "0 command start\n",
		"bad id":     "version v\nx command start\n",
		"bad kind":   "version v\n0 event start\n",
		"short line": "version v\n0 command\n",
		"duplicate":  "version v\n0 command start\n1 command start\n",
	} {
		_, err := ParseDictionary([]byte(text))
		assert.Error(t, err, name)
	}
}
