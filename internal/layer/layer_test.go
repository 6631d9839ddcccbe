package layer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "Low", Label("l"))
	assert.Equal(t, "Medium", Label("m"))
	assert.Equal(t, "High", Label("h"))
	assert.Equal(t, "Unknown", Label("q"))
}

func TestIndexOf(t *testing.T) {
	layers := Standard()
	assert.Equal(t, 1, IndexOf(layers, "m"))
	assert.Equal(t, -1, IndexOf(layers, "x"))
	assert.Equal(t, -1, IndexOf(nil, "l"))
}

func TestDescriptorString(t *testing.T) {
	assert.Equal(t, "High (1280x720)", Standard()[2].String())
	assert.Equal(t, "Custom", Descriptor{RID: "c", Label: "Custom"}.String())
}

func TestSwitchKindJSON(t *testing.T) {
	data, err := json.Marshal(SwitchState{Kind: Pending, Token: "t1"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"kind":"pending","token":"t1"}`, string(data))

	var k SwitchKind
	assert.NoError(t, json.Unmarshal([]byte(`"failed"`), &k))
	assert.Equal(t, Failed, k)
}
