package transform

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/config"
)

func TestNormalizeReturnsObject(t *testing.T) {
	n, err := New(`
		function normalize(payload) {
			var obj = parseJSON(payload);
			obj.device = obj.dev;
			delete obj.dev;
			return obj;
		}
	`)
	require.NoError(t, err)

	out, err := n.Normalize([]byte(`{"dev": 3, "temp_c": 42.5}`))
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, 3.0, fields["device"])
	assert.Equal(t, 42.5, fields["temp_c"])
	assert.NotContains(t, fields, "dev")
}

func TestNormalizeReturnsString(t *testing.T) {
	n, err := New(`
		function normalize(payload) {
			return payload.replace("dev", "device");
		}
	`)
	require.NoError(t, err)

	out, err := n.Normalize([]byte(`{"dev": 1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"device": 1}`, string(out))
}

func TestNormalizeRuntimeErrorPropagates(t *testing.T) {
	n, err := New(`
		function normalize(payload) {
			throw new Error("boom");
		}
	`)
	require.NoError(t, err)

	_, err = n.Normalize([]byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize failed")
}

func TestMissingNormalizeFunction(t *testing.T) {
	_, err := New(`var x = 1;`)
	require.Error(t, err)
}

func TestNormalizeNotAFunction(t *testing.T) {
	_, err := New(`var normalize = 42;`)
	require.Error(t, err)
}

func TestFromConfigEmpty(t *testing.T) {
	n, err := FromConfig(config.TransformConfig{})
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestFromConfigScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normalize.js")
	script := `function normalize(payload) { return payload; }`
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	n, err := FromConfig(config.TransformConfig{ScriptPath: path})
	require.NoError(t, err)
	require.NotNil(t, n)

	out, err := n.Normalize([]byte(`{"device": 1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"device": 1}`, string(out))
}

func TestFromConfigMissingScriptFile(t *testing.T) {
	_, err := FromConfig(config.TransformConfig{ScriptPath: "/does/not/exist.js"})
	require.Error(t, err)
}
