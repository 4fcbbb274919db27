package transform

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/config"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
)

// Normalizer runs a JavaScript `normalize` function over raw payloads
// before the collector extracts measurement fields. Gateways with
// non-canonical payload shapes configure a script; everyone else runs
// without one.
type Normalizer struct {
	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// New compiles the script and resolves its `normalize` function
func New(scriptCode string) (*Normalizer, error) {
	vm := goja.New()

	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})

	_ = vm.Set("parseJSON", func(jsonStr string) interface{} {
		var data interface{}
		if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
			logger.Warn("parseJSON failed: %v", err)
			return nil
		}
		return data
	})

	if _, err := vm.RunString(scriptCode); err != nil {
		return nil, fmt.Errorf("failed to run script: %v", err)
	}

	fnValue := vm.Get("normalize")
	if fnValue == nil {
		return nil, fmt.Errorf("script does not define a 'normalize' function")
	}

	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, fmt.Errorf("'normalize' is not a function")
	}

	return &Normalizer{vm: vm, fn: fn}, nil
}

// FromConfig loads the configured script; returns nil when no script is
// configured
func FromConfig(cfg config.TransformConfig) (*Normalizer, error) {
	scriptCode := cfg.ScriptCode
	if scriptCode == "" && cfg.ScriptPath != "" {
		scriptBytes, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load script file %s: %v", cfg.ScriptPath, err)
		}
		scriptCode = string(scriptBytes)
	}
	if scriptCode == "" {
		return nil, nil
	}
	return New(scriptCode)
}

// Normalize rewrites one raw payload. The script receives the payload as a
// string and must return a JSON object or a string containing one.
func (n *Normalizer) Normalize(payload []byte) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	result, err := n.fn(goja.Undefined(), n.vm.ToValue(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("normalize failed: %v", err)
	}

	exported := result.Export()
	if s, ok := exported.(string); ok {
		return []byte(s), nil
	}

	normalized, err := json.Marshal(exported)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize normalize result: %v", err)
	}
	return normalized, nil
}
