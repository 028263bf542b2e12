package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"txbridge/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Descriptor is a contract's parsed interface plus optional deployment
// bytecode. Immutable once loaded.
type Descriptor struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// Deployable reports whether the descriptor carries bytecode.
func (d *Descriptor) Deployable() bool {
	return len(d.Bytecode) > 0
}

// Registry loads contract descriptors from a directory of JSON documents,
// one per contract, named <contract>.json with an "abi" array and an
// optional "bytecode" hex string.
type Registry struct {
	dir string

	mu     sync.RWMutex
	loaded map[string]*Descriptor
}

func NewRegistry(dir string) (*Registry, error) {
	if dir == "" {
		return nil, errors.New("contracts dir is required")
	}
	return &Registry{
		dir:    dir,
		loaded: make(map[string]*Descriptor),
	}, nil
}

type descriptorFile struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"`
}

// Load returns the descriptor for a contract name, reading and parsing it
// on first use.
func (r *Registry) Load(name string) (*Descriptor, error) {
	r.mu.RLock()
	cached, ok := r.loaded[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	raw, err := os.ReadFile(filepath.Join(r.dir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrContractNotFound, name)
		}
		return nil, err
	}

	var file descriptorFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("contract %s: %w", name, err)
	}
	if len(file.ABI) == 0 {
		return nil, fmt.Errorf("contract %s: abi is required", name)
	}
	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", name, err)
	}

	descriptor := &Descriptor{
		Name:     name,
		ABI:      parsed,
		Bytecode: common.FromHex(file.Bytecode),
	}

	r.mu.Lock()
	r.loaded[name] = descriptor
	r.mu.Unlock()
	return descriptor, nil
}

// Callable resolves a function by name on a contract.
func (r *Registry) Callable(contractName, function string) (*Descriptor, abi.Method, error) {
	descriptor, err := r.Load(contractName)
	if err != nil {
		return nil, abi.Method{}, err
	}
	method, ok := descriptor.ABI.Methods[function]
	if !ok {
		return nil, abi.Method{}, fmt.Errorf("%w: %s in %s", domain.ErrCallableNotFound, function, contractName)
	}
	return descriptor, method, nil
}
