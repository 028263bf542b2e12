package contract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"txbridge/internal/domain"
)

const tokenDescriptor = `{
	"abi": [
		{"type": "function", "name": "transfer", "stateMutability": "nonpayable", "inputs": [{"name": "to", "type": "address"}, {"name": "amount", "type": "uint256"}], "outputs": [{"name": "", "type": "bool"}]}
	],
	"bytecode": "0x6080604052"
}`

const interfaceOnlyDescriptor = `{
	"abi": [
		{"type": "function", "name": "get", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]}
	]
}`

func writeDescriptor(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func TestLoadDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "token", tokenDescriptor)
	registry, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	descriptor, err := registry.Load("token")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if descriptor.Name != "token" {
		t.Errorf("unexpected name %q", descriptor.Name)
	}
	if !descriptor.Deployable() {
		t.Error("expected deployable descriptor")
	}
	if _, ok := descriptor.ABI.Methods["transfer"]; !ok {
		t.Error("expected transfer method")
	}

	// Second load must come from cache even if the file disappears.
	if err := os.Remove(filepath.Join(dir, "token.json")); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Load("token"); err != nil {
		t.Errorf("cached load failed: %v", err)
	}
}

func TestLoadMissingContract(t *testing.T) {
	registry, _ := NewRegistry(t.TempDir())
	_, err := registry.Load("ghost")
	if !errors.Is(err, domain.ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}

func TestLoadRejectsMissingABI(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "empty", `{"bytecode": "0x00"}`)
	registry, _ := NewRegistry(dir)
	if _, err := registry.Load("empty"); err == nil {
		t.Fatal("expected error for descriptor without abi")
	}
}

func TestCallable(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "token", tokenDescriptor)
	registry, _ := NewRegistry(dir)

	descriptor, method, err := registry.Callable("token", "transfer")
	if err != nil {
		t.Fatalf("callable: %v", err)
	}
	if descriptor == nil || method.Name != "transfer" {
		t.Errorf("unexpected resolution %v %v", descriptor, method.Name)
	}
	if len(method.Inputs) != 2 {
		t.Errorf("expected 2 inputs, got %d", len(method.Inputs))
	}

	_, _, err = registry.Callable("token", "mint")
	if !errors.Is(err, domain.ErrCallableNotFound) {
		t.Fatalf("expected ErrCallableNotFound, got %v", err)
	}
}

func TestInterfaceOnlyNotDeployable(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "reader", interfaceOnlyDescriptor)
	registry, _ := NewRegistry(dir)

	descriptor, err := registry.Load("reader")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if descriptor.Deployable() {
		t.Error("descriptor without bytecode must not be deployable")
	}
}
