package streaming

import (
	"encoding/json"
	"errors"
)

type TaskType string

const (
	TaskTypeTrack TaskType = "track"
)

// Task is a unit of work handed to the watcher through Kafka. Track tasks
// carry everything the confirmation tracker needs: the transaction hash,
// the completion hook name, and the hook's auxiliary arguments. Keys are
// the transaction hash, so re-dispatch of the same transaction is keyed
// identically and the tracker's terminal short-circuit keeps it idempotent.
type Task struct {
	Type     TaskType          `json:"type"`
	ChainID  uint64            `json:"chain_id"`
	TraceID  string            `json:"trace_id,omitempty"`
	TxHash   string            `json:"tx_hash"`
	Hook     string            `json:"hook,omitempty"`
	HookArgs map[string]string `json:"hook_args,omitempty"`
}

func Encode(task Task) ([]byte, error) {
	if task.Type == "" {
		return nil, errors.New("task type is required")
	}
	if task.ChainID == 0 {
		return nil, errors.New("chain_id is required")
	}
	if task.TxHash == "" {
		return nil, errors.New("tx_hash is required")
	}
	return json.Marshal(task)
}

func Decode(payload []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return Task{}, err
	}
	if task.Type == "" {
		return Task{}, errors.New("task type is missing")
	}
	if task.ChainID == 0 {
		return Task{}, errors.New("chain_id is missing")
	}
	if task.TxHash == "" {
		return Task{}, errors.New("tx_hash is missing")
	}
	return task, nil
}
