// Package registry maps node types to their executors.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/protocol"
)

var (
	ErrExecutorNotFound  = errors.New("no executor registered for node type")
	ErrDuplicateExecutor = errors.New("executor already registered for node type")
)

// Registry holds one executor per node type.
type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	executors map[models.NodeType]protocol.Executor
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		executors: make(map[models.NodeType]protocol.Executor),
	}
}

// Register adds an executor. A node type can only be registered once.
func (r *Registry) Register(executor protocol.Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodeType := executor.Type()
	if _, exists := r.executors[nodeType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateExecutor, nodeType)
	}

	r.executors[nodeType] = executor
	r.logger.Debug("executor registered", "node_type", nodeType)

	return nil
}

// Executor returns the executor for nodeType.
func (r *Registry) Executor(nodeType models.NodeType) (protocol.Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotFound, nodeType)
	}

	return executor, nil
}

func (r *Registry) HasExecutor(nodeType models.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.executors[nodeType]

	return ok
}

// NodeTypes describes every registered executor, sorted by type.
func (r *Registry) NodeTypes() []protocol.NodeTypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]protocol.NodeTypeInfo, 0, len(r.executors))
	for _, executor := range r.executors {
		infos = append(infos, protocol.NodeTypeInfo{
			Type:        executor.Type(),
			Name:        executor.Name(),
			Description: executor.Description(),
			Schema:      executor.Schema(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Type < infos[j].Type
	})

	return infos
}

// ValidateNode resolves the executor of node, checks its config against the
// executor schema and then runs the executor's own validation.
func (r *Registry) ValidateNode(node *models.WorkflowNode) (protocol.Executor, error) {
	executor, err := r.Executor(node.Type)
	if err != nil {
		return nil, err
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	err = ValidateSchema(executor.Schema(), config)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, err)
	}

	err = executor.Validate(node)
	if err != nil {
		return nil, err
	}

	return executor, nil
}
