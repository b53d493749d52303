package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flowgraph/pkg/persistence"
)

var errDocumentNotFound = errors.New("document not found")

// documents stores values of type T as <root>/<kind>/<id>.json.
type documents[T any] struct {
	dir string
	mu  sync.RWMutex
}

func newDocuments[T any](root, kind string) *documents[T] {
	return &documents[T]{dir: filepath.Join(root, kind)}
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", persistence.ErrInvalidID, id)
	}

	return nil
}

func (d *documents[T]) path(id string) string {
	return filepath.Join(d.dir, id+".json")
}

func (d *documents[T]) read(id string) (*T, error) {
	err := validateID(id)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(d.path(id)) // #nosec G304 -- id is validated and the path is built under dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errDocumentNotFound
		}

		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	var value T

	err = json.Unmarshal(body, &value)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return &value, nil
}

func (d *documents[T]) write(id string, value *T) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	err = os.MkdirAll(d.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", d.dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	tmp := d.path(id) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return os.Rename(tmp, d.path(id))
}

func (d *documents[T]) remove(id string) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	err = os.Remove(d.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return errDocumentNotFound
		}

		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return nil
}

func (d *documents[T]) all() ([]*T, error) {
	jsonFiles, err := fs.Glob(os.DirFS(d.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.dir, err)
	}

	values := make([]*T, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		value, err := d.read(strings.TrimSuffix(name, ".json"))
		if errors.Is(err, errDocumentNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}

// update applies fn to the stored value under the write lock.
func (d *documents[T]) update(id string, fn func(*T) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	value, err := d.read(id)
	if err != nil {
		return err
	}

	err = fn(value)
	if err != nil {
		return err
	}

	return d.write(id, value)
}

func (d *documents[T]) get(id string) (*T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.read(id)
}

func (d *documents[T]) put(id string, value *T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.write(id, value)
}

func (d *documents[T]) list() ([]*T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.all()
}

func (d *documents[T]) delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.remove(id)
}

// notFound translates errDocumentNotFound into the entity sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, errDocumentNotFound) {
		return sentinel
	}

	return err
}
