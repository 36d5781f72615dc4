package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Fields owned by the store
const (
	idField      = "id"
	versionField = "version"
)

// decodeTree decodes a JSON document into maps and slices, keeping numbers
// exact.
func decodeTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeObject(data []byte) (map[string]any, error) {
	tree, err := decodeTree(data)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode document: top level is not an object")
	}
	return obj, nil
}

// initDocument stamps a new document with its id and version 1
func initDocument(id string, doc []byte) ([]byte, error) {
	obj, err := decodeObject(doc)
	if err != nil {
		return nil, err
	}
	obj[idField] = id
	obj[versionField] = int64(1)
	return json.Marshal(obj)
}

// applyUpdates applies updates to doc and sets its version to version+1.
// Paths are applied in sorted order, so a whole "players" replacement lands
// before any "players/<n>/..." path in the same batch.
func applyUpdates(doc []byte, version int64, updates Updates) ([]byte, error) {
	obj, err := decodeObject(doc)
	if err != nil {
		return nil, err
	}

	for _, path := range slices.Sorted(maps.Keys(updates)) {
		value, err := normalize(updates[path])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", path, err)
		}
		if err := setPath(obj, path, value); err != nil {
			return nil, err
		}
	}

	obj[versionField] = version + 1
	return json.Marshal(obj)
}

// normalize turns an arbitrary Go value into its JSON tree form
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeTree(data)
}

func setPath(root map[string]any, path string, value any) error {
	parts := strings.Split(path, "/")
	if slices.Contains(parts, "") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if parts[0] == idField || parts[0] == versionField {
		return fmt.Errorf("%w: %q is managed by the store", ErrInvalidPath, path)
	}

	var node any = root
	for i, part := range parts {
		last := i == len(parts)-1

		switch n := node.(type) {
		case map[string]any:
			if last {
				n[part] = value
				return nil
			}
			next, ok := n[part]
			if !ok {
				return fmt.Errorf("%w: %q has no %q", ErrInvalidPath, path, part)
			}
			node = next

		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(n) {
				return fmt.Errorf("%w: %q index %q out of range", ErrInvalidPath, path, part)
			}
			if last {
				n[idx] = value
				return nil
			}
			node = n[idx]

		default:
			return fmt.Errorf("%w: %q descends into a scalar", ErrInvalidPath, path)
		}
	}
	return nil
}

type docMeta struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

func readMeta(doc []byte) (docMeta, error) {
	var m docMeta
	if err := json.Unmarshal(doc, &m); err != nil {
		return m, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}

func snapshotOf(doc []byte) (Snapshot, error) {
	m, err := readMeta(doc)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: m.ID, Version: m.Version, Data: doc}, nil
}
