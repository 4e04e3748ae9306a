// ABOUTME: Metadata store implementation with flexible indexing
// ABOUTME: Supports multi-attribute queries and custom properties

package metadata

import (
	"fmt"

	"github.com/reconbug/treekv/pkg/keyspace"
	"github.com/reconbug/treekv/pkg/storage"
)

// Namespaces for the four KeySpaces this store keeps inside one shared
// Tree: the primary entry, and three secondary indexes over it.
const (
	metadataKeySpaceName       = "metadata_entries"
	metadataEntityKeySpaceName = "metadata_by_entity"
	metadataKeyKeySpaceName    = "metadata_by_key"
	metadataValueKeySpaceName  = "metadata_by_value"
)

func encodeFields(fields ...string) []byte {
	vals := make([]storage.Value, len(fields))
	for i, f := range fields {
		vals[i] = storage.NewBytesValue([]byte(f))
	}
	return storage.EncodeValues(vals)
}

// metadataKey composite-keys an entry by (entityType, entityID, key).
type metadataKey struct {
	EntityType string
	EntityID   string
	Key        string
}

func metadataKeyCodec() keyspace.KeyCodec[metadataKey] {
	return keyspace.KeyCodec[metadataKey]{
		SerializeKey: func(k metadataKey) []byte {
			return encodeFields(k.EntityType, k.EntityID, k.Key)
		},
		DeserializeKey: func(b []byte) (metadataKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return metadataKey{}, fmt.Errorf("metadata: bad key: %w", err)
			}
			return metadataKey{
				EntityType: string(vals[0].Str),
				EntityID:   string(vals[1].Str),
				Key:        string(vals[2].Str),
			}, nil
		},
	}
}

func metadataValueCodec() keyspace.ValueCodec[*MetadataEntry] {
	return keyspace.ValueCodec[*MetadataEntry]{
		SerializeValue: func(e *MetadataEntry) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(e.EntityType)),
				storage.NewBytesValue([]byte(e.EntityID)),
				storage.NewBytesValue([]byte(e.Key)),
				storage.NewBytesValue([]byte(e.Value)),
				storage.NewBytesValue([]byte(e.ValueType)),
				storage.NewTimeValue(e.CreatedAt),
				storage.NewTimeValue(e.UpdatedAt),
			})
		},
		DeserializeValue: func(b []byte) (*MetadataEntry, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil {
				return nil, err
			}
			return parseMetadataVals(vals)
		},
	}
}

// entityIndexKey indexes entries by (entityType, entityID, key), letting
// GetAllMetadata scan every key belonging to one entity.
type entityIndexKey struct {
	EntityType string
	EntityID   string
	Key        string
}

func entityIndexKeyCodec() keyspace.KeyCodec[entityIndexKey] {
	return keyspace.KeyCodec[entityIndexKey]{
		SerializeKey: func(k entityIndexKey) []byte {
			return encodeFields(k.EntityType, k.EntityID, k.Key)
		},
		DeserializeKey: func(b []byte) (entityIndexKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return entityIndexKey{}, fmt.Errorf("metadata: bad entity-index key: %w", err)
			}
			return entityIndexKey{
				EntityType: string(vals[0].Str),
				EntityID:   string(vals[1].Str),
				Key:        string(vals[2].Str),
			}, nil
		},
	}
}

// keyIndexKey indexes entries by (key, entityType, entityID), letting
// QueryByKey scan every entity carrying a given key.
type keyIndexKey struct {
	Key        string
	EntityType string
	EntityID   string
}

func keyIndexKeyCodec() keyspace.KeyCodec[keyIndexKey] {
	return keyspace.KeyCodec[keyIndexKey]{
		SerializeKey: func(k keyIndexKey) []byte {
			return encodeFields(k.Key, k.EntityType, k.EntityID)
		},
		DeserializeKey: func(b []byte) (keyIndexKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return keyIndexKey{}, fmt.Errorf("metadata: bad key-index key: %w", err)
			}
			return keyIndexKey{
				Key:        string(vals[0].Str),
				EntityType: string(vals[1].Str),
				EntityID:   string(vals[2].Str),
			}, nil
		},
	}
}

// valueIndexKey indexes entries by (key, value, entityType, entityID),
// letting QueryByKeyValue scan every entity carrying a given key/value pair.
type valueIndexKey struct {
	Key        string
	Value      string
	EntityType string
	EntityID   string
}

func valueIndexKeyCodec() keyspace.KeyCodec[valueIndexKey] {
	return keyspace.KeyCodec[valueIndexKey]{
		SerializeKey: func(k valueIndexKey) []byte {
			return encodeFields(k.Key, k.Value, k.EntityType, k.EntityID)
		},
		DeserializeKey: func(b []byte) (valueIndexKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 4 {
				return valueIndexKey{}, fmt.Errorf("metadata: bad value-index key: %w", err)
			}
			return valueIndexKey{
				Key:        string(vals[0].Str),
				Value:      string(vals[1].Str),
				EntityType: string(vals[2].Str),
				EntityID:   string(vals[3].Str),
			}, nil
		},
	}
}

// MetadataStore manages custom metadata and attributes atop four disjoint
// KeySpaces sharing one keyspace.Tree.
type MetadataStore struct {
	metadataKS keyspace.KeySpace[metadataKey, *MetadataEntry]
	entityKS   keyspace.KeySpace[entityIndexKey, []byte]
	keyKS      keyspace.KeySpace[keyIndexKey, []byte]
	valueKS    keyspace.KeySpace[valueIndexKey, []byte]

	entries  keyspace.View[metadataKey, *MetadataEntry]
	byEntity keyspace.View[entityIndexKey, []byte]
	byKey    keyspace.View[keyIndexKey, []byte]
	byValue  keyspace.View[valueIndexKey, []byte]
}

// NewMetadataStore binds a MetadataStore to tree.
func NewMetadataStore(tree *keyspace.Tree) *MetadataStore {
	metadataKS := keyspace.NewKeySpace[metadataKey, *MetadataEntry](metadataKeySpaceName, metadataKeyCodec(), metadataValueCodec())
	entityKS := keyspace.NewKeySpace[entityIndexKey, []byte](metadataEntityKeySpaceName, entityIndexKeyCodec(), keyspace.BytesValueCodec())
	keyKS := keyspace.NewKeySpace[keyIndexKey, []byte](metadataKeyKeySpaceName, keyIndexKeyCodec(), keyspace.BytesValueCodec())
	valueKS := keyspace.NewKeySpace[valueIndexKey, []byte](metadataValueKeySpaceName, valueIndexKeyCodec(), keyspace.BytesValueCodec())

	return &MetadataStore{
		metadataKS: metadataKS,
		entityKS:   entityKS,
		keyKS:      keyKS,
		valueKS:    valueKS,
		entries:    keyspace.KeySpaceOf(tree, metadataKS),
		byEntity:   keyspace.KeySpaceOf(tree, entityKS),
		byKey:      keyspace.KeySpaceOf(tree, keyKS),
		byValue:    keyspace.KeySpaceOf(tree, valueKS),
	}
}

// SetMetadata stores or updates a metadata entry and its three indexes,
// all in one transaction.
func (ms *MetadataStore) SetMetadata(entry *MetadataEntry) error {
	tree := ms.entries.Tree()

	_, err := keyspace.Txn(tree, true, func(txt *keyspace.TxTree) (struct{}, error) {
		entries := keyspace.TxKeySpaceOf(txt, ms.metadataKS)
		byEntity := keyspace.TxKeySpaceOf(txt, ms.entityKS)
		byKey := keyspace.TxKeySpaceOf(txt, ms.keyKS)
		byValue := keyspace.TxKeySpaceOf(txt, ms.valueKS)

		entries.Insert(metadataKey{EntityType: entry.EntityType, EntityID: entry.EntityID, Key: entry.Key}, entry)

		byEntity.Insert(entityIndexKey{EntityType: entry.EntityType, EntityID: entry.EntityID, Key: entry.Key}, []byte{})
		byKey.Insert(keyIndexKey{Key: entry.Key, EntityType: entry.EntityType, EntityID: entry.EntityID}, []byte{})
		byValue.Insert(valueIndexKey{
			Key:        entry.Key,
			Value:      entry.Value,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
		}, []byte{})

		return struct{}{}, nil
	})
	return err
}

// GetMetadata retrieves a specific metadata entry.
func (ms *MetadataStore) GetMetadata(entityType, entityID, key string) (*MetadataEntry, error) {
	entry, ok, err := ms.entries.Get(metadataKey{EntityType: entityType, EntityID: entityID, Key: key})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("metadata not found: %s/%s/%s", entityType, entityID, key)
	}
	return entry, nil
}

// GetAllMetadata retrieves all metadata for an entity.
func (ms *MetadataStore) GetAllMetadata(entityType, entityID string) (map[string]string, error) {
	result := make(map[string]string)

	err := ms.byEntity.ScanRawPrefix(encodeFields(entityType, entityID), func(rawKeySuffix []byte, _ []byte) bool {
		key, derr := entityIndexKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		entry, err := ms.GetMetadata(entityType, entityID, key.Key)
		if err == nil {
			result[key.Key] = entry.Value
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteMetadata removes a metadata entry and its indexes.
func (ms *MetadataStore) DeleteMetadata(entityType, entityID, key string) error {
	entry, err := ms.GetMetadata(entityType, entityID, key)
	if err != nil {
		return err
	}

	tree := ms.entries.Tree()
	_, txErr := keyspace.Txn(tree, true, func(txt *keyspace.TxTree) (struct{}, error) {
		entries := keyspace.TxKeySpaceOf(txt, ms.metadataKS)
		byEntity := keyspace.TxKeySpaceOf(txt, ms.entityKS)
		byKey := keyspace.TxKeySpaceOf(txt, ms.keyKS)
		byValue := keyspace.TxKeySpaceOf(txt, ms.valueKS)

		entries.Remove(metadataKey{EntityType: entityType, EntityID: entityID, Key: key})
		byEntity.Remove(entityIndexKey{EntityType: entityType, EntityID: entityID, Key: key})
		byKey.Remove(keyIndexKey{Key: key, EntityType: entityType, EntityID: entityID})
		byValue.Remove(valueIndexKey{Key: key, Value: entry.Value, EntityType: entityType, EntityID: entityID})

		return struct{}{}, nil
	})
	return txErr
}

// QueryByKey finds all entities with a specific metadata key.
func (ms *MetadataStore) QueryByKey(key string, entityType *string, limit int) ([]*MetadataEntry, error) {
	prefix := encodeFields(key)
	if entityType != nil {
		prefix = encodeFields(key, *entityType)
	}

	var results []*MetadataEntry
	count := 0

	err := ms.byKey.ScanRawPrefix(prefix, func(rawKeySuffix []byte, _ []byte) bool {
		if limit > 0 && count >= limit {
			return false
		}

		idxKey, derr := keyIndexKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		if entityType != nil && idxKey.EntityType != *entityType {
			return true
		}

		entry, gerr := ms.GetMetadata(idxKey.EntityType, idxKey.EntityID, key)
		if gerr == nil {
			results = append(results, entry)
			count++
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// QueryByKeyValue finds all entities with a specific key-value pair.
func (ms *MetadataStore) QueryByKeyValue(key, value string, entityType *string, limit int) ([]*MetadataEntry, error) {
	prefix := encodeFields(key, value)
	if entityType != nil {
		prefix = encodeFields(key, value, *entityType)
	}

	var results []*MetadataEntry
	count := 0

	err := ms.byValue.ScanRawPrefix(prefix, func(rawKeySuffix []byte, _ []byte) bool {
		if limit > 0 && count >= limit {
			return false
		}

		idxKey, derr := valueIndexKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		if entityType != nil && idxKey.EntityType != *entityType {
			return true
		}

		entry, gerr := ms.GetMetadata(idxKey.EntityType, idxKey.EntityID, key)
		if gerr == nil {
			results = append(results, entry)
			count++
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// QueryMultiple finds entities matching multiple key-value pairs.
func (ms *MetadataStore) QueryMultiple(filters map[string]string, entityType *string, limit int) ([]string, error) {
	if len(filters) == 0 {
		return []string{}, nil
	}

	// Get entities for first filter
	var firstKey, firstValue string
	for k, v := range filters {
		firstKey = k
		firstValue = v
		break
	}

	entries, err := ms.QueryByKeyValue(firstKey, firstValue, entityType, 0)
	if err != nil {
		return nil, err
	}

	// Build candidate set
	candidates := make(map[string]bool)
	for _, entry := range entries {
		candidates[entry.EntityID] = true
	}

	// Filter by remaining criteria
	for key, value := range filters {
		if key == firstKey {
			continue
		}

		// Check each candidate
		for entityID := range candidates {
			var eType string
			if entityType != nil {
				eType = *entityType
			} else {
				// Need to determine entityType from previous entry
				for _, e := range entries {
					if e.EntityID == entityID {
						eType = e.EntityType
						break
					}
				}
			}

			entry, err := ms.GetMetadata(eType, entityID, key)
			if err != nil || entry.Value != value {
				delete(candidates, entityID)
			}
		}
	}

	// Collect results
	results := make([]string, 0, len(candidates))
	for entityID := range candidates {
		results = append(results, entityID)
		if limit > 0 && len(results) >= limit {
			break
		}
	}

	return results, nil
}

// Helper functions

func parseMetadataVals(vals []storage.Value) (*MetadataEntry, error) {
	if len(vals) < 7 {
		return nil, fmt.Errorf("incomplete metadata data")
	}

	return &MetadataEntry{
		EntityType: string(vals[0].Str),
		EntityID:   string(vals[1].Str),
		Key:        string(vals[2].Str),
		Value:      string(vals[3].Str),
		ValueType:  string(vals[4].Str),
		CreatedAt:  vals[5].Time,
		UpdatedAt:  vals[6].Time,
	}, nil
}
