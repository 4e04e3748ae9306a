// ABOUTME: Version store implementation with temporal queries
// ABOUTME: Manages document versions with time-based access

package version

import (
	"fmt"
	"time"

	"github.com/reconbug/treekv/pkg/keyspace"
	"github.com/reconbug/treekv/pkg/storage"
)

// Namespaces for the four KeySpaces this store keeps inside one shared
// Tree: the primary version record, a creation-time index, a tag index,
// and a per-policy latest-version pointer.
const (
	versionKeySpaceName       = "version_records"
	versionTimeKeySpaceName   = "version_by_time"
	versionTagKeySpaceName    = "version_by_tag"
	latestVersionKeySpaceName = "version_latest"
)

// versionKey composite-keys a version by (policyID, versionID).
type versionKey struct {
	PolicyID  string
	VersionID string
}

func versionKeyCodec() keyspace.KeyCodec[versionKey] {
	return keyspace.KeyCodec[versionKey]{
		SerializeKey: func(k versionKey) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(k.PolicyID)),
				storage.NewBytesValue([]byte(k.VersionID)),
			})
		},
		DeserializeKey: func(b []byte) (versionKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 2 {
				return versionKey{}, fmt.Errorf("version: bad key: %w", err)
			}
			return versionKey{PolicyID: string(vals[0].Str), VersionID: string(vals[1].Str)}, nil
		},
	}
}

func versionValueCodec() keyspace.ValueCodec[*Version] {
	return keyspace.ValueCodec[*Version]{
		SerializeValue: func(v *Version) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(v.PolicyID)),
				storage.NewBytesValue([]byte(v.VersionID)),
				storage.NewBytesValue([]byte(v.DocumentID)),
				storage.NewTimeValue(v.CreatedAt),
				storage.NewBytesValue([]byte(v.CreatedBy)),
				storage.NewBytesValue([]byte(v.Description)),
				storage.NewBytesValue(encodeStringArray(v.Tags)),
				storage.NewBytesValue(encodeMetadata(v.Metadata)),
			})
		},
		DeserializeValue: func(b []byte) (*Version, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil {
				return nil, err
			}
			return parseVersionVals(vals)
		},
	}
}

// versionTimeKey orders versions within a policy by creation time, so a
// forward ScanRawPrefix over (policyID) replays them oldest-first.
type versionTimeKey struct {
	PolicyID  string
	CreatedAt time.Time
	VersionID string
}

func versionTimeKeyCodec() keyspace.KeyCodec[versionTimeKey] {
	return keyspace.KeyCodec[versionTimeKey]{
		SerializeKey: func(k versionTimeKey) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(k.PolicyID)),
				storage.NewTimeValue(k.CreatedAt),
				storage.NewBytesValue([]byte(k.VersionID)),
			})
		},
		DeserializeKey: func(b []byte) (versionTimeKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return versionTimeKey{}, fmt.Errorf("version: bad time-index key: %w", err)
			}
			return versionTimeKey{
				PolicyID:  string(vals[0].Str),
				CreatedAt: vals[1].Time,
				VersionID: string(vals[2].Str),
			}, nil
		},
	}
}

func versionTimePrefixBytes(policyID string) []byte {
	return storage.EncodeValues([]storage.Value{storage.NewBytesValue([]byte(policyID))})
}

// versionTagKey indexes versions by (policyID, tag, versionID).
type versionTagKey struct {
	PolicyID  string
	Tag       string
	VersionID string
}

func versionTagKeyCodec() keyspace.KeyCodec[versionTagKey] {
	return keyspace.KeyCodec[versionTagKey]{
		SerializeKey: func(k versionTagKey) []byte {
			return storage.EncodeValues([]storage.Value{
				storage.NewBytesValue([]byte(k.PolicyID)),
				storage.NewBytesValue([]byte(k.Tag)),
				storage.NewBytesValue([]byte(k.VersionID)),
			})
		},
		DeserializeKey: func(b []byte) (versionTagKey, error) {
			vals, err := storage.DecodeValues(b)
			if err != nil || len(vals) < 3 {
				return versionTagKey{}, fmt.Errorf("version: bad tag-index key: %w", err)
			}
			return versionTagKey{
				PolicyID:  string(vals[0].Str),
				Tag:       string(vals[1].Str),
				VersionID: string(vals[2].Str),
			}, nil
		},
	}
}

func versionTagPrefixBytes(policyID, tag string) []byte {
	return storage.EncodeValues([]storage.Value{
		storage.NewBytesValue([]byte(policyID)),
		storage.NewBytesValue([]byte(tag)),
	})
}

// VersionStore manages document versions atop four disjoint KeySpaces
// sharing one keyspace.Tree.
type VersionStore struct {
	versionKS keyspace.KeySpace[versionKey, *Version]
	timeKS    keyspace.KeySpace[versionTimeKey, []byte]
	tagKS     keyspace.KeySpace[versionTagKey, []byte]
	latestKS  keyspace.KeySpace[string, string]

	versions keyspace.View[versionKey, *Version]
	byTime   keyspace.View[versionTimeKey, []byte]
	byTag    keyspace.View[versionTagKey, []byte]
	latest   keyspace.View[string, string]
}

// NewVersionStore binds a VersionStore to tree.
func NewVersionStore(tree *keyspace.Tree) *VersionStore {
	versionKS := keyspace.NewKeySpace[versionKey, *Version](versionKeySpaceName, versionKeyCodec(), versionValueCodec())
	timeKS := keyspace.NewKeySpace[versionTimeKey, []byte](versionTimeKeySpaceName, versionTimeKeyCodec(), keyspace.BytesValueCodec())
	tagKS := keyspace.NewKeySpace[versionTagKey, []byte](versionTagKeySpaceName, versionTagKeyCodec(), keyspace.BytesValueCodec())
	latestKS := keyspace.NewKeySpace[string, string](latestVersionKeySpaceName, keyspace.StringKeyCodec(), keyspace.StringValueCodec())

	return &VersionStore{
		versionKS: versionKS,
		timeKS:    timeKS,
		tagKS:     tagKS,
		latestKS:  latestKS,
		versions:  keyspace.KeySpaceOf(tree, versionKS),
		byTime:    keyspace.KeySpaceOf(tree, timeKS),
		byTag:     keyspace.KeySpaceOf(tree, tagKS),
		latest:    keyspace.KeySpaceOf(tree, latestKS),
	}
}

// CreateVersion stores a new version along with its time index, tag
// indexes, and latest-version pointer, all in one transaction.
func (vs *VersionStore) CreateVersion(v *Version) error {
	tree := vs.versions.Tree()

	_, err := keyspace.Txn(tree, true, func(txt *keyspace.TxTree) (struct{}, error) {
		versions := keyspace.TxKeySpaceOf(txt, vs.versionKS)
		byTime := keyspace.TxKeySpaceOf(txt, vs.timeKS)
		byTag := keyspace.TxKeySpaceOf(txt, vs.tagKS)
		latest := keyspace.TxKeySpaceOf(txt, vs.latestKS)

		versions.Insert(versionKey{PolicyID: v.PolicyID, VersionID: v.VersionID}, v)

		byTime.Insert(versionTimeKey{
			PolicyID:  v.PolicyID,
			CreatedAt: v.CreatedAt,
			VersionID: v.VersionID,
		}, []byte{})

		for _, tag := range v.Tags {
			byTag.Insert(versionTagKey{PolicyID: v.PolicyID, Tag: tag, VersionID: v.VersionID}, []byte{})
		}

		latest.Insert(v.PolicyID, v.VersionID)

		return struct{}{}, nil
	})
	return err
}

// GetVersion retrieves a specific version.
func (vs *VersionStore) GetVersion(policyID, versionID string) (*Version, error) {
	v, ok, err := vs.versions.Get(versionKey{PolicyID: policyID, VersionID: versionID})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("version not found: %s/%s", policyID, versionID)
	}
	return v, nil
}

// GetLatestVersion returns the most recent version for a policy.
func (vs *VersionStore) GetLatestVersion(policyID string) (*Version, error) {
	versionID, ok, err := vs.latest.Get(policyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no versions found for policy: %s", policyID)
	}
	return vs.GetVersion(policyID, versionID)
}

// GetVersionAsOf returns the version that was current at a specific time.
func (vs *VersionStore) GetVersionAsOf(policyID string, asOfTime time.Time) (*Version, error) {
	var latestVersion *Version
	var latestTime time.Time

	err := vs.byTime.ScanRawPrefix(versionTimePrefixBytes(policyID), func(rawKeySuffix []byte, _ []byte) bool {
		key, derr := versionTimeKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		if key.CreatedAt.After(asOfTime) {
			return true
		}

		if latestVersion == nil || key.CreatedAt.After(latestTime) {
			version, verr := vs.GetVersion(policyID, key.VersionID)
			if verr == nil {
				latestVersion = version
				latestTime = key.CreatedAt
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if latestVersion == nil {
		return nil, fmt.Errorf("no version found for %s as of %s", policyID, asOfTime)
	}
	return latestVersion, nil
}

// GetVersionByTag returns the version with a specific tag.
func (vs *VersionStore) GetVersionByTag(policyID, tag string) (*Version, error) {
	var versionID string
	found := false

	err := vs.byTag.ScanRawPrefix(versionTagPrefixBytes(policyID, tag), func(rawKeySuffix []byte, _ []byte) bool {
		key, derr := versionTagKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}
		versionID = key.VersionID
		found = true
		return false
	})
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("no version found with tag %s for policy %s", tag, policyID)
	}
	return vs.GetVersion(policyID, versionID)
}

// ListVersions returns all versions for a policy, ordered by creation time.
func (vs *VersionStore) ListVersions(policyID string, limit int) ([]*Version, error) {
	var versions []*Version
	count := 0

	err := vs.byTime.ScanRawPrefix(versionTimePrefixBytes(policyID), func(rawKeySuffix []byte, _ []byte) bool {
		if limit > 0 && count >= limit {
			return false
		}

		key, derr := versionTimeKeyCodec().DeserializeKey(rawKeySuffix)
		if derr != nil {
			return true
		}

		version, verr := vs.GetVersion(policyID, key.VersionID)
		if verr == nil {
			versions = append(versions, version)
			count++
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return versions, nil
}

// GetVersionHistory returns the complete version history for a policy.
func (vs *VersionStore) GetVersionHistory(policyID string) (*VersionHistory, error) {
	versions, err := vs.ListVersions(policyID, 0) // 0 = no limit
	if err != nil {
		return nil, err
	}

	return &VersionHistory{
		PolicyID: policyID,
		Versions: versions,
	}, nil
}

// Helper functions

func parseVersionVals(vals []storage.Value) (*Version, error) {
	if len(vals) < 8 {
		return nil, fmt.Errorf("incomplete version data")
	}

	tags, err := decodeStringArray(vals[6].Str)
	if err != nil {
		tags = []string{}
	}

	metadata, err := decodeMetadata(vals[7].Str)
	if err != nil {
		metadata = make(map[string]string)
	}

	return &Version{
		PolicyID:    string(vals[0].Str),
		VersionID:   string(vals[1].Str),
		DocumentID:  string(vals[2].Str),
		CreatedAt:   vals[3].Time,
		CreatedBy:   string(vals[4].Str),
		Description: string(vals[5].Str),
		Tags:        tags,
		Metadata:    metadata,
	}, nil
}

func encodeStringArray(arr []string) []byte {
	if len(arr) == 0 {
		return []byte{}
	}

	result := []byte{}
	result = append(result, byte(len(arr)))
	for _, s := range arr {
		result = append(result, byte(len(s)))
		result = append(result, []byte(s)...)
	}
	return result
}

func decodeStringArray(data []byte) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}

	pos := 0
	count := int(data[pos])
	pos++

	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete string array")
		}

		length := int(data[pos])
		pos++

		if pos+length > len(data) {
			return nil, fmt.Errorf("incomplete string at pos %d", pos)
		}

		result = append(result, string(data[pos:pos+length]))
		pos += length
	}

	return result, nil
}

func encodeMetadata(m map[string]string) []byte {
	if len(m) == 0 {
		return []byte{}
	}

	result := []byte{byte(len(m))}
	for k, v := range m {
		result = append(result, byte(len(k)))
		result = append(result, []byte(k)...)
		result = append(result, byte(len(v)))
		result = append(result, []byte(v)...)
	}
	return result
}

func decodeMetadata(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	pos := 0
	count := int(data[pos])
	pos++

	result := make(map[string]string)
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete metadata")
		}

		// Read key
		keyLen := int(data[pos])
		pos++
		if pos+keyLen > len(data) {
			return nil, fmt.Errorf("incomplete key at pos %d", pos)
		}
		key := string(data[pos : pos+keyLen])
		pos += keyLen

		// Read value
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete value for key %s", key)
		}
		valLen := int(data[pos])
		pos++
		if pos+valLen > len(data) {
			return nil, fmt.Errorf("incomplete value at pos %d", pos)
		}
		val := string(data[pos : pos+valLen])
		pos += valLen

		result[key] = val
	}

	return result, nil
}
