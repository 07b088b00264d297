// Package inmemory keeps instance context and token tracking records in
// memory, please use New to create a store.
package inmemory

import (
	"context"
	"hash/adler32"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/storage"
)

type InMemoryStore struct {
	mu        sync.Mutex
	values    map[string]map[string]any
	tokens    map[storage.TokenRef]*storage.TokenRecord
	snowflake *snowflake.Node
}

func New() *InMemoryStore {
	return &InMemoryStore{
		values:    make(map[string]map[string]any),
		tokens:    make(map[storage.TokenRef]*storage.TokenRecord),
		snowflake: newIdGenerator(),
	}
}

func (mem *InMemoryStore) Add(ctx context.Context, instanceID string, key string, value any) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	instance, ok := mem.values[instanceID]
	if !ok {
		instance = make(map[string]any)
		mem.values[instanceID] = instance
	}
	instance[key] = value
	return nil
}

func (mem *InMemoryStore) Get(ctx context.Context, instanceID string, key string) (any, error) {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	value, ok := mem.values[instanceID][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

func (mem *InMemoryStore) GetKeys(ctx context.Context, instanceID string, keys []string) (map[string]any, error) {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	result := make(map[string]any, len(keys))
	for _, key := range keys {
		if value, ok := mem.values[instanceID][key]; ok {
			result[key] = value
		}
	}
	return result, nil
}

func (mem *InMemoryStore) SaveToken(ctx context.Context, ref storage.TokenRef, token runtime.Token) (storage.TokenRecord, error) {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	record, ok := mem.tokens[ref]
	if !ok {
		record = &storage.TokenRecord{}
		mem.tokens[ref] = record
	}
	stamp := mem.snowflake.Generate().Int64()
	record.Entries = append(record.Entries, storage.TokenEntry{Stamp: stamp, Token: token})
	record.Last = stamp
	return snapshot(record), nil
}

func (mem *InMemoryStore) GetTokens(ctx context.Context, ref storage.TokenRef) (storage.TokenRecord, error) {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	record, ok := mem.tokens[ref]
	if !ok {
		return storage.TokenRecord{}, nil
	}
	return snapshot(record), nil
}

// snapshot copies the record so callers never share the live entry slice
func snapshot(record *storage.TokenRecord) storage.TokenRecord {
	entries := make([]storage.TokenEntry, len(record.Entries))
	copy(entries, record.Entries)
	return storage.TokenRecord{Last: record.Last, Entries: entries}
}

// newIdGenerator builds the stamp generator,
// constraints: creating two instances within a few microseconds will create generators with the same seed
func newIdGenerator() *snowflake.Node {
	hash32 := adler32.New()
	for _, e := range os.Environ() {
		hash32.Sum([]byte(e))
	}
	node, err := snowflake.NewNode(int64(hash32.Sum32() % 1024))
	if err != nil {
		panic("can't initialize snowflake ID generator. Message: " + err.Error())
	}
	return node
}
