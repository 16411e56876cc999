package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

// Store keeps each board as a (:Board) node holding the task list as a JSON
// payload.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

func Open(ctx context.Context, uri, username, password, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}

	store := New(driver, database)
	if err := store.ensureConstraint(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return store, nil
}

func New(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{driver: driver, database: database}
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Store) ensureConstraint(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, "CREATE CONSTRAINT board_key IF NOT EXISTS FOR (b:Board) REQUIRE b.key IS UNIQUE", nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("create board constraint: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (model.Snapshot, bool, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (b:Board {key: $key}) "+
				"RETURN b.payload AS payload, b.counter AS counter, b.version AS version, b.updatedAt AS updatedAt",
			map[string]any{"key": key},
		)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		return res.Record().AsMap(), nil
	})
	if err != nil {
		return model.Snapshot{}, false, err
	}

	values, ok := result.(map[string]any)
	if !ok {
		return model.Snapshot{}, false, nil
	}
	snapshot, err := snapshotFromValues(values)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("decode board %s: %w", key, err)
	}
	return snapshot, true, nil
}

// Set writes snapshot only when its version is newer than the stored node.
func (s *Store) Set(ctx context.Context, key string, snapshot model.Snapshot) error {
	params, err := snapshotParams(key, snapshot)
	if err != nil {
		return err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	applied, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MERGE (b:Board {key: $key}) "+
				"WITH b WHERE coalesce(b.version, -1) < $version "+
				"SET b.payload = $payload, b.counter = $counter, b.version = $version, b.updatedAt = $updatedAt "+
				"RETURN b.version AS version",
			params,
		)
		if err != nil {
			return false, err
		}
		ok := res.Next(ctx)
		return ok, res.Err()
	})
	if err != nil {
		return err
	}
	if ok, _ := applied.(bool); !ok {
		return model.ErrStaleWrite
	}
	return nil
}

func snapshotParams(key string, snapshot model.Snapshot) (map[string]any, error) {
	tasks := snapshot.Tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"key":       key,
		"payload":   string(payload),
		"counter":   int64(snapshot.Counter),
		"version":   snapshot.Version,
		"updatedAt": snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func snapshotFromValues(values map[string]any) (model.Snapshot, error) {
	snapshot := model.Snapshot{Tasks: []model.Task{}}

	if payload, _ := values["payload"].(string); payload != "" {
		if err := json.Unmarshal([]byte(payload), &snapshot.Tasks); err != nil {
			return model.Snapshot{}, err
		}
	}
	if counter, ok := values["counter"].(int64); ok {
		snapshot.Counter = int(counter)
	}
	if version, ok := values["version"].(int64); ok {
		snapshot.Version = version
	}
	if updatedAt, _ := values["updatedAt"].(string); updatedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return model.Snapshot{}, err
		}
		snapshot.UpdatedAt = parsed
	}
	return snapshot, nil
}
