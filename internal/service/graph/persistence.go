package graph

import (
	"encoding/json"
	"fmt"

	"loom/internal/domain/models"
	"loom/internal/storage"
)

// Storage keys, one per logical collection.
const (
	GraphKey      = "conversation-graph"
	WorkspacesKey = "workspaces"
)

// Current schema versions of the persisted collections. The envelope
// version and the workspace metadata schema_version must agree after a
// clean load; migrations reconcile older records.
const (
	GraphSchemaVersion     = 2
	WorkspaceSchemaVersion = 2
)

// persistedGraph is the active workspace's live card/edge state.
type persistedGraph struct {
	ActiveWorkspaceID string                  `json:"active_workspace_id"`
	Cards             map[string]*models.Card `json:"cards"`
	Edges             []models.Edge           `json:"edges"`
}

// persistedWorkspaces is the workspace list, each entry carrying its own
// saved cards/edges for navigation.
type persistedWorkspaces struct {
	Workspaces []*models.Workspace `json:"workspaces"`
}

// graphMigrations upgrades older graph records.
//
// v1 -> v2: edges carried a bare "type" field; v2 renamed it to
// "relation_type" and introduced curve styling. Untyped edges default to
// branch relations.
func graphMigrations() []storage.Migration {
	return []storage.Migration{
		{
			FromVersion: 1,
			ToVersion:   2,
			Migrate: func(data json.RawMessage) (json.RawMessage, error) {
				var doc map[string]json.RawMessage
				if err := json.Unmarshal(data, &doc); err != nil {
					return nil, fmt.Errorf("decode v1 graph: %w", err)
				}

				var edges []map[string]interface{}
				if raw, ok := doc["edges"]; ok && len(raw) > 0 {
					if err := json.Unmarshal(raw, &edges); err != nil {
						return nil, fmt.Errorf("decode v1 edges: %w", err)
					}
				}
				for _, e := range edges {
					if t, ok := e["type"]; ok {
						e["relation_type"] = t
						delete(e, "type")
					}
					if _, ok := e["relation_type"]; !ok {
						e["relation_type"] = string(models.RelationBranch)
					}
				}
				migrated, err := json.Marshal(edges)
				if err != nil {
					return nil, err
				}
				doc["edges"] = migrated
				return json.Marshal(doc)
			},
		},
	}
}

// workspaceMigrations upgrades older workspace lists.
//
// v1 -> v2: workspaces gained a context block (instructions +
// knowledge-base files) and schema versioning inside metadata.
func workspaceMigrations() []storage.Migration {
	return []storage.Migration{
		{
			FromVersion: 1,
			ToVersion:   2,
			Migrate: func(data json.RawMessage) (json.RawMessage, error) {
				var doc struct {
					Workspaces []map[string]interface{} `json:"workspaces"`
				}
				if err := json.Unmarshal(data, &doc); err != nil {
					return nil, fmt.Errorf("decode v1 workspaces: %w", err)
				}
				for _, ws := range doc.Workspaces {
					if _, ok := ws["context"]; !ok {
						ws["context"] = map[string]interface{}{}
					}
					meta, _ := ws["metadata"].(map[string]interface{})
					if meta == nil {
						meta = map[string]interface{}{}
					}
					meta["schema_version"] = WorkspaceSchemaVersion
					ws["metadata"] = meta
				}
				return json.Marshal(doc)
			},
		},
	}
}
