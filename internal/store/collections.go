package store

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/request"
)

type Collection struct {
	Name     string               `json:"name"`
	Requests []request.Descriptor `json:"requests"`
}

// SaveCollection replaces the collection stored under name.
func (s *Store) SaveCollection(ctx context.Context, name string, requests []request.Descriptor) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errdef.New(errdef.CodePersistence, "collection name is required")
	}
	if requests == nil {
		requests = []request.Descriptor{}
	}
	data, err := json.Marshal(requests)
	if err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "encode collection %s", name)
	}
	if _, err := s.exec(ctx,
		`INSERT OR REPLACE INTO collections (name, requests) VALUES (?, ?)`,
		name, string(data),
	); err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "save collection %s", name)
	}
	return nil
}

// AppendToCollection adds req to name, creating the collection if needed.
func (s *Store) AppendToCollection(ctx context.Context, name string, req request.Descriptor) error {
	existing, _, err := s.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	return s.SaveCollection(ctx, name, append(existing.Requests, req))
}

func (s *Store) LoadCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, requests FROM collections ORDER BY name`)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "load collections")
	}
	defer rows.Close()

	collections := []Collection{}
	for rows.Next() {
		var (
			name string
			raw  string
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, errdef.Wrap(errdef.CodePersistence, err, "scan collection")
		}
		col, err := decodeCollection(name, raw)
		if err != nil {
			return nil, err
		}
		collections = append(collections, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "load collections")
	}
	return collections, nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (Collection, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT requests FROM collections WHERE name = ?`, name).Scan(&raw)
	if isNoRows(err) {
		return Collection{Name: name}, false, nil
	}
	if err != nil {
		return Collection{}, false, errdef.Wrap(errdef.CodePersistence, err, "load collection %s", name)
	}
	col, err := decodeCollection(name, raw)
	if err != nil {
		return Collection{}, false, err
	}
	return col, true, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return false, errdef.Wrap(errdef.CodePersistence, err, "delete collection %s", name)
	}
	return affected(res), nil
}

// ExportCollection writes the stored requests JSON array of name to path.
func (s *Store) ExportCollection(ctx context.Context, name, path string) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT requests FROM collections WHERE name = ?`, name).Scan(&raw)
	if isNoRows(err) {
		return errdef.New(errdef.CodePersistence, "collection %s not found", name)
	}
	if err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "load collection %s", name)
	}
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "write %s", path)
	}
	return nil
}

func decodeCollection(name, raw string) (Collection, error) {
	col := Collection{Name: name, Requests: []request.Descriptor{}}
	if strings.TrimSpace(raw) == "" {
		return col, nil
	}
	if err := json.Unmarshal([]byte(raw), &col.Requests); err != nil {
		return Collection{}, errdef.Wrap(errdef.CodePersistence, err, "decode collection %s", name)
	}
	return col, nil
}
