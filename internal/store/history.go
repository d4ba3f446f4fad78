package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/request"
	"github.com/unkn0wn-root/commandpost/internal/response"
)

// Record is one stored exchange. Request and Response hold the JSON
// documents exactly as persisted.
type Record struct {
	ID        int64  `json:"id"`
	Request   string `json:"request"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

func (r Record) DecodeRequest() (request.Descriptor, error) {
	var d request.Descriptor
	if err := json.Unmarshal([]byte(r.Request), &d); err != nil {
		return request.Descriptor{}, errdef.Wrap(errdef.CodePersistence, err, "decode history request %d", r.ID)
	}
	return d, nil
}

func (r Record) DecodeResponse() (response.Descriptor, error) {
	var d response.Descriptor
	if err := json.Unmarshal([]byte(r.Response), &d); err != nil {
		return response.Descriptor{}, errdef.Wrap(errdef.CodePersistence, err, "decode history response %d", r.ID)
	}
	return d, nil
}

// SaveHistory records one completed exchange and returns its id.
func (s *Store) SaveHistory(ctx context.Context, req request.Descriptor, resp response.Descriptor) (int64, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return 0, errdef.Wrap(errdef.CodePersistence, err, "encode request")
	}
	respJSON, err := json.Marshal(resp)
	if err != nil {
		return 0, errdef.Wrap(errdef.CodePersistence, err, "encode response")
	}
	res, err := s.exec(ctx, `INSERT INTO history (request, response) VALUES (?, ?)`, string(reqJSON), string(respJSON))
	if err != nil {
		return 0, errdef.Wrap(errdef.CodePersistence, err, "save history")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errdef.Wrap(errdef.CodePersistence, err, "save history")
	}
	s.logger.Debug("saved history", "id", id)
	return id, nil
}

// LoadHistory returns the most recent records, newest first.
func (s *Store) LoadHistory(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request, response, timestamp FROM history ORDER BY id DESC LIMIT ?`,
		s.historyLimit)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "load history")
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Request, &rec.Response, &rec.Timestamp); err != nil {
			return nil, errdef.Wrap(errdef.CodePersistence, err, "scan history")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "load history")
	}
	return records, nil
}

// GetHistoryItem returns false when id does not exist.
func (s *Store) GetHistoryItem(ctx context.Context, id int64) (Record, bool, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx,
		`SELECT id, request, response, timestamp FROM history WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Request, &rec.Response, &rec.Timestamp)
	if isNoRows(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errdef.Wrap(errdef.CodePersistence, err, "load history item %d", id)
	}
	return rec, true, nil
}

// DeleteHistoryItem reports whether a row was removed.
func (s *Store) DeleteHistoryItem(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return false, errdef.Wrap(errdef.CodePersistence, err, "delete history item %d", id)
	}
	return affected(res), nil
}

func (s *Store) DeleteAllHistory(ctx context.Context) error {
	if _, err := s.exec(ctx, `DELETE FROM history`); err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "delete history")
	}
	s.logger.Debug("deleted history")
	return nil
}

// ExportHistory writes every record oldest first, as a request JSON line
// followed by its response JSON line.
func (s *Store) ExportHistory(ctx context.Context, path string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT request, response FROM history ORDER BY id ASC`)
	if err != nil {
		return 0, errdef.Wrap(errdef.CodePersistence, err, "export history")
	}
	defer rows.Close()

	file, err := os.Create(path)
	if err != nil {
		return 0, errdef.Wrap(errdef.CodePersistence, err, "create %s", path)
	}
	w := bufio.NewWriter(file)

	count := 0
	for rows.Next() {
		var reqJSON, respJSON string
		if err := rows.Scan(&reqJSON, &respJSON); err != nil {
			_ = file.Close()
			return count, errdef.Wrap(errdef.CodePersistence, err, "scan history")
		}
		if _, err := w.WriteString(reqJSON + "\n" + respJSON + "\n"); err != nil {
			_ = file.Close()
			return count, errdef.Wrap(errdef.CodePersistence, err, "write %s", path)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		_ = file.Close()
		return count, errdef.Wrap(errdef.CodePersistence, err, "export history")
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return count, errdef.Wrap(errdef.CodePersistence, err, "write %s", path)
	}
	if err := file.Close(); err != nil {
		return count, errdef.Wrap(errdef.CodePersistence, err, "close %s", path)
	}
	return count, nil
}
