package store

import "database/sql"

// SetSeedFileHash records the content hash of an imported template file.
func (s *Store) SetSeedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO template_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		"seed:"+path, hash, hash,
	)
	return err
}

// GetSeedFileHash returns the recorded hash for a template file.
// Returns empty string and nil error if the file was never imported.
func (s *Store) GetSeedFileHash(path string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM template_metadata WHERE key = ?`, "seed:"+path).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
