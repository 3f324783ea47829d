package history

// ConfigHash returns the persisted configuration hash of a task.
func (t *Tx) ConfigHash(task string) (string, bool, error) {
	var hash string
	err := t.queryRow("SELECT hash FROM task_config_hashes WHERE task = ?", task).Scan(&hash)
	if notFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, persistenceError("config hash", err)
	}
	return hash, true, nil
}

// SetConfigHash persists the configuration hash a task completed with.
func (t *Tx) SetConfigHash(task, hash string) error {
	_, err := t.exec(`INSERT INTO task_config_hashes (task, hash, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(task) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
		task, hash, t.stamp())
	return persistenceError("set config hash", err)
}
