// Package fs provides file-system adapters.
package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const balanceFileName = "balance.json"

// balanceSnapshot is the on-disk schema for the balance file.
type balanceSnapshot struct {
	Balance   uint64    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BalanceFile persists the customer's balance between runs of the CLI.
// The core never requires persistence; this adapter exists so the binary can
// restart without resetting the configured starting balance.
type BalanceFile struct {
	dir string
}

// NewBalanceFile creates a balance file repository in the given directory.
func NewBalanceFile(dir string) *BalanceFile {
	return &BalanceFile{dir: dir}
}

// Load reads the last saved balance. The second return is false when no
// snapshot exists yet; that is not an error.
func (r *BalanceFile) Load() (uint64, bool, error) {
	path := filepath.Join(r.dir, balanceFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var snap balanceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, false, err
	}
	return snap.Balance, true, nil
}

// Save persists the balance atomically (write to temp file, then rename) so a
// crash mid-write cannot corrupt the snapshot.
func (r *BalanceFile) Save(balance uint64) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	path := filepath.Join(r.dir, balanceFileName)
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(balanceSnapshot{
		Balance:   balance,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
