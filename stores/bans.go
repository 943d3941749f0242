package stores

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

type BansStore struct {
	Mu   sync.Mutex
	Bans map[string]struct{}

	dir string
}

func NewJSONBansStore(dir string) (*BansStore, error) {
	bs := &BansStore{
		Bans: make(map[string]struct{}),
		dir:  dir,
	}
	err := bs.load()
	if err != nil {
		return nil, err
	}
	return bs, nil
}

func (bs *BansStore) load() error {
	var bans []string
	if js, err := os.ReadFile(filepath.Join(bs.dir, "bans.json")); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	} else if err := json.Unmarshal(js, &bans); err != nil {
		return err
	}
	for _, ban := range bans {
		bs.Bans[ban] = struct{}{}
	}
	return nil
}

// Save persists the ban list. The caller is expected to hold Mu.
func (bs *BansStore) Save() error {
	bans := make([]string, 0, len(bs.Bans))
	for ban := range bs.Bans {
		bans = append(bans, ban)
	}
	js, err := json.MarshalIndent(bans, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(bs.dir, "bans.json"), js, 0660)
}
