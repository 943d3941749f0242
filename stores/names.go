package stores

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/mike76-dev/nbnsd/nbt"
)

// NamesStore keeps the names the daemon owns, merged from the config file
// and from names added at runtime through the API.
type NamesStore struct {
	Mu    sync.Mutex
	Names map[string]nbt.Name // keyed by the display form

	dir string
}

// NewJSONNamesStore loads the owned names from names.json, if present.
func NewJSONNamesStore(dir string) (*NamesStore, error) {
	ns := &NamesStore{
		Names: make(map[string]nbt.Name),
		dir:   dir,
	}
	err := ns.load()
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (ns *NamesStore) load() error {
	var names []NameConfig
	if js, err := os.ReadFile(filepath.Join(ns.dir, "names.json")); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	} else if err := json.Unmarshal(js, &names); err != nil {
		return err
	}
	for _, nc := range names {
		name, err := nbt.NewName(nc.Value, nc.Scope, nc.Purpose)
		if err != nil {
			return err
		}
		ns.Names[name.String()] = name
	}
	return nil
}

// Add registers a new owned name.
func (ns *NamesStore) Add(name nbt.Name) {
	ns.Mu.Lock()
	defer ns.Mu.Unlock()
	ns.Names[name.String()] = name
}

// Lookup finds an owned name by its value, scope and purpose.
func (ns *NamesStore) Lookup(name nbt.Name) (nbt.Name, bool) {
	ns.Mu.Lock()
	defer ns.Mu.Unlock()
	n, ok := ns.Names[name.String()]
	return n, ok
}

// All returns the owned names.
func (ns *NamesStore) All() []nbt.Name {
	ns.Mu.Lock()
	defer ns.Mu.Unlock()
	names := make([]nbt.Name, 0, len(ns.Names))
	for _, name := range ns.Names {
		names = append(names, name)
	}
	return names
}

// Save persists the owned names. The caller is expected to hold Mu.
func (ns *NamesStore) Save() error {
	names := make([]NameConfig, 0, len(ns.Names))
	for _, name := range ns.Names {
		names = append(names, NameConfig{
			Value:   name.Value,
			Scope:   name.Scope,
			Purpose: name.Purpose,
		})
	}
	js, err := json.MarshalIndent(names, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(ns.dir, "names.json"), js, 0660)
}
