package stores

import (
	"os"
	"testing"

	"github.com/mike76-dev/nbnsd/nbt"
)

func TestNamesStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ns, err := NewJSONNamesStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	fileSrv, err := nbt.NewName("FILESRV", "example.com", nbt.PURPOSE_FILE_SERVER)
	if err != nil {
		t.Fatal(err)
	}
	workstation, err := nbt.NewName("FILESRV", "example.com", nbt.PURPOSE_WORKSTATION)
	if err != nil {
		t.Fatal(err)
	}
	ns.Add(fileSrv)
	ns.Add(workstation)

	ns.Mu.Lock()
	err = ns.Save()
	ns.Mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := NewJSONNamesStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.All()) != 2 {
		t.Fatalf("expected 2 names, got %d", len(loaded.All()))
	}
	if name, ok := loaded.Lookup(fileSrv); !ok || name != fileSrv {
		t.Errorf("file server name lost: %v", name)
	}
}

func TestNamesStoreRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	js := `[{"value": "THISNAMEISTOOLONGTOFIT", "scope": "", "purpose": 0}]`
	if err := os.WriteFile(dir+"/names.json", []byte(js), 0660); err != nil {
		t.Fatal(err)
	}

	if _, err := NewJSONNamesStore(dir); err == nil {
		t.Error("over-long name accepted from names.json")
	}
}
