package stores

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig lists all the fields needed to connect to a PostgreSQL database.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslMode"`
}

// String returns a connection string.
func (dc DatabaseConfig) String() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", dc.Host, dc.Port, dc.User, dc.Password, dc.Database, dc.SSLMode)
}

// NameConfig describes a single NetBIOS name the daemon owns and defends.
type NameConfig struct {
	Value   string `yaml:"value"`
	Scope   string `yaml:"scope"`
	Purpose byte   `yaml:"purpose"`
}

// Config lists the config fields.
type Config struct {
	Mode         string         `yaml:"mode"` // "broadcast" or "wins"
	BindAddress  string         `yaml:"bindAddress"`
	Address      string         `yaml:"address"` // the IPv4 address announced in responses
	APIPort      int            `yaml:"apiPort"`
	APIPassword  string         `yaml:"apiPassword"`
	MaxDatagrams int            `yaml:"maxDatagrams"` // per host between resets
	TTL          uint32         `yaml:"ttl"`          // seconds, granted to WINS registrations
	Names        []NameConfig   `yaml:"names"`
	Database     DatabaseConfig `yaml:"database"`
}

// ReadConfig tries to read the config from the specified directory.
func ReadConfig(dir string) (cfg Config, err error) {
	path := filepath.Join(dir, "nbnsd.yml")
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	err = dec.Decode(&cfg)
	return
}
