// Package config holds client protocol configuration loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otforge/otcore/crypto"
)

// Client holds everything the protocol engine needs to talk to a server of
// this protocol family: the version identity sent at login, the shipped
// server public key for the handshake, and transport tuning.
type Client struct {
	// Identity announced in login and enter-world requests.
	Version      uint16 `yaml:"version"`
	OS           uint16 `yaml:"os"`
	DatSignature uint32 `yaml:"dat_signature"`
	SprSignature uint32 `yaml:"spr_signature"`
	PicSignature uint32 `yaml:"pic_signature"`

	// Pre-shared server public key, decimal strings.
	RSAModulus  string `yaml:"rsa_modulus"`
	RSAExponent uint64 `yaml:"rsa_exponent"`

	// Transport
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	QueueSize      int           `yaml:"queue_size"`

	// Default login endpoint.
	LoginHost string `yaml:"login_host"`
	LoginPort int    `yaml:"login_port"`
}

// defaultModulus is the public key servers of this protocol family ship
// with; overridden in config for servers using their own key.
const defaultModulus = "1091201329673994292788609605089955415282375029027981291234687579" +
	"3726629149257644633073969600111060390723088861007265581882535850" +
	"3429057592827629436413108566029093628212635953836686562675849720" +
	"6207862794310902180176810615217550567108238764764442605581471797" +
	"07119674283982419152118103759076030616683978566631413"

// DefaultClient returns a Client config with sensible defaults.
func DefaultClient() Client {
	return Client{
		Version:        772,
		OS:             2,
		RSAModulus:     defaultModulus,
		RSAExponent:    65537,
		ConnectTimeout: 5 * time.Second,
		PingInterval:   30 * time.Second,
		QueueSize:      256,
		LoginHost:      "127.0.0.1",
		LoginPort:      7171,
	}
}

// LoadClient loads client config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// PublicKey parses the configured modulus and exponent.
func (c Client) PublicKey() (*crypto.PublicKey, error) {
	pk, err := crypto.NewPublicKey(c.RSAModulus, c.RSAExponent)
	if err != nil {
		return nil, fmt.Errorf("parsing server public key: %w", err)
	}
	return pk, nil
}
