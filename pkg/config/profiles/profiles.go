// Package profiles holds connection settings for DLHub services.
//
// A profile names a service endpoint and how to trust and authenticate
// with it. Profiles are kept together in a YAML file, one per service,
// readable only by their owner.
package profiles

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"
)

var ErrProfileStoreNotFound = errors.New("profile file is not found")
var ErrProfileInvalid = errors.New("profile is invalid")

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

type Cert struct {
	// base64 encoded CA certificate
	CA string `yaml:"ca,omitempty"`
}

// Profile is everything needed to reach one DLHub service.
type Profile struct {
	// endpoint of the service
	ApiRoot string `yaml:"apiRoot"`

	// certificate to trust the service with
	Cert Cert `yaml:"cert,omitempty"`

	// static bearer token sent with each request.
	//
	// How the token is obtained is out of scope here; whatever is set
	// is passed through as-is.
	Token string `yaml:"token,omitempty"`
}

func verifyUrl(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// Verify Profile
//
// # Return
//
// nil if it is valid. Otherwise, ErrProfileInvalid error.
func (p *Profile) Verify() error {
	if !verifyUrl(p.ApiRoot) {
		return fmt.Errorf("%w: apiRoot is not URL: %s", ErrProfileInvalid, p.ApiRoot)
	}
	if p.Cert.CA != "" && !verifyPEM(p.Cert.CA) {
		return fmt.Errorf("%w: cert.ca is not PEM", ErrProfileInvalid)
	}
	return nil
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(path string) (ProfileStore, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, path)
		}
		return nil, err
	}
	return Unmarshall(buf)
}

// Unmarshall profile store from yaml in byte array.
func Unmarshall(buf []byte) (ProfileStore, error) {
	ret := map[string]*Profile{}
	if err := yaml.Unmarshal(buf, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Save writes the profile store to file, replacing what is there.
//
// The file is written aside first and moved into place, so a crash
// mid-write cannot leave a half-written store. Profiles can carry
// tokens, so the file is kept at mode 0600.
func (ps ProfileStore) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".profiles-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := f.Chmod(os.FileMode(0600)); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
