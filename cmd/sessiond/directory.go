package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

var (
	errInvalidCredentials = errors.New("sessiond.invalid_credentials")
	errInvalidDirectory   = errors.New("sessiond.invalid_directory")
)

// directory is the YAML file listing the companies served and their users:
//
//	tenants:
//	  - id: 1
//	    abbr: acme
//	    name: Acme Inc.
//	    active: true
//	    users:
//	      - id: 10
//	        username: alice
//	        password_hash: $2a$10$...
type directory struct {
	Tenants []directoryTenant `yaml:"tenants"`

	users map[int64]map[string]directoryUser
}

type directoryTenant struct {
	tenant.Tenant `yaml:",inline"`
	Users         []directoryUser `yaml:"users"`
}

type directoryUser struct {
	ID           int64  `yaml:"id"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

func loadDirectory(path string) (*directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	return parseDirectory(data)
}

func parseDirectory(data []byte) (*directory, error) {
	var d directory
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, errors.Join(errInvalidDirectory, err)
	}

	d.users = make(map[int64]map[string]directoryUser, len(d.Tenants))
	for _, t := range d.Tenants {
		if t.ID <= 0 || strings.TrimSpace(t.Abbr) == "" {
			return nil, fmt.Errorf("%w: tenant %q needs a positive id and an abbr", errInvalidDirectory, t.Name)
		}
		if _, dup := d.users[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate tenant id %d", errInvalidDirectory, t.ID)
		}
		users := make(map[string]directoryUser, len(t.Users))
		for _, u := range t.Users {
			name := strings.ToLower(strings.TrimSpace(u.Username))
			if u.ID <= 0 || name == "" {
				return nil, fmt.Errorf("%w: tenant %d: user needs a positive id and a username", errInvalidDirectory, t.ID)
			}
			if _, dup := users[name]; dup {
				return nil, fmt.Errorf("%w: tenant %d: duplicate username %q", errInvalidDirectory, t.ID, name)
			}
			users[name] = u
		}
		d.users[t.ID] = users
	}
	return &d, nil
}

// provider indexes the directory's tenants for the tenant middleware.
func (d *directory) provider() *tenant.StaticProvider {
	p := tenant.NewStaticProvider()
	for _, t := range d.Tenants {
		p.Add(t.Tenant)
	}
	return p
}

// authenticate returns the id of the user of companyID whose bcrypt hash
// matches password.
func (d *directory) authenticate(companyID int64, username, password string) (int64, error) {
	u, ok := d.users[companyID][strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return 0, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return 0, errInvalidCredentials
	}
	return u.ID, nil
}

// hasUser reports whether userID belongs to companyID.
func (d *directory) hasUser(companyID, userID int64) bool {
	for _, u := range d.users[companyID] {
		if u.ID == userID {
			return true
		}
	}
	return false
}
