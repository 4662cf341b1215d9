package config

import "github.com/jrsteele09/go-authserver-security/clients"

// SeedUser is a resource owner created at startup. Password is plain text and hashed on load.
type SeedUser struct {
	Username    string   `yaml:"username"`
	Email       string   `yaml:"email"`
	Password    string   `yaml:"password"`
	Authorities []string `yaml:"authorities"`
}

type BootstrapConfig interface {
	GetSeedClients() []*clients.Client
	GetSeedUsers() []SeedUser
}

type seedSection struct {
	Clients []*clients.Client `yaml:"clients"`
	Users   []SeedUser        `yaml:"users"`
}

type Bootstrap struct {
	file seedSection
}

var _ BootstrapConfig = Bootstrap{}

func (b Bootstrap) GetSeedClients() []*clients.Client {
	return b.file.Clients
}

func (b Bootstrap) GetSeedUsers() []SeedUser {
	return b.file.Users
}
