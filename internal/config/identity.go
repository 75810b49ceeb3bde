package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

// Identity is the spec-mandated [Main] Name=/Token= pair (§6), the bot's
// chat-platform credential.
type Identity struct {
	Name  string
	Token string
}

// ResolveIdentity implements the CLI/config-file precedence rule from §6 and
// original_source/src/main.rs's parse_conf: when a config path is given it
// always wins, regardless of whether --token was also passed; a bare token
// with no config path is used as-is; neither present is a fatal startup
// error.
func ResolveIdentity(token, confPath string) (*Identity, error) {
	switch {
	case confPath != "":
		return loadIdentityFile(confPath)
	case token != "":
		return &Identity{Token: token}, nil
	default:
		return nil, domain.Fatal("no token or config file supplied", nil)
	}
}

// loadIdentityFile parses the [Main] Name=/Token= INI file.
func loadIdentityFile(path string) (*Identity, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, domain.Fatal(fmt.Sprintf("reading identity config %s", path), err)
	}

	section := f.Section("Main")
	id := &Identity{
		Name:  section.Key("Name").String(),
		Token: section.Key("Token").String(),
	}
	if id.Token == "" {
		return nil, domain.Fatal(fmt.Sprintf("identity config %s has no Token", path), nil)
	}
	return id, nil
}
