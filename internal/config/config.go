package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrNoServer is returned for instance files that do not name a server.
var ErrNoServer = errors.New("no server specified")

// Instance is the configuration of one bot connected to one IRC network.
type Instance struct {
	Name     string
	Path     string
	Server   string
	Port     int
	UseTLS   bool
	Nickname string
	Username string
	Realname string
	Password string
}

const (
	defaultNickname = "alisbot"
	defaultRealname = "alisbot channel search"
	defaultPort     = 6667
	defaultTLSPort  = 6697
)

// LoadInstance reads and validates the TOML instance file at path.
func LoadInstance(path string) (Instance, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return Instance{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		return Instance{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Instance{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Name     string `toml:"name"`
		Server   string `toml:"server"`
		Port     int    `toml:"port"`
		UseTLS   bool   `toml:"use_tls"`
		Nickname string `toml:"nickname"`
		Username string `toml:"username"`
		Realname string `toml:"realname"`
		Password string `toml:"password"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Instance{}, fmt.Errorf("parse config: %w", err)
	}

	inst := Instance{
		Name:     strings.TrimSpace(raw.Name),
		Path:     resolved,
		Server:   strings.TrimSpace(raw.Server),
		Port:     raw.Port,
		UseTLS:   raw.UseTLS,
		Nickname: strings.TrimSpace(raw.Nickname),
		Username: strings.TrimSpace(raw.Username),
		Realname: strings.TrimSpace(raw.Realname),
		Password: raw.Password,
	}
	if inst.Server == "" {
		return Instance{}, fmt.Errorf("configuration file %s: %w", resolved, ErrNoServer)
	}
	if inst.Port < 0 || inst.Port > 65535 {
		return Instance{}, fmt.Errorf("configuration file %s: invalid port %d", resolved, inst.Port)
	}
	if inst.Port == 0 {
		inst.Port = defaultPort
		if inst.UseTLS {
			inst.Port = defaultTLSPort
		}
	}
	if inst.Name == "" {
		inst.Name = strings.TrimSuffix(filepath.Base(resolved), filepath.Ext(resolved))
	}
	if inst.Nickname == "" {
		inst.Nickname = defaultNickname
	}
	if inst.Username == "" {
		inst.Username = inst.Nickname
	}
	if inst.Realname == "" {
		inst.Realname = defaultRealname
	}
	return inst, nil
}

// Addr returns the host:port to dial.
func (i Instance) Addr() string {
	return net.JoinHostPort(i.Server, strconv.Itoa(i.Port))
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}
