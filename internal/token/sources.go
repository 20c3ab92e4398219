package token

import (
	"errors"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService namespaces beacon entries in the OS keyring.
	KeyringService = "beacon"

	// EnvSessionToken is the session-scoped credential variable.
	EnvSessionToken = "BEACON_SESSION_TOKEN"

	sessionTokenFile = "session_token"
	authTokenFile    = "auth_token"
	accessTokenFile  = "access_token"

	oauthSessionFile = "oauth_session.env"
	ssoSessionFile   = "sso_session.env"
	sessionEnvKey    = "SESSION_TOKEN"
)

// KeyringSource reads the primary durable credential from the OS
// keyring.
type KeyringSource struct {
	Service string
	User    string
}

func (s KeyringSource) Name() string { return "keyring:" + s.Service + "/" + s.User }

func (s KeyringSource) Token() (string, error) {
	value, err := keyring.Get(s.Service, s.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// DotenvSource reads one key out of a dotenv-format session file, the
// shape third-party auth integrations drop on disk.
type DotenvSource struct {
	Path string
	Key  string
}

func (s DotenvSource) Name() string { return "dotenv:" + s.Path }

func (s DotenvSource) Token() (string, error) {
	values, err := godotenv.Read(s.Path)
	if err != nil {
		// A missing integration file is an expected miss.
		return "", nil
	}
	return values[s.Key], nil
}

// DefaultChain assembles the fixed resolution order: keyring, session
// env var, session token file, two legacy token files, the token
// attached to the configured user, and two third-party auth session
// files.
func DefaultChain(stateDir, userID, configToken string) []Source {
	return []Source{
		KeyringSource{Service: KeyringService, User: userID},
		EnvSource{Key: EnvSessionToken},
		FileSource{Path: filepath.Join(stateDir, sessionTokenFile)},
		FileSource{Path: filepath.Join(stateDir, authTokenFile)},
		FileSource{Path: filepath.Join(stateDir, accessTokenFile)},
		StaticSource{SourceName: "config:user_token", Value: configToken},
		DotenvSource{Path: filepath.Join(stateDir, oauthSessionFile), Key: sessionEnvKey},
		DotenvSource{Path: filepath.Join(stateDir, ssoSessionFile), Key: sessionEnvKey},
	}
}
