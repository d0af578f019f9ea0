package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoCredentials is returned by Store.Obtain when neither the token cache
// nor the service-account key yields a usable credential. It aborts the run
// before any document is processed.
var ErrNoCredentials = errors.New("no credentials")

// KeyStorage fetches the service-account key blob to a local file.
type KeyStorage interface {
	Fetch(ctx context.Context, path string) error
}

// Credential wraps the token source used to authorise the Drive, Sheets and
// BigQuery clients for the duration of one run.
type Credential struct {
	source oauth2.TokenSource
}

func (c *Credential) TokenSource() oauth2.TokenSource {
	return c.source
}

// Store resolves and persists the authorisation token: first from the local
// token cache, then from a remotely fetched service-account key.
type Store struct {
	scopes  []string
	keys    KeyStorage
	keyfile string
	tokens  string
	logger  zerolog.Logger
}

func NewStore(cfg Config, keys KeyStorage, logger zerolog.Logger) *Store {
	return &Store{
		scopes:  cfg.Scopes,
		keys:    keys,
		keyfile: filepath.Join(cfg.TempDir, cfg.CredentialsFile),
		tokens:  filepath.Join(cfg.TempDir, cfg.TokenFile),
		logger:  logger,
	}
}

// Obtain returns a credential backed by the cached token if it is still
// valid, falling back to a token source built from the service-account key.
// A service-account token cannot be refreshed without the signing key, so an
// expired cache also takes the key path - the JWT token source is the
// standard refresh protocol for this credential type.
func (s *Store) Obtain(ctx context.Context) (*Credential, error) {
	if token, err := tokenFromFile(s.tokens); err == nil && token.Valid() {
		return &Credential{source: oauth2.StaticTokenSource(token)}, nil
	} else if err == nil {
		s.logger.Debug().Time("expiry", token.Expiry).Msg("cached token expired")
	}

	if err := s.keys.Fetch(ctx, s.keyfile); err != nil {
		// A key file from a previous run may still be usable.
		s.logger.Error().Err(err).Msg("unable to fetch service-account key")
	}

	b, err := os.ReadFile(s.keyfile)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrNoCredentials, err)
	}

	config, err := google.JWTConfigFromJSON(b, s.scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrNoCredentials, err)
	}

	return &Credential{source: config.TokenSource(ctx)}, nil
}

// Save writes the credential's current token over the token cache for the
// next run. A credential without a token value is skipped.
func (s *Store) Save(credential *Credential) error {
	token, err := credential.source.Token()
	if err != nil {
		return err
	}

	if token.AccessToken == "" {
		return nil
	}

	return saveToken(s.tokens, token)
}

// Retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)

	return token, err
}

// Saves a token to a file path.
func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token (%v)", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
