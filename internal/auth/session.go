package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name used for OS keyring entries.
	KeyringService = "tally-cli"
	// FallbackDir holds session files, relative to the home directory, when
	// no keyring is reachable.
	FallbackDir = ".tally/sessions"

	manifestKey = "_manifest"
)

var (
	ErrEmptyName = errors.New("session name cannot be empty")
	ErrExpired   = errors.New("session expired")
)

// SessionData is a named set of cookies captured from a logged-in browser.
type SessionData struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Cookies   []Cookie          `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// Cookie mirrors the DevTools cookie shape so exports import unchanged.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Expired reports whether the earliest cookie expiry has passed.
func (s *SessionData) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SetExpiryFromCookies sets ExpiresAt to the latest persistent cookie
// expiry. Sessions made only of session cookies never expire.
func (s *SessionData) SetExpiryFromCookies() {
	var latest float64
	for _, c := range s.Cookies {
		if c.Expires > latest {
			latest = c.Expires
		}
	}
	s.ExpiresAt = time.Time{}
	if latest > 0 {
		s.ExpiresAt = time.Unix(int64(latest), 0)
	}
}

// HTTPCookies converts the session for a net/http cookie jar.
func (s *SessionData) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			hc.SameSite = http.SameSiteStrictMode
		case "lax":
			hc.SameSite = http.SameSiteLaxMode
		case "none":
			hc.SameSite = http.SameSiteNoneMode
		}
		out = append(out, hc)
	}
	return out
}

// CookieParams converts the session for network.SetCookies.
func (s *SessionData) CookieParams() []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none":
			p.SameSite = network.CookieSameSiteNone
		}
		out = append(out, p)
	}
	return out
}

// Vault persists sessions in the OS keyring, or as 0600 JSON files when the
// keyring is unavailable (containers, CI, Codespaces).
type Vault struct {
	dir string

	once    sync.Once
	useFile bool
	forced  bool
}

// NewVault returns a vault that probes the keyring on first use and falls
// back to dir.
func NewVault(dir string) *Vault {
	return &Vault{dir: dir}
}

// NewFileVault always stores sessions under dir.
func NewFileVault(dir string) *Vault {
	return &Vault{dir: dir, useFile: true, forced: true}
}

// DefaultDir is ~/.tally/sessions.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FallbackDir
	}
	return filepath.Join(home, FallbackDir)
}

func (v *Vault) fileMode() bool {
	if v.forced {
		return true
	}
	v.once.Do(func() {
		if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
			v.useFile = true
			return
		}
		const probe = "_tally_keyring_probe_"
		if err := keyring.Set(KeyringService, probe, "ok"); err != nil {
			v.useFile = true
			return
		}
		_ = keyring.Delete(KeyringService, probe)
	})
	return v.useFile
}

// Backend names the storage in use, for display.
func (v *Vault) Backend() string {
	if v.fileMode() {
		return "file:" + v.dir
	}
	return "keyring"
}

func (v *Vault) path(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	if err := os.MkdirAll(v.dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(v.dir, name+".json"), nil
}

// Save stores the session and records it in the manifest.
func (v *Vault) Save(session *SessionData) error {
	if session.Name == "" {
		return ErrEmptyName
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if v.fileMode() {
		path, err := v.path(session.Name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to save session file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, session.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return v.updateManifest(session.Name, true)
}

// Load returns the named session, or ErrExpired once its cookies lapse.
func (v *Vault) Load(name string) (*SessionData, error) {
	session, err := v.Peek(name)
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		return nil, ErrExpired
	}
	return session, nil
}

// Peek loads the session without the expiry check.
func (v *Vault) Peek(name string) (*SessionData, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	var raw []byte
	if v.fileMode() {
		path, err := v.path(name)
		if err != nil {
			return nil, err
		}
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load session file: %w", err)
		}
	} else {
		data, err := keyring.Get(KeyringService, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load from keyring: %w", err)
		}
		raw = []byte(data)
	}

	var session SessionData
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	return &session, nil
}

// Delete removes the session. Deleting a missing file session is not an error.
func (v *Vault) Delete(name string) error {
	if name == "" {
		return ErrEmptyName
	}

	if v.fileMode() {
		path, err := v.path(name)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, name); err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return v.updateManifest(name, false)
}

// List returns stored session names in sorted order.
func (v *Vault) List() ([]string, error) {
	var names []string
	if v.fileMode() {
		entries, err := os.ReadDir(v.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
				names = append(names, strings.TrimSuffix(e.Name(), ".json"))
			}
		}
	} else {
		data, err := keyring.Get(KeyringService, manifestKey)
		if err != nil {
			return []string{}, nil
		}
		if err := json.Unmarshal([]byte(data), &names); err != nil {
			return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
		}
	}
	sort.Strings(names)
	return names, nil
}

// keyring has no enumeration API, so names are tracked in a manifest entry
func (v *Vault) updateManifest(name string, add bool) error {
	names, _ := v.List()
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	if add {
		out = append(out, name)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, manifestKey, string(data))
}
