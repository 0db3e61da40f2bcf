package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Per-user keystore (file, 0600). Wallet seeds are sealed with AES-GCM under a
// key derived from the local user; app approvals are stored in the clear.
// Not a replacement for an OS keychain or hardware wallet.

var ErrKeyNotFound = errors.New("key not found")

type storeFile struct {
	Salt      string            `json:"salt"`
	Seeds     map[string]string `json:"seeds"` // wallet -> base64(nonce|ciphertext)
	Approvals map[string]bool   `json:"approvals"`
}

type Store struct {
	path string

	mu      sync.Mutex
	key     []byte
	keySalt string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) PutSeed(name, seed string) error {
	if name = norm(name); name == "" {
		return fmt.Errorf("wallet name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}
	ct, err := s.encrypt(&sf, []byte(seed))
	if err != nil {
		return err
	}
	sf.Seeds[name] = base64.StdEncoding.EncodeToString(ct)
	return s.save(sf)
}

func (s *Store) Seed(name string) (string, error) {
	if name = norm(name); name == "" {
		return "", fmt.Errorf("wallet name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return "", err
	}
	enc, ok := sf.Seeds[name]
	if !ok {
		return "", fmt.Errorf("seed %q: %w", name, ErrKeyNotFound)
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	pt, err := s.decrypt(&sf, raw)
	if err != nil {
		return "", fmt.Errorf("decrypt seed %q: %w", name, err)
	}
	return string(pt), nil
}

// DeleteSeed removes the wallet and any approval granted to it.
func (s *Store) DeleteSeed(name string) error {
	name = norm(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := sf.Seeds[name]; !ok {
		return fmt.Errorf("seed %q: %w", name, ErrKeyNotFound)
	}
	delete(sf.Seeds, name)
	delete(sf.Approvals, name)
	return s.save(sf)
}

func (s *Store) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sf.Seeds))
	for name := range sf.Seeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) SetApproved(name string, approved bool) error {
	if name = norm(name); name == "" {
		return fmt.Errorf("wallet name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return err
	}
	if approved {
		sf.Approvals[name] = true
	} else {
		delete(sf.Approvals, name)
	}
	return s.save(sf)
}

func (s *Store) Approved(name string) (bool, error) {
	name = norm(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return false, err
	}
	return sf.Approvals[name], nil
}

func (s *Store) load() (storeFile, error) {
	sf := storeFile{Seeds: map[string]string{}, Approvals: map[string]bool{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sf, nil
		}
		return sf, err
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse keystore: %w", err)
	}
	if sf.Seeds == nil {
		sf.Seeds = map[string]string{}
	}
	if sf.Approvals == nil {
		sf.Approvals = map[string]bool{}
	}
	return sf, nil
}

func (s *Store) save(sf storeFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil { // restrict directory
		return err
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// masterKey derives the sealing key from the local user and the file salt,
// creating the salt on first use.
func (s *Store) masterKey(sf *storeFile) ([]byte, error) {
	if sf.Salt == "" {
		salt := make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, err
		}
		sf.Salt = base64.StdEncoding.EncodeToString(salt)
	}
	if s.key != nil && s.keySalt == sf.Salt {
		return s.key, nil
	}
	salt, err := base64.StdEncoding.DecodeString(sf.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore salt: %w", err)
	}
	base := fmt.Sprintf("sorodeposit-%s-%s", runtime.GOOS, os.Getenv("USER"))
	s.key = argon2.IDKey([]byte(base), salt, 1, 64*1024, 4, 32)
	s.keySalt = sf.Salt
	return s.key, nil
}

func (s *Store) gcm(sf *storeFile) (cipher.AEAD, error) {
	key, err := s.masterKey(sf)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Store) encrypt(sf *storeFile, plain []byte) ([]byte, error) {
	gcm, err := s.gcm(sf)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func (s *Store) decrypt(sf *storeFile, ciphertext []byte) ([]byte, error) {
	gcm, err := s.gcm(sf)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
