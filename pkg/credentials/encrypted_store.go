package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"friendgeo/internal/jsonl"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	passphraseEnv = "FRIENDGEO_PASSPHRASE"
)

// EncryptedFileStore keeps keys in an AES-GCM file whose key is derived with
// PBKDF2 from a passphrase.
type EncryptedFileStore struct {
	mu         sync.RWMutex
	path       string
	passphrase string
}

type fileFormat struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore opens the store at path. The passphrase comes from
// FRIENDGEO_PASSPHRASE or a generated file in passphraseDir.
func NewEncryptedFileStore(path, passphraseDir string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	pass, err := loadPassphrase(passphraseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: pass}, nil
}

func (e *EncryptedFileStore) Name() string { return "encrypted-file" }

func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.Key == "" {
		return ErrInvalidCredential
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	creds, salt, err := e.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load existing credentials: %w", err)
	}
	if creds == nil {
		creds = make(map[Provider]Credential)
	}
	creds[cred.Provider] = *cred
	return e.save(creds, salt)
}

func (e *EncryptedFileStore) Retrieve(p Provider) (*Credential, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	creds, _, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	c, ok := creds[p]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &c, nil
}

func (e *EncryptedFileStore) List() ([]*Credential, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	creds, _, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*Credential, 0, len(creds))
	for _, c := range creds {
		c := c
		out = append(out, &c)
	}
	return out, nil
}

func (e *EncryptedFileStore) Delete(p Provider) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	creds, salt, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrCredentialNotFound
		}
		return err
	}
	if _, ok := creds[p]; !ok {
		return ErrCredentialNotFound
	}
	delete(creds, p)
	if len(creds) == 0 {
		return os.Remove(e.path)
	}
	return e.save(creds, salt)
}

func (e *EncryptedFileStore) load() (map[Provider]Credential, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}
	var ff fileFormat
	if err := json.Unmarshal(content, &ff); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(ff.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(ff.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode credential data: %w", err)
	}

	plain, err := decrypt(sealed, deriveKey(e.passphrase, salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	var creds map[Provider]Credential
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, salt, nil
}

func (e *EncryptedFileStore) save(creds map[Provider]Credential, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	sealed, err := encrypt(plain, deriveKey(e.passphrase, salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	return jsonl.WriteJSON(e.path, fileFormat{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now().UTC(),
	})
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

func loadPassphrase(dir string) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}

	path := filepath.Join(dir, ".passphrase")
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := base64.URLEncoding.EncodeToString(b)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
