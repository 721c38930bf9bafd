package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion    = 2
	saltSize        = 32
	keySize         = 32
	kdfIterations   = 100000
	passphraseEnv   = "XHSDL_PASSPHRASE"
	passphraseFile  = ".passphrase"
	vaultPermission = 0600
)

// ErrVaultLocked is returned when the vault cannot be opened with the
// current passphrase
var ErrVaultLocked = errors.New("credential vault cannot be decrypted")

// EncryptedFileStore keeps session cookies in one AES-GCM sealed file. The
// key is derived from XHSDL_PASSPHRASE or a generated passphrase kept next
// to the configuration.
type EncryptedFileStore struct {
	path       string
	passphrase []byte

	mu sync.RWMutex

	keyMu   sync.Mutex
	keySalt []byte
	key     []byte
}

// vaultFile is the on-disk envelope. Sealed holds nonce||ciphertext of the
// JSON encoded accounts map.
type vaultFile struct {
	Version  int       `json:"version"`
	Salt     string    `json:"salt"`
	Sealed   string    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore opens the vault at path, creating its directory
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	passphrase, err := vaultPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		accounts[account.Username] = *account
		return nil
	})
}

func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, err := e.open()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns the stored accounts ordered by name
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, err := e.open()
	if err != nil {
		return nil, err
	}

	out := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		acc := account
		out = append(out, &acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Delete removes username. The vault file goes away with its last account.
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		if _, ok := accounts[username]; !ok {
			return ErrCredentialsNotFound
		}
		delete(accounts, username)
		return nil
	})
}

func (e *EncryptedFileStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

// update applies fn to the decrypted accounts and seals the result
func (e *EncryptedFileStore) update(fn func(map[string]Account) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, err := e.open()
	if err != nil {
		return err
	}
	if err := fn(accounts); err != nil {
		return err
	}

	if len(accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return e.seal(accounts)
}

// open reads the vault. A missing file is an empty vault.
func (e *EncryptedFileStore) open() (map[string]Account, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return make(map[string]Account), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}

	var vf vaultFile
	if err := json.Unmarshal(content, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(vf.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(vf.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vault: %w", err)
	}

	gcm, err := e.aead(salt)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrVaultLocked
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrVaultLocked
	}

	accounts := make(map[string]Account)
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, nil
}

// seal encrypts accounts under the current salt (a fresh one for a new
// vault) and swaps the file in place
func (e *EncryptedFileStore) seal(accounts map[string]Account) error {
	e.keyMu.Lock()
	salt := e.keySalt
	e.keyMu.Unlock()
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	gcm, err := e.aead(salt)
	if err != nil {
		return err
	}

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:  vaultVersion,
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Sealed:   base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plain, nil)),
		Modified: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, vaultPermission); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	return os.Rename(tmp, e.path)
}

// aead returns the AEAD for salt, deriving the key only when the salt
// changes
func (e *EncryptedFileStore) aead(salt []byte) (cipher.AEAD, error) {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()

	if e.key == nil || string(e.keySalt) != string(salt) {
		e.key = pbkdf2.Key(e.passphrase, salt, kdfIterations, keySize, sha256.New)
		e.keySalt = append([]byte(nil), salt...)
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// vaultPassphrase reads XHSDL_PASSPHRASE, else the passphrase file in the
// config directory, generating it on first use
func vaultPassphrase() (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}

	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, passphraseFile)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(pass), vaultPermission); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}
