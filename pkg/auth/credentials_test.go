package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testCookie = "a1=18c0f; webId=9f1e; web_session=040069b2f0c1d2e3f4a5b6c7d8e9f0a1b2c3d4"

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Username:     "testuser",
		Cookie:       testCookie,
		UserAgent:    "TestAgent/1.0",
		LastModified: time.Now(),
	}

	if err := manager.Store(account); err != nil {
		t.Errorf("Failed to store account: %v", err)
	}

	retrieved, err := manager.Retrieve("testuser")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Username != account.Username {
		t.Errorf("Username mismatch: got %s, want %s", retrieved.Username, account.Username)
	}
	if retrieved.Cookie != account.Cookie {
		t.Errorf("Cookie mismatch: got %s, want %s", retrieved.Cookie, account.Cookie)
	}

	accounts, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list accounts: %v", err)
	}
	if len(accounts) == 0 {
		t.Error("Expected at least one account in list")
	}

	sanitized := SanitizeAccount(account)
	if sanitized.Cookie == account.Cookie {
		t.Error("Cookie should be masked")
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}

	if err := manager.Delete("testuser"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("testuser"); err == nil {
		t.Error("Expected error retrieving deleted account")
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreFallsBack(t *testing.T) {
	primary, secondary := NewMockStore(), NewMockStore()
	primary.StoreError = ErrStoreUnavailable
	manager := NewMockManagerWithStores(primary, secondary)

	if err := manager.Store(&Account{Username: "work", Cookie: testCookie}); err != nil {
		t.Fatalf("Expected fallback store to accept the account: %v", err)
	}
	if primary.Count() != 0 {
		t.Errorf("Failing store should hold nothing, has %d", primary.Count())
	}
	if got := secondary.Stored(); len(got) != 1 || got[0] != "work" {
		t.Errorf("Expected secondary to store work, got %v", got)
	}
	stored, err := secondary.Retrieve("work")
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastModified.IsZero() {
		t.Error("Manager should stamp LastModified")
	}

	secondary.StoreError = errors.New("disk full")
	err = manager.Store(&Account{Username: "home", Cookie: testCookie})
	if err == nil || !errors.Is(err, secondary.StoreError) {
		t.Errorf("Expected the last store error to be wrapped, got %v", err)
	}
}

func TestManagerListMergesStores(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	keychain, vault, broken := NewMockStore(), NewMockStore(), NewMockStore()
	broken.ListError = errors.New("locked")
	_ = keychain.Store(&Account{Username: "zoe", Cookie: "web_session=old", LastModified: older})
	_ = vault.Store(&Account{Username: "zoe", Cookie: "web_session=new", LastModified: newer})
	_ = vault.Store(&Account{Username: "amy", Cookie: "web_session=amy", LastModified: older})

	manager := NewMockManagerWithStores(keychain, broken, vault)
	accounts, err := manager.List()
	if err != nil {
		t.Fatalf("A failing store should be skipped: %v", err)
	}
	if len(accounts) != 2 || accounts[0].Username != "amy" || accounts[1].Username != "zoe" {
		t.Fatalf("Expected [amy zoe], got %+v", accounts)
	}
	if accounts[1].Cookie != "web_session=new" {
		t.Errorf("Expected the most recent copy of zoe, got %s", accounts[1].Cookie)
	}

	def, err := manager.RetrieveDefault()
	if err != nil || def.Username != "amy" {
		t.Errorf("Expected amy as default, got %+v, %v", def, err)
	}

	if err := manager.Delete("zoe"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if keychain.Exists("zoe") || vault.Exists("zoe") {
		t.Error("Delete should remove the account from every store")
	}
	if err := manager.Delete("zoe"); err == nil {
		t.Error("Expected error deleting a missing account")
	}
}

func TestManagerRejectsCookieWithoutSession(t *testing.T) {
	manager, _ := NewMockManager()

	err := manager.Store(&Account{Username: "u", Cookie: "a1=1; webId=2"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if err := manager.Store(&Account{Username: "u"}); err == nil {
		t.Error("Expected error for empty cookie")
	}
}

func TestAccountCookies(t *testing.T) {
	a := &Account{Cookie: "Cookie: " + testCookie}
	cookies, err := a.Cookies()
	if err != nil {
		t.Fatalf("Failed to parse cookies: %v", err)
	}
	if len(cookies) != 3 {
		t.Fatalf("Expected 3 cookies, got %d", len(cookies))
	}
	if cookies[2].Name != SessionCookie {
		t.Errorf("Expected %s, got %s", SessionCookie, cookies[2].Name)
	}
	if err := ValidateCookie(testCookie); err != nil {
		t.Errorf("Expected valid cookie: %v", err)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_creds.enc")
	t.Setenv("XHSDL_PASSPHRASE", "test_passphrase_123")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	account := &Account{
		Username: "encrypted_user",
		Cookie:   "web_session=encrypted_session_value",
	}
	if err := store.Store(account); err != nil {
		t.Errorf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Cookie != account.Cookie {
		t.Errorf("Cookie mismatch after encryption/decryption")
	}

	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(fileContent, []byte("encrypted_session_value")) {
		t.Error("File contains plaintext session cookie")
	}

	if err := store.Delete("encrypted_user"); err != nil {
		t.Errorf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(tempFile); !os.IsNotExist(err) {
		t.Error("Expected file to be removed with its last account")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")

	t.Setenv("XHSDL_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Account{Username: "a", Cookie: "web_session=x"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("XHSDL_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("a"); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Expected ErrVaultLocked, got %v", err)
	}
	if err := other.Store(&Account{Username: "b", Cookie: "web_session=y"}); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Expected store into a locked vault to fail, got %v", err)
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("XHSDL_COOKIE", testCookie)
	t.Setenv("XHSDL_USER_AGENT", "EnvAgent/1.0")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Cookie != testCookie {
		t.Errorf("Cookie mismatch: got %s", account.Cookie)
	}
	if account.Username != "default" || account.UserAgent != "EnvAgent/1.0" {
		t.Errorf("Unexpected account %+v", account)
	}
	if !store.Exists("") {
		t.Error("Expected environment credentials to exist")
	}

	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	t.Setenv("XHSDL_COOKIE", "web_session=from_env")

	mock := NewMockStore()
	_ = mock.Store(&Account{Username: "stored", Cookie: "web_session=stored"})
	manager := NewMockManagerWithStores(mock, NewEnvironmentStore())

	account, err := manager.RetrieveDefault()
	if err != nil {
		t.Fatalf("Failed to retrieve default: %v", err)
	}
	if account.Cookie != "web_session=from_env" {
		t.Errorf("Expected environment cookie, got %s", account.Cookie)
	}
}

func TestRealManagerWithEncryptedStore(t *testing.T) {
	t.Setenv("XHSDL_PASSPHRASE", "test_passphrase_real_manager")

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}
	manager := NewMockManagerWithStores(encryptedStore)

	account := &Account{
		Username:     "realuser",
		Cookie:       testCookie,
		UserAgent:    "RealAgent/1.0",
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}

	accounts, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account in list, got %d", len(accounts))
	}

	retrieved, err := manager.Retrieve("realuser")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Cookie != account.Cookie {
		t.Errorf("Cookie mismatch: got %s, want %s", retrieved.Cookie, account.Cookie)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	accounts, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("Expected 0 accounts, got %d", len(accounts))
	}

	if err := store.Store(&Account{Username: "mockuser", Cookie: "web_session=mock"}); err != nil {
		t.Errorf("Failed to store account: %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 account, got %d", store.Count())
	}
	if !store.Exists("mockuser") {
		t.Error("Account should exist")
	}

	store.ListError = fmt.Errorf("injected error")
	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}
