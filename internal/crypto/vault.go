package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion      = 2
	defaultIterations = 480_000
	minIterations     = 100_000
	saltSize          = 16
	keySize           = 32 // AES-256
)

var errEmptyPassword = errors.New("crypto: vault password must not be empty")

// VenueCredentials is one venue's API key set as stored in the vault.
type VenueCredentials struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// vaultFile is the on-disk form. Venues is readable so an operator can see
// what a vault holds without the password; it is bound to the ciphertext as
// additional data, so editing it makes the vault fail to open. Box is
// base64(salt || nonce || ciphertext).
type vaultFile struct {
	Version    int      `json:"version"`
	Iterations int      `json:"iterations"`
	Venues     []string `json:"venues"`
	Box        string   `json:"box"`
}

// SealVault encrypts creds under password with PBKDF2-SHA256 and AES-256-GCM
// and returns the indented JSON file contents.
func SealVault(creds map[string]VenueCredentials, password string) ([]byte, error) {
	if password == "" {
		return nil, errEmptyPassword
	}
	normalized := make(map[string]VenueCredentials, len(creds))
	for name, c := range creds {
		normalized[strings.ToLower(strings.TrimSpace(name))] = c
	}
	plaintext, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("crypto: encode credentials: %w", err)
	}

	f := vaultFile{
		Version:    vaultVersion,
		Iterations: defaultIterations,
		Venues:     slices.Sorted(maps.Keys(normalized)),
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	aead, err := vaultCipher(password, salt, f.Iterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	box := append(salt, nonce...)
	box = aead.Seal(box, nonce, plaintext, f.additionalData())
	f.Box = base64.StdEncoding.EncodeToString(box)
	return json.MarshalIndent(f, "", "  ")
}

// OpenVault decrypts a file produced by SealVault. A wrong password and a
// tampered file are reported the same way.
func OpenVault(data []byte, password string) (map[string]VenueCredentials, error) {
	if password == "" {
		return nil, errEmptyPassword
	}
	var f vaultFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("crypto: parse vault: %w", err)
	}
	if f.Version != vaultVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", f.Version)
	}
	if f.Iterations < minIterations {
		return nil, fmt.Errorf("crypto: vault iterations %d below %d", f.Iterations, minIterations)
	}

	box, err := base64.StdEncoding.DecodeString(f.Box)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode vault box: %w", err)
	}
	if len(box) < saltSize {
		return nil, errors.New("crypto: vault box truncated")
	}
	salt, rest := box[:saltSize], box[saltSize:]

	aead, err := vaultCipher(password, salt, f.Iterations)
	if err != nil {
		return nil, err
	}
	if len(rest) < aead.NonceSize() {
		return nil, errors.New("crypto: vault box truncated")
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, f.additionalData())
	if err != nil {
		return nil, errors.New("crypto: cannot open vault: wrong password or modified file")
	}

	var creds map[string]VenueCredentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("crypto: decode credentials: %w", err)
	}
	return creds, nil
}

func (f vaultFile) additionalData() []byte {
	return fmt.Appendf(nil, "arbscanner-vault/v%d/%d/%s", f.Version, f.Iterations, strings.Join(f.Venues, ","))
}

func vaultCipher(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return aead, nil
}
