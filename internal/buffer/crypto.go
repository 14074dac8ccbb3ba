package buffer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/ferr"
)

// sealContext holds the per-file AES-256-CBC state installed by
// EnableEncryption. A fresh key and IV are generated per file; Reset
// destroys it, requiring the caller to re-enable encryption for the
// next session (§4.2).
type sealContext struct {
	block cipher.Block
	iv    []byte
}

func newSealContext(pubKeyPath string) (*sealContext, container.AESDesc, error) {
	pemBytes, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return nil, container.AESDesc{}, ferr.Crypto("buffer", "EnableEncryption", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, container.AESDesc{}, ferr.Crypto("buffer", "EnableEncryption",
			fmt.Errorf("no PEM block in %s", pubKeyPath))
	}

	pub, pubDER, err := parsePublicKey(block.Bytes)
	if err != nil {
		return nil, container.AESDesc{}, ferr.Crypto("buffer", "EnableEncryption", err)
	}

	keyHash := sha256.Sum256(pubDER)

	key := make([]byte, container.AESKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, container.AESDesc{}, ferr.Crypto("buffer", "EnableEncryption", err)
	}
	iv := make([]byte, container.AESIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, container.AESDesc{}, ferr.Crypto("buffer", "EnableEncryption", err)
	}

	sealedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, container.AESDesc{}, ferr.Crypto("buffer", "EnableEncryption", err)
	}

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, container.AESDesc{}, ferr.Crypto("buffer", "EnableEncryption", err)
	}

	desc := container.AESDesc{
		PubKeyHash: keyHash[:],
		SealedKey:  sealedKey,
		IV:         iv,
	}
	return &sealContext{block: aesBlock, iv: iv}, desc, nil
}

// parsePublicKey accepts either an SubjectPublicKeyInfo or a PKCS1
// RSAPublicKey DER blob, returning the key and the exact DER bytes that
// were hashed for the AES_DESC's key identifier.
func parsePublicKey(der []byte) (*rsa.PublicKey, []byte, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaPub, ok := pub.(*rsa.PublicKey); ok {
			return rsaPub, der, nil
		}
		return nil, nil, fmt.Errorf("public key is not RSA")
	}
	rsaPub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, nil, fmt.Errorf("unrecognized RSA public key encoding: %w", err)
	}
	return rsaPub, der, nil
}

// seal PKCS7-pads plaintext to a multiple of 16, then CBC-encrypts it.
func (s *sealContext) seal(plaintext []byte) []byte {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(s.block, s.iv)
	mode.CryptBlocks(ciphertext, padded)
	return ciphertext
}

// Open reverses seal, given a private key to unwrap the sealed content
// key from an AESDesc. This is used only by tests exercising P3
// (encryption transparency given key); the reader core otherwise treats
// AES_DESC as informational per the open question in §9.
func Open(priv *rsa.PrivateKey, desc container.AESDesc, ciphertext []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, desc.SealedKey, nil)
	if err != nil {
		return nil, ferr.Crypto("buffer", "Open", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ferr.Crypto("buffer", "Open", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ferr.Format("buffer", "Open", "ciphertext not a multiple of block size")
	}
	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, desc.IV)
	mode.CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	if padLen == 0 {
		padLen = blockSize
	}
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ferr.Format("buffer", "pkcs7Unpad", "empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen < 1 || padLen > 16 || padLen > len(data) {
		return nil, ferr.Format("buffer", "pkcs7Unpad", "invalid PKCS7 padding")
	}
	return data[:len(data)-padLen], nil
}
