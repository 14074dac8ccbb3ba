package buffer

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/skywing/fdrlog/internal/container"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// TestBufferCompressionTransparency covers P2: entries pushed through
// the buffer decode, after LZ4 inflation, to exactly the bytes pushed.
func TestBufferCompressionTransparency(t *testing.T) {
	var sink bytes.Buffer
	b := New(&sink, Config{FlushThreshold: 1 << 20}, discardLogger())

	payload := container.AppendEntry(nil, 256, []byte("altitude sample"))
	require.NoError(t, b.PushBytes(payload))
	require.NoError(t, b.Flush())

	frame, err := container.ReadEntry(&sink)
	require.NoError(t, err)
	require.Equal(t, container.IDLZ4, frame.ID)

	plain, err := DecompressLZ4(frame.Payload)
	require.NoError(t, err)
	require.Equal(t, payload, plain)
}

// TestBufferEncryptionTransparency covers P3: given the matching
// private key, a sealed block decrypts back to the exact plaintext LZ4
// frame that would have been written without encryption.
func TestBufferEncryptionTransparency(t *testing.T) {
	priv, pubPath := generateTestKeyPair(t)

	var sink bytes.Buffer
	b := New(&sink, Config{FlushThreshold: 1 << 20}, discardLogger())
	require.NoError(t, b.EnableEncryption(pubPath))
	require.True(t, b.Encrypting())

	payload := container.AppendEntry(nil, 257, []byte("event payload"))
	require.NoError(t, b.PushBytes(payload))
	require.NoError(t, b.Flush())

	descEntry, err := container.ReadEntry(&sink)
	require.NoError(t, err)
	require.Equal(t, container.IDAESDesc, descEntry.ID)
	desc, err := container.DecodeAESDesc(descEntry.Payload)
	require.NoError(t, err)

	cipherEntry, err := container.ReadEntry(&sink)
	require.NoError(t, err)
	require.Equal(t, container.IDAES, cipherEntry.ID)

	lz4Frame, err := Open(priv, desc, cipherEntry.Payload)
	require.NoError(t, err)

	plain, err := DecompressLZ4(lz4Frame)
	require.NoError(t, err)
	require.Equal(t, payload, plain)
}

func TestBufferFlushIsNoOpWhenEmpty(t *testing.T) {
	var sink bytes.Buffer
	b := New(&sink, Config{}, discardLogger())
	require.NoError(t, b.Flush())
	require.Equal(t, 0, sink.Len())
}

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))
	return priv, path
}
