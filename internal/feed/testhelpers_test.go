package feed

import (
	"crypto/x509"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nickromney-org/release-notifier/internal/tlsclient"
)

const (
	filePopulated = "releases-populated.json"
	fileEmpty     = "releases-empty.json"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func trustServer(srv *httptest.Server) tlsclient.Factory {
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return tlsclient.Factory{RootCAs: pool}
}
