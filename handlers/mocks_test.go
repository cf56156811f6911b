package handlers

import (
	"context"
	"storefront-service/internal/catalog"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// MockStore implements catalog.Store and counts calls so tests can assert
// that certain paths never touch the external file store.
type MockStore struct {
	Content []byte
	SHA     string
	GetErr  error
	PutErr  error

	GetCalls   int
	PutCalls   int
	PutContent []byte
	PutSHA     string
	PutMessage string
}

func (m *MockStore) GetFile(_ context.Context) ([]byte, string, error) {
	m.GetCalls++
	return m.Content, m.SHA, m.GetErr
}

func (m *MockStore) PutFile(_ context.Context, content []byte, sha string, message string) error {
	m.PutCalls++
	m.PutContent = content
	m.PutSHA = sha
	m.PutMessage = message
	return m.PutErr
}

const catalogFixture = `[
  {"id": "A", "name": "Victorian Mourning Ring", "price": 420.0, "period": "Victorian", "style": "Mourning", "available": true, "featured": true},
  {"id": "B", "name": "Art Deco Brooch", "price": 260.5, "period": "Art Deco", "style": "Geometric", "available": true},
  {"id": "C", "name": "Georgian Locket", "price": 890.0, "period": "Georgian", "style": "Mourning", "available": true}
]`

func newTestRouter(t *testing.T, store *MockStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.NewConf(store, catalog.NewMemoryCache(time.Minute))
	require.NoError(t, err)
	return API("/api", nil, cat, nil)
}
