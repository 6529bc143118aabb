package apiv1

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specPath = "../../../public/docs/v1/openapi.yml"

func TestServedSpecIsValid(t *testing.T) {
	doc, err := LoadSpec(context.Background(), specPath)
	require.NoError(t, err)

	routes := map[string]string{
		"/api/webhooks/stripe":             http.MethodPost,
		"/api/v1/receipts":                 http.MethodGet,
		"/api/v1/receipts/export.csv":      http.MethodGet,
		"/api/v1/recovery-report/{org}":    http.MethodGet,
		"/api/v1/summary":                  http.MethodGet,
		"/api/v1/runs/{id}":                http.MethodGet,
		"/api/v1/dead-letters":             http.MethodGet,
		"/api/v1/dead-letters/{id}/replay": http.MethodPost,
		"/api/v1/jobs/stats":               http.MethodGet,
		"/api/v1/jobs/{id}":                http.MethodGet,
		"/health":                          http.MethodGet,
		"/ready":                           http.MethodGet,
	}
	for path, method := range routes {
		item := doc.Paths.Find(path)
		require.NotNil(t, item, path)
		assert.NotNil(t, item.GetOperation(method), "%s %s", method, path)
	}
}

func TestLoadSpecMissingFile(t *testing.T) {
	_, err := LoadSpec(context.Background(), "does-not-exist.yml")
	assert.Error(t, err)
}
