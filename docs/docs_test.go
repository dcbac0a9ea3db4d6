package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwaggerInfo_ReadDoc(t *testing.T) {
	SwaggerInfo.Host = "localhost:3000"
	SwaggerInfo.Schemes = []string{"http"}

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc))

	assert.Equal(t, "localhost:3000", doc["host"])
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	for _, p := range []string{"/documents", "/documents/upload", "/documents/{id}"} {
		assert.Contains(t, paths, p)
	}
}
