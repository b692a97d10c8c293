package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sampleRequest struct {
	Phone string `json:"phone" doc:"mobile number" example:"13800138000"`
	Scene string `json:"scene,omitempty" enum:"login|register"`
}

type sampleResponse struct {
	Status    string     `json:"status"`
	ExpiresAt int64      `json:"expiresAt"`
	Secret    string     `json:"-"`
	SeenAt    *time.Time `json:"seenAt,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

func newTestDocument() *Document {
	doc := New("Test API", "1.0.0").
		Description("test document").
		Tag("auth", "authentication").
		BearerAuth("bearerAuth", "JWT")

	doc.Route(http.MethodPost, "/api/auth/sms/send").
		Summary("Send code").
		OperationID("sendCode").
		Tags("auth").
		Body(sampleRequest{}, "send request").
		Response(http.StatusOK, sampleResponse{}, "sent").
		Response(http.StatusTooManyRequests, nil, "rate limited").
		Build()

	doc.Route(http.MethodGet, "/api/auth/check-token").
		Security("bearerAuth").
		Response(http.StatusOK, sampleResponse{}, "valid").
		Build()

	return doc
}

func TestDocument_Operations(t *testing.T) {
	spec := newTestDocument().Spec()

	send := spec.Paths.Find("/api/auth/sms/send")
	require.NotNil(t, send)
	require.NotNil(t, send.Post)
	assert.Equal(t, "sendCode", send.Post.OperationID)
	assert.NotNil(t, send.Post.Responses.Value("200"))
	assert.NotNil(t, send.Post.Responses.Value("429"))

	check := spec.Paths.Find("/api/auth/check-token")
	require.NotNil(t, check)
	require.NotNil(t, check.Get)
	require.NotNil(t, check.Get.Security)
	assert.Len(t, *check.Get.Security, 1)

	assert.Contains(t, spec.Components.SecuritySchemes, "bearerAuth")
}

func TestSchemaOf(t *testing.T) {
	schema := SchemaOf(sampleRequest{}).Value

	require.Contains(t, schema.Properties, "phone")
	assert.Equal(t, "mobile number", schema.Properties["phone"].Value.Description)
	assert.Equal(t, "13800138000", schema.Properties["phone"].Value.Example)
	assert.Len(t, schema.Properties["scene"].Value.Enum, 2)
	assert.Equal(t, []string{"phone"}, schema.Required)

	response := SchemaOf(sampleResponse{}).Value
	assert.NotContains(t, response.Properties, "Secret")
	assert.Equal(t, "int64", response.Properties["expiresAt"].Value.Format)
	assert.Equal(t, "date-time", response.Properties["seenAt"].Value.Format)
	assert.True(t, response.Properties["seenAt"].Value.Nullable)
	assert.True(t, response.Properties["tags"].Value.Type.Is("array"))

	assert.True(t, SchemaOf(nil).Value.Type.Is("object"))
}

func TestDocument_Handlers(t *testing.T) {
	doc := newTestDocument()
	e := echo.New()
	e.GET("/openapi.json", doc.JSONHandler())
	e.GET("/openapi.yaml", doc.YAMLHandler())

	t.Run("json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
		assert.Equal(t, "3.0.3", decoded["openapi"])
		assert.Contains(t, decoded["paths"], "/api/auth/sms/send")
	})

	t.Run("yaml", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/yaml", rec.Header().Get(echo.HeaderContentType))
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &decoded))
		assert.Equal(t, "Test API", decoded["info"].(map[string]any)["title"])
	})
}
