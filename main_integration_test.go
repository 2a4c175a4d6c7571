package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cimars/catalog/internal/auth"
)

const (
	testAppBinary      = "./catalog_test_app"
	testAppPort        = "8089"
	testServicePortApi = "8091"
	testServicePortBg  = "8092"
	testAppURL         = "http://localhost:" + testAppPort
	testServiceApiURL  = "http://localhost:" + testServicePortApi
	testDbName         = "cimars_integration"
	testAdminEmail     = "admin@cimars.test"
	testAdminPassword  = "integration-password"
	startupTimeout     = 15 * time.Second
	pingEndpoint       = testAppURL + "/v1/ping"
)

// TestMain builds the binary and runs it twice: once as the API and once as
// the background worker. Without MONGO_URI the suite is skipped.
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	if os.Getenv("MONGO_URI") == "" {
		log.Println("MONGO_URI not set; skipping integration tests")
		return
	}
	defer func() { _ = os.Remove(testAppBinary) }()

	buildOutput, err := exec.Command("go", "build", "-o", testAppBinary, ".").CombinedOutput()
	if err != nil {
		log.Printf("failed to build application: %v\n%s", err, buildOutput)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(testAdminPassword)
	if err != nil {
		log.Printf("failed to hash admin password: %v", err)
		os.Exit(1)
	}
	defer dropTestDatabase()

	env := append(os.Environ(),
		"MONGO_DB_NAME="+testDbName,
		"JWT_SECRET=integration-test-secret",
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"COUNTER_BACKEND=mongo",
		"ADMIN_EMAIL="+testAdminEmail,
		"ADMIN_PASSWORD_HASH="+hash,
		"AWS_S3_BUCKET=integration-media",
		"RABBITMQ_URL=",
		"RATE_LIMIT_READ_BUCKET_SIZE=100",
		"RATE_LIMIT_MAIL_BUCKET_SIZE=100",
		"SMTP_FROM_ADDRESS=noreply@cimars.test",
	)

	apiCmd := exec.Command(testAppBinary, "-m", "api")
	apiCmd.Env = append(env, "API_PORT="+testAppPort, "SERVICE_API_PORT="+testServicePortApi)
	apiCmd.Stderr = os.Stderr
	bgCmd := exec.Command(testAppBinary, "-m", "bg")
	bgCmd.Env = append(env, "SERVICE_API_PORT="+testServicePortBg)
	bgCmd.Stderr = os.Stderr

	if err := apiCmd.Start(); err != nil {
		log.Printf("failed to start API process: %v", err)
		os.Exit(1)
	}
	defer stopProcess(apiCmd)
	if err := bgCmd.Start(); err != nil {
		log.Printf("failed to start background worker: %v", err)
		return
	}
	defer stopProcess(bgCmd)

	if !waitForPing() {
		log.Printf("application failed to start within %v", startupTimeout)
		return
	}

	// Returning lets the deferred teardown run; the exit code comes from m.Run.
	m.Run()
}

func waitForPing() bool {
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(pingEndpoint)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && string(body) == "pong" {
				return true
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func stopProcess(cmd *exec.Cmd) {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_, _ = cmd.Process.Wait()
}

func dropTestDatabase() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		log.Printf("cleanup: failed to connect to MongoDB: %v", err)
		return
	}
	defer client.Disconnect(ctx)
	if err := client.Database(testDbName).Drop(ctx); err != nil {
		log.Printf("cleanup: failed to drop %s: %v", testDbName, err)
	}
}

// doJSON sends body (marshaled when not nil) and decodes a JSON response.
func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func callServiceAPI(t *testing.T, method string, args ...any) (int, map[string]any) {
	t.Helper()
	return doJSON(t, http.MethodPost, testServiceApiURL+"/api", "", map[string]any{"method": method, "arguments": args})
}

func adminToken(t *testing.T) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, testAppURL+"/v1/admin/login", "",
		map[string]string{"email": testAdminEmail, "password": testAdminPassword})
	require.Equal(t, http.StatusOK, status)
	token, ok := body["token"].(string)
	require.True(t, ok)
	return token
}

func TestIntegration_Ping(t *testing.T) {
	assert.True(t, waitForPing())
}

func TestIntegration_ListingLifecycle(t *testing.T) {
	token := adminToken(t)
	city := fmt.Sprintf("Tlaquepaque-%d", time.Now().UnixNano())

	status, created := doJSON(t, http.MethodPost, testAppURL+"/v1/admin/properties/constructions", token, map[string]any{
		"address":  map[string]any{"street": "Independencia 10", "zipCode": "45500", "city": city, "country": "Mexico"},
		"price":    2750000,
		"landArea": 140,
		"dealType": "Sale",
		"notes":    "solo por cita",
		"construction": map[string]any{
			"constructionType": "House",
			"rooms":            3,
		},
	})
	require.Equal(t, http.StatusCreated, status, "%v", created)
	id, _ := created["id"].(string)
	code, _ := created["code"].(string)
	require.NotEmpty(t, id)
	assert.Regexp(t, `^VC\d{3,}$`, code)
	assert.Equal(t, "solo por cita", created["notes"])

	status, counter := callServiceAPI(t, "counter", "VC")
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, counter["result"], 1.0)

	status, public := doJSON(t, http.MethodGet, testAppURL+"/v1/properties/constructions/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, code, public["code"])
	assert.NotContains(t, public, "notes")

	status, page := doJSON(t, http.MethodGet, testAppURL+"/v1/properties?city="+url.QueryEscape(city), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, page["total"])

	status, _ = doJSON(t, http.MethodGet, testAppURL+"/v1/properties/lands/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, status, "wrong kind")

	status, updated := doJSON(t, http.MethodPatch, testAppURL+"/v1/admin/properties/constructions/"+id, token,
		map[string]any{"price": 2600000, "code": "VC999"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2600000.0, updated["price"])
	assert.Equal(t, code, updated["code"])

	status, _ = doJSON(t, http.MethodDelete, testAppURL+"/v1/admin/properties/constructions/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = doJSON(t, http.MethodGet, testAppURL+"/v1/properties/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIntegration_ContactMail(t *testing.T) {
	status, body := doJSON(t, http.MethodPost, testAppURL+"/v1/mail/contact", "", map[string]any{
		"name":    "Lucía",
		"email":   "lucia@cimars.test",
		"message": "Me interesa la casa",
	})
	require.Equal(t, http.StatusOK, status, "%v", body)

	status, body = callServiceAPI(t, "getTestEmail", "contact", testAdminEmail)
	require.Equal(t, http.StatusOK, status, "%v", body)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "contact", data["template"])
	assert.Contains(t, data["body"], "Me interesa la casa")

	status, body = doJSON(t, http.MethodGet, testAppURL+"/v1/admin/enquiries?limit=1", adminToken(t), nil)
	require.Equal(t, http.StatusOK, status)
	enquiries, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, enquiries, 1)
	assert.Equal(t, "lucia@cimars.test", enquiries[0].(map[string]any)["email"])
}

func TestIntegration_AdminRoutesRequireToken(t *testing.T) {
	status, _ := doJSON(t, http.MethodPost, testAppURL+"/v1/admin/properties/lands", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, status)
}
