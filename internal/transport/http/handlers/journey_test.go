package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"staffbook/internal/app/server"
	"staffbook/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

type listPage struct {
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
	Page       int              `json:"page"`
	Items      []map[string]any `json:"items"`
}

func testConfig() config.Config {
	return config.Config{
		Addr:               ":0",
		Environment:        "test",
		StoreDriver:        config.DriverMemory,
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		PageSize:           50,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		SessionIdleTimeout: time.Hour,
		MetricsEnabled:     true,
	}
}

func startApp(t *testing.T) (*server.App, *httptest.Server) {
	t.Helper()
	app, err := server.New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		_ = app.Close()
	})
	return app, ts
}

func TestCreateSoftDeleteRestoreJourney(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)

	id := createEmployee(t, client, ts.URL, token, map[string]any{"name": "Sok", "studentId": "007"})

	active := listEmployees(t, client, ts.URL+"/api/v1/employees?search=SOK", token)
	if active.Total != 1 || active.Items[0]["id"] != id {
		t.Fatalf("expected created employee in active list, got %+v", active)
	}

	doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/employees/"+id, token, nil, http.StatusOK)

	if got := listEmployees(t, client, ts.URL+"/api/v1/employees", token); got.Total != 0 {
		t.Fatalf("expected active list to be empty, got %d", got.Total)
	}
	bin := listEmployees(t, client, ts.URL+"/api/v1/recycle-bin", token)
	if bin.Total != 1 || bin.Items[0]["id"] != id {
		t.Fatalf("expected employee in recycle bin, got %+v", bin)
	}
	if deletedAt, _ := bin.Items[0]["deletedAt"].(string); deletedAt == "" {
		t.Fatal("expected deletedAt on recycle bin record")
	}

	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/recycle-bin/"+id+"/restore", token, nil, http.StatusOK)

	if got := listEmployees(t, client, ts.URL+"/api/v1/recycle-bin", token); got.Total != 0 {
		t.Fatalf("expected recycle bin to be empty, got %d", got.Total)
	}
	restored := listEmployees(t, client, ts.URL+"/api/v1/employees", token)
	if restored.Total != 1 {
		t.Fatalf("expected one restored employee, got %d", restored.Total)
	}
	item := restored.Items[0]
	if item["id"] != id || item["name"] != "Sok" || item["studentId"] != "007" {
		t.Fatalf("unexpected restored record %+v", item)
	}
	if _, ok := item["deletedAt"]; ok {
		t.Fatal("expected deletedAt to be dropped on restore")
	}

	doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/employees/"+id, token, nil, http.StatusOK)
	doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/recycle-bin/"+id, token, nil, http.StatusOK)
	doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/recycle-bin/"+id, token, nil, http.StatusNotFound)
}

func TestListFiltersSortsAndPaginates(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)

	for _, e := range []map[string]any{
		{"name": "Dara", "latinName": "Dara", "studentId": "10", "group": "A"},
		{"name": "Bopha", "latinName": "Bopha", "studentId": "9", "group": "A"},
		{"name": "Chan", "latinName": "Chan", "studentId": "100", "group": "B"},
	} {
		createEmployee(t, client, ts.URL, token, e)
	}

	got := listEmployees(t, client, ts.URL+"/api/v1/employees?filter.group=A&sort=studentId&dir=asc", token)
	if got.Total != 2 || got.Items[0]["studentId"] != "9" || got.Items[1]["studentId"] != "10" {
		t.Fatalf("unexpected filtered order %+v", got.Items)
	}

	got = listEmployees(t, client, ts.URL+"/api/v1/employees?sort=studentId&dir=desc&pageSize=2&page=2", token)
	if got.Total != 3 || got.TotalPages != 2 || got.Page != 2 || len(got.Items) != 1 || got.Items[0]["studentId"] != "9" {
		t.Fatalf("unexpected second page %+v", got)
	}

	got = listEmployees(t, client, ts.URL+"/api/v1/employees?pageSize=2&page=9", token)
	if got.Page != 2 {
		t.Fatalf("expected out of range page to be clamped, got %d", got.Page)
	}

	env := doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/employees?filter.telegram=x", token, nil, http.StatusBadRequest)
	assertValidationErrorField(t, env, "query")
}

func TestSelectionAndBulkEditJourney(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)

	a1 := createEmployee(t, client, ts.URL, token, map[string]any{"name": "A1", "group": "A"})
	a2 := createEmployee(t, client, ts.URL, token, map[string]any{"name": "A2", "group": "A"})
	b1 := createEmployee(t, client, ts.URL, token, map[string]any{"name": "B1", "group": "B"})

	doJSON(t, client, http.MethodPut, ts.URL+"/api/v1/selection/query", token, map[string]any{"filters": map[string]string{"group": "A"}}, http.StatusOK)
	state := selectionState(t, doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/selection/select-all", token, nil, http.StatusOK))
	if state.Count != 2 || !state.AllSelected {
		t.Fatalf("expected both group A records selected, got %+v", state)
	}

	state = selectionState(t, doJSON(t, client, http.MethodPut, ts.URL+"/api/v1/selection/query", token, map[string]any{}, http.StatusOK))
	if state.Count != 2 || state.AllSelected {
		t.Fatalf("expected selection to persist across filter change, got %+v", state)
	}

	env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/employees/bulk", token, map[string]any{
		"selection": true,
		"fields":    map[string]any{"class": "C1", "monday": "Morning"},
	}, http.StatusOK)
	var bulk struct {
		Updated int `json:"updated"`
	}
	decodeData(t, env, &bulk)
	if bulk.Updated != 2 {
		t.Fatalf("expected 2 updated records, got %d", bulk.Updated)
	}

	for id, want := range map[string]string{a1: "C1", a2: "C1", b1: ""} {
		var emp map[string]any
		decodeData(t, doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/employees/"+id, token, nil, http.StatusOK), &emp)
		if emp["class"] != want {
			t.Fatalf("employee %s: expected class %q, got %v", id, want, emp["class"])
		}
	}

	// A selected record deleted elsewhere is skipped, not a failure.
	doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/employees/"+a2, token, nil, http.StatusOK)
	env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/employees/bulk", token, map[string]any{
		"selection": true,
		"fields":    map[string]any{"class": "C2"},
	}, http.StatusOK)
	var partial struct {
		Updated int      `json:"updated"`
		Skipped []string `json:"skipped"`
	}
	decodeData(t, env, &partial)
	if partial.Updated != 1 || len(partial.Skipped) != 1 || partial.Skipped[0] != a2 {
		t.Fatalf("expected %s to be skipped, got %+v", a2, partial)
	}
	state = selectionState(t, doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/selection", token, nil, http.StatusOK))
	if state.Count != 2 {
		t.Fatalf("expected the selection to keep both ids, got %+v", state)
	}

	state = selectionState(t, doJSON(t, client, http.MethodPut, ts.URL+"/api/v1/selection/mode", token, map[string]any{"mode": "recycleBin"}, http.StatusOK))
	if state.Count != 0 || state.Mode != "recycleBin" {
		t.Fatalf("expected mode switch to clear selection, got %+v", state)
	}
}

func TestSettingsRestrictDropdownValues(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)

	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/settings/classes/options", token, map[string]any{"value": "C1"}, http.StatusCreated)
	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/settings/classes/options", token, map[string]any{"value": "C1"}, http.StatusConflict)
	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/settings/unknown/options", token, map[string]any{"value": "x"}, http.StatusNotFound)

	id := createEmployee(t, client, ts.URL, token, map[string]any{"name": "Sok", "class": "C1"})
	env := doJSON(t, client, http.MethodPatch, ts.URL+"/api/v1/employees/"+id, token, map[string]any{"class": "C2"}, http.StatusBadRequest)
	assertValidationErrorField(t, env, "class")

	env = doJSON(t, client, http.MethodPatch, ts.URL+"/api/v1/employees/"+id, token, map[string]any{"gender": "Other"}, http.StatusBadRequest)
	assertValidationErrorField(t, env, "gender")

	env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/employees", token, map[string]any{"name": 12}, http.StatusBadRequest)
	assertValidationErrorField(t, env, "name")

	doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/settings/classes/options/C1", token, nil, http.StatusOK)
	doJSON(t, client, http.MethodPatch, ts.URL+"/api/v1/employees/"+id, token, map[string]any{"class": "C2"}, http.StatusOK)

	var all map[string][]string
	decodeData(t, doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/settings", token, nil, http.StatusOK), &all)
	if len(all["classes"]) != 0 || all["skills"] == nil {
		t.Fatalf("unexpected settings %+v", all)
	}
}

func TestViewerPermissions(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)
	id := createEmployee(t, client, ts.URL, adminToken, map[string]any{"name": "Sok"})

	if _, _, err := app.Auth.EnsureAccount(context.Background(), "viewer@test.local", "Viewer123!", "viewer"); err != nil {
		t.Fatalf("failed to create viewer: %v", err)
	}
	viewerToken := login(t, client, ts.URL, "viewer@test.local", "Viewer123!")

	listEmployees(t, client, ts.URL+"/api/v1/employees", viewerToken)
	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/employees", viewerToken, map[string]any{"name": "X"}, http.StatusForbidden)
	doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/employees/"+id, viewerToken, nil, http.StatusForbidden)
	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/settings/classes/options", viewerToken, map[string]any{"value": "C1"}, http.StatusForbidden)
	doJSON(t, client, http.MethodGet, ts.URL+"/metrics", viewerToken, nil, http.StatusForbidden)
	doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/employees", "", nil, http.StatusUnauthorized)

	var snapshot map[string]any
	decodeData(t, doJSON(t, client, http.MethodGet, ts.URL+"/metrics", adminToken, nil, http.StatusOK), &snapshot)
	if total, _ := snapshot["requestsTotal"].(float64); total == 0 {
		t.Fatalf("expected requests to be counted, got %+v", snapshot)
	}
}

func TestExportDownloads(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)
	createEmployee(t, client, ts.URL, token, map[string]any{"name": "Sok", "studentId": "1"})
	createEmployee(t, client, ts.URL, token, map[string]any{"name": "Dara", "studentId": "2"})

	for format, contentType := range map[string]string{
		"pdf":  "application/pdf",
		"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	} {
		resp := rawRequest(t, client, http.MethodPost, ts.URL+"/api/v1/employees/export", token, map[string]any{
			"format":        format,
			"columns":       []string{"name", "studentId"},
			"customColumns": []string{"Signature"},
			"search":        "sok",
		})
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s export: unexpected status %d: %s", format, resp.StatusCode, body)
		}
		if got := resp.Header.Get("Content-Type"); got != contentType {
			t.Fatalf("%s export: unexpected content type %q", format, got)
		}
		if resp.Header.Get("X-Export-Rows") != "1" {
			t.Fatalf("%s export: expected 1 row, got %q", format, resp.Header.Get("X-Export-Rows"))
		}
		if len(body) == 0 {
			t.Fatalf("%s export: empty body", format)
		}
	}

	env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/employees/export", token, map[string]any{"format": "docx", "columns": []string{"nope"}}, http.StatusBadRequest)
	assertValidationErrorField(t, env, "format")
	assertValidationErrorField(t, env, "columns")
}

func TestStreamPushesCommittedChanges(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/stream/employees?access_token="+token, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected stream to open, got %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	first := nextEventData(t, reader)
	if !strings.Contains(first, `"employees":[]`) {
		t.Fatalf("expected empty initial snapshot, got %s", first)
	}

	createEmployee(t, client, ts.URL, token, map[string]any{"name": "Sok"})
	next := nextEventData(t, reader)
	if !strings.Contains(next, `"name":"Sok"`) {
		t.Fatalf("expected snapshot with new employee, got %s", next)
	}
}

func nextEventData(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended: %v", err)
		}
		if data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: "); ok {
			return data
		}
	}
}

type selection struct {
	Mode        string   `json:"mode"`
	Selected    []string `json:"selected"`
	Count       int      `json:"count"`
	AllSelected bool     `json:"allSelected"`
}

func selectionState(t *testing.T, env envelope) selection {
	t.Helper()
	var s selection
	decodeData(t, env, &s)
	return s
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, http.StatusOK)
	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	decodeData(t, env, &payload)
	if payload.AccessToken == "" {
		t.Fatal("expected token")
	}
	return payload.AccessToken
}

func createEmployee(t *testing.T, client *http.Client, baseURL, token string, fields map[string]any) string {
	t.Helper()
	env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/employees", token, fields, http.StatusCreated)
	var payload map[string]any
	decodeData(t, env, &payload)
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatal("expected employee id")
	}
	return id
}

func listEmployees(t *testing.T, client *http.Client, url, token string) listPage {
	t.Helper()
	var page listPage
	decodeData(t, doJSON(t, client, http.MethodGet, url, token, nil, http.StatusOK), &page)
	return page
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("failed to decode response data: %v", err)
	}
}

func rawRequest(t *testing.T, client *http.Client, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, want int) envelope {
	t.Helper()
	resp := rawRequest(t, client, method, url, token, body)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, url, want, resp.StatusCode, string(raw))
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func envelopeErrorCode(env envelope) string {
	errMap, ok := env.Error.(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errMap["code"].(string)
	return code
}

func assertValidationErrorField(t *testing.T, env envelope, field string) {
	t.Helper()
	if code := envelopeErrorCode(env); code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", env.Error)
	}
	errMap, _ := env.Error.(map[string]any)
	details, ok := errMap["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %+v", errMap["details"])
	}
	fieldsRaw, ok := details["fields"].([]any)
	if !ok {
		t.Fatalf("expected details.fields array, got %+v", details["fields"])
	}
	for _, item := range fieldsRaw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if value, _ := entry["field"].(string); value == field {
			return
		}
	}
	t.Fatalf("expected validation issue for field %q, got %+v", field, fieldsRaw)
}
