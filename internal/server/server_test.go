package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Config{MaxBodyBytes: 1 << 20, Version: "test"}, calc.New(), storage.NewMemory(), zerolog.Nop())
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

// upload sends data as the multipart field "file" plus any extra fields.
func upload(t *testing.T, s *Server, method, path string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", "book.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// raw performs a request whose response is not JSON.
func raw(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	code, body := do(t, newTestServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name    string
		body    string
		result  any
		success bool
		kind    string
	}{
		{"range sum", `{"formula":"=SUM(A1:A4)","data":{"A1":1,"A2":2,"A3":3,"A4":4}}`, 10.0, true, ""},
		{"nested", `{"formula":"=SUM(1,SUM(2,3))"}`, 6.0, true, ""},
		{"cross cell", `{"formula":"=B1","data":{"B1":"=SUM(A1:A2)","a1":1,"$A$2":2}}`, 3.0, true, ""},
		{"text result", `{"formula":"=UPPER(A1)","data":{"A1":"abc"}}`, "ABC", true, ""},
		{"bool result", `{"formula":"=AND(1,1)"}`, true, true, ""},
		{"plain text", `{"formula":"hello"}`, "hello", true, ""},
		{"unknown function", `{"formula":"=NOPE(1)"}`, nil, false, "unknown_function"},
		{"unbalanced", `{"formula":"=SUM(1,2"}`, nil, false, "parse"},
		{"self reference", `{"formula":"=A1","cellRef":"A1"}`, nil, false, "recursion"},
		{"huge range", `{"formula":"=SUM(A1,A1:FXSHRXX2147483648)"}`, nil, false, "recursion"},
		{"row past int32", `{"formula":"=SUM(A1:FXSHRXX8589934592)"}`, nil, false, "reference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/api/spreadsheet/formula/evaluate", tt.body)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.success, body["success"])
			assert.Equal(t, tt.result, body["result"])
			if tt.kind != "" {
				assert.Equal(t, tt.kind, body["kind"])
				assert.NotEmpty(t, body["error"])
			} else {
				assert.NotContains(t, body, "error")
			}
		})
	}
}

func TestEvaluate_BadRequests(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/spreadsheet/formula/evaluate", `{"formula":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])

	code, _ = do(t, s, http.MethodPost, "/api/spreadsheet/formula/evaluate", `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/spreadsheet/formula/evaluate", `{"formula":"=A1","data":{"A1":{"x":1}}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEvaluate_BodyLimit(t *testing.T) {
	s := New(Config{MaxBodyBytes: 64}, nil, nil, zerolog.Nop())
	big := `{"formula":"=SUM(1)","data":{"A1":"` + strings.Repeat("x", 200) + `"}}`
	code, _ := do(t, s, http.MethodPost, "/api/spreadsheet/formula/evaluate", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
}

func TestDependencies(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/spreadsheet/formula/dependencies", `{"formula":"=SUM(A1:A2,$b$3)"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"A1:A2", "B3"}, body["dependencies"])

	_, body = do(t, s, http.MethodPost, "/api/spreadsheet/formula/dependencies", `{"formula":"=SUM(A1:A2,$b$3)","expand":true}`)
	assert.Equal(t, []any{"A1", "A2", "B3"}, body["dependencies"])

	_, body = do(t, s, http.MethodPost, "/api/spreadsheet/formula/dependencies", `{"formula":"=SUM(A1:FXSHRXX2147483648)","expand":true}`)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "recursion", body["kind"])

	_, body = do(t, s, http.MethodPost, "/api/spreadsheet/formula/dependencies", `{"formula":"plain"}`)
	assert.Equal(t, []any{}, body["dependencies"])
}

func TestImport(t *testing.T) {
	s := newTestServer(t)

	var xlsx bytes.Buffer
	require.NoError(t, storage.WriteXLSX(&xlsx, calc.Cells{
		"A1": calc.Number(4),
		"A2": calc.Text("=A1"),
		"B1": calc.Text("label"),
	}, "Data", nil))

	rec := upload(t, s, http.MethodPost, "/api/spreadsheet/excel/import", xlsx.Bytes(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Success bool                      `json:"success"`
		Sheets  map[string]map[string]any `json:"sheets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, map[string]any{"A1": 4.0, "A2": "=A1", "B1": "label"}, out.Sheets["Data"])

	code, _ := do(t, s, http.MethodPost, "/api/spreadsheet/excel/import", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)

	rec := raw(t, s, http.MethodPost, "/api/spreadsheet/excel/export",
		`{"sheets":{"Totals":{"A1":2,"A2":3,"A3":"=SUM(A1:A2)"},"Notes":{"b1":"hello"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="export.xlsx"`, rec.Header().Get("Content-Disposition"))

	sheets, err := storage.ReadWorkbook(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, calc.Cells{"B1": calc.Text("hello")}, sheets["Notes"])
	assert.Equal(t, calc.Cells{
		"A1": calc.Number(2),
		"A2": calc.Number(3),
		"A3": calc.Text("=SUM(A1:A2)"),
	}, sheets["Totals"])

	code, _ := do(t, s, http.MethodPost, "/api/spreadsheet/excel/export", `{"sheets":{}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, s, http.MethodPost, "/api/spreadsheet/excel/export", `{"sheets":{"bad/name":{"A1":1}}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWorkbookImportExport(t *testing.T) {
	s := newTestServer(t)

	var xlsx bytes.Buffer
	require.NoError(t, storage.WriteWorkbook(&xlsx, map[string]calc.Cells{
		"Data":  {"A1": calc.Number(4), "A2": calc.Text("=POWER(A1,2)")},
		"Other": {"C1": calc.Text("x")},
	}, nil))

	rec := upload(t, s, http.MethodPut, "/api/workbooks/q3/import", xlsx.Bytes(), map[string]string{"sheet": "Data"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, body := do(t, s, http.MethodGet, "/api/workbooks/q3/cells", "")
	assert.Equal(t, map[string]any{"A1": 4.0, "A2": "=POWER(A1,2)"}, body["cells"])

	rec = upload(t, s, http.MethodPut, "/api/workbooks/q3/import", xlsx.Bytes(), map[string]string{"sheet": "Missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = raw(t, s, http.MethodGet, "/api/workbooks/q3/export", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="q3.xlsx"`, rec.Header().Get("Content-Disposition"))
	sheets, err := storage.ReadWorkbook(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, calc.Cells{"A1": calc.Number(4), "A2": calc.Text("=POWER(A1,2)")}, sheets["Sheet1"])

	code, _ := do(t, s, http.MethodGet, "/api/workbooks/missing/export", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWorkbookDeleteCell(t *testing.T) {
	s := newTestServer(t)
	base := "/api/workbooks/wb"

	code, _ := do(t, s, http.MethodPut, base+"/cells", `{"cells":{"A1":1,"A2":2}}`)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, s, http.MethodDelete, base+"/cells/$a$1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A1", body["ref"])
	_, body = do(t, s, http.MethodGet, base+"/cells", "")
	assert.Equal(t, map[string]any{"A2": 2.0}, body["cells"])

	code, _ = do(t, s, http.MethodDelete, base+"/cells/nope", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, s, http.MethodDelete, "/api/workbooks/missing/cells/A1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWorkbookLifecycle(t *testing.T) {
	s := newTestServer(t)
	base := "/api/workbooks/budget"

	code, body := do(t, s, http.MethodPut, base+"/cells", `{"cells":{"A1":10,"A2":20,"A3":"=SUM(A1:A2)"}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3.0, body["cells"])

	code, body = do(t, s, http.MethodGet, base+"/cells", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"A1": 10.0, "A2": 20.0, "A3": "=SUM(A1:A2)"}, body["cells"])

	code, body = do(t, s, http.MethodGet, base+"/cells/a3", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A3", body["ref"])
	assert.Equal(t, 30.0, body["result"])

	code, body = do(t, s, http.MethodPost, base+"/evaluate", `{"formula":"=AVERAGE(A1:A3)"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 20.0, body["result"])

	code, body = do(t, s, http.MethodPut, base+"/cells", `{"cells":{"B1":1},"replace":true}`)
	require.Equal(t, http.StatusOK, code)
	_, body = do(t, s, http.MethodGet, base+"/cells", "")
	assert.Equal(t, map[string]any{"B1": 1.0}, body["cells"])

	_, body = do(t, s, http.MethodGet, "/api/workbooks", "")
	assert.Equal(t, []any{"budget"}, body["workbooks"])

	code, _ = do(t, s, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, s, http.MethodGet, base+"/cells", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWorkbookErrors(t *testing.T) {
	s := newTestServer(t)

	code, _ := do(t, s, http.MethodPut, "/api/workbooks/wb/cells", `{"cells":{"A0":1}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPut, "/api/workbooks/"+strings.Repeat("x", 200)+"/cells", `{"cells":{"A1":1}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPut, "/api/workbooks/wb/cells", `{"cells":{"A1":1}}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodGet, "/api/workbooks/wb/cells/nope", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/workbooks/missing/evaluate", `{"formula":"=1"}`)
	assert.Equal(t, http.StatusNotFound, code)

	noStore := New(Config{}, nil, nil, zerolog.Nop())
	code, _ = do(t, noStore, http.MethodGet, "/api/workbooks/wb/cells", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestServe_GracefulShutdownOnContext(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
