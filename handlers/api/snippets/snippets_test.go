package snippets

import (
	"bytes"
	"codecollab/core"
	"codecollab/handlers/auth"
	"codecollab/middleware"
	"codecollab/stores/memory"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// newTestRouter wires the snippet routes with a middleware that injects the
// given user's claims, standing in for the JWT middleware.
func newTestRouter(store core.SnippetStore, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := &auth.AppClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
				Name:             "Tester",
			}
			ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, claims)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/snippets", HandleCreateSnippet(store))
	r.Get("/snippets", HandleListSnippets(store))
	r.Get("/snippets/{id}", HandleGetSnippet(store))
	r.Put("/snippets/{id}", HandleUpdateSnippet(store))
	r.Delete("/snippets/{id}", HandleDeleteSnippet(store))
	r.Get("/files", HandleListFiles(store))
	r.Post("/folders", HandleCreateFolder(store))
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func createSnippet(t *testing.T, router http.Handler, title, folder string) string {
	t.Helper()
	w := doJSON(t, router, "POST", "/snippets", CreateSnippetRequest{
		Title:    title,
		Code:     "print('hi')",
		Language: "python",
		Folder:   folder,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Create snippet: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	if resp["snippetId"] == "" {
		t.Fatal("Create snippet should return the new id")
	}
	return resp["snippetId"]
}

func TestCreateAndGetSnippet(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")

	id := createSnippet(t, router, "hello", "root")

	w := doJSON(t, router, "GET", "/snippets/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Get snippet: expected 200, got %d", w.Code)
	}
	var snippet map[string]any
	if err := json.NewDecoder(w.Body).Decode(&snippet); err != nil {
		t.Fatalf("Failed to decode snippet: %v", err)
	}
	if snippet["title"] != "hello" || snippet["code"] != "print('hi')" {
		t.Errorf("Unexpected snippet payload: %v", snippet)
	}
}

func TestCreateSnippetValidation(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")

	w := doJSON(t, router, "POST", "/snippets", CreateSnippetRequest{Title: "no code"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing fields, got %d", w.Code)
	}
}

func TestGetSnippetNotFound(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")

	w := doJSON(t, router, "GET", "/snippets/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestOwnerScoping(t *testing.T) {
	store := memory.NewStore()
	owner := newTestRouter(store, "user-1")
	intruder := newTestRouter(store, "user-2")

	id := createSnippet(t, owner, "private", "root")

	if w := doJSON(t, intruder, "GET", "/snippets/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Another user's snippet should be invisible, got %d", w.Code)
	}
	if w := doJSON(t, intruder, "DELETE", "/snippets/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Another user must not delete the snippet, got %d", w.Code)
	}
	if w := doJSON(t, owner, "GET", "/snippets/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("Owner should still see the snippet, got %d", w.Code)
	}
}

func TestListSnippetsWithFolderFilter(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")
	createSnippet(t, router, "a", "root")
	createSnippet(t, router, "b", "algo")

	w := doJSON(t, router, "GET", "/snippets?folder=algo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("List: expected 200, got %d", w.Code)
	}
	var listed []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&listed); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(listed) != 1 || listed[0]["title"] != "b" {
		t.Errorf("Folder filter returned wrong snippets: %v", listed)
	}
}

func TestListSnippetsEmptyIsArray(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")

	w := doJSON(t, router, "GET", "/snippets", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("List: expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body == "null\n" || body == "null" {
		t.Error("Empty list should serialize as [], not null")
	}
}

func TestUpdateSnippet(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")
	id := createSnippet(t, router, "old name", "root")

	w := doJSON(t, router, "PUT", "/snippets/"+id, UpdateSnippetRequest{Title: "new name", Folder: "archive"})
	if w.Code != http.StatusOK {
		t.Fatalf("Update: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/snippets/"+id, nil)
	var snippet map[string]any
	if err := json.NewDecoder(w.Body).Decode(&snippet); err != nil {
		t.Fatalf("Failed to decode snippet: %v", err)
	}
	if snippet["title"] != "new name" || snippet["folder"] != "archive" {
		t.Errorf("Update not applied: %v", snippet)
	}
}

func TestUpdateSnippetNoFields(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")
	id := createSnippet(t, router, "name", "root")

	w := doJSON(t, router, "PUT", "/snippets/"+id, UpdateSnippetRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty update, got %d", w.Code)
	}
}

func TestDeleteSnippet(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")
	id := createSnippet(t, router, "doomed", "root")

	if w := doJSON(t, router, "DELETE", "/snippets/"+id, nil); w.Code != http.StatusOK {
		t.Fatalf("Delete: expected 200, got %d", w.Code)
	}
	if w := doJSON(t, router, "GET", "/snippets/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Deleted snippet should 404, got %d", w.Code)
	}
}

func TestFilesGroupedByFolder(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")
	createSnippet(t, router, "a", "root")
	createSnippet(t, router, "b", "algo")
	createSnippet(t, router, "c", "algo")

	w := doJSON(t, router, "GET", "/files", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Files: expected 200, got %d", w.Code)
	}
	var folders []FolderListing
	if err := json.NewDecoder(w.Body).Decode(&folders); err != nil {
		t.Fatalf("Failed to decode folders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("Expected 2 folders, got %d", len(folders))
	}
	byName := make(map[string]int)
	for _, folder := range folders {
		byName[folder.Folder] = len(folder.Files)
	}
	if byName["root"] != 1 || byName["algo"] != 2 {
		t.Errorf("Wrong grouping: %v", byName)
	}
}

func TestCreateFolder(t *testing.T) {
	router := newTestRouter(memory.NewStore(), "user-1")

	w := doJSON(t, router, "POST", "/folders", CreateFolderRequest{FolderName: "projects"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Create folder: expected 201, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/snippets?folder=projects", nil)
	var listed []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&listed); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(listed) != 1 || listed[0]["title"] != "Untitled" {
		t.Errorf("Folder should contain its placeholder snippet: %v", listed)
	}
}

func TestMissingClaimsRejected(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/snippets", HandleListSnippets(memory.NewStore()))

	w := doJSON(t, r, "GET", "/snippets", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without claims, got %d", w.Code)
	}
}
