package snippets

import (
	"codecollab/core"
	"codecollab/handlers/auth"
	"codecollab/middleware"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	CreateSnippetRequest struct {
		Title    string `json:"title"`
		Code     string `json:"code"`
		Language string `json:"language"`
		Folder   string `json:"folder"`
	}

	UpdateSnippetRequest struct {
		Title  string `json:"title"`
		Folder string `json:"folder"`
	}

	CreateFolderRequest struct {
		FolderName string `json:"folderName"`
	}

	FileEntry struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Language string `json:"language"`
	}

	FolderListing struct {
		Folder string      `json:"folder"`
		Files  []FileEntry `json:"files"`
	}
)

func claimsFrom(r *http.Request) (*auth.AppClaims, bool) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
	return claims, ok
}

// HandleCreateSnippet saves a new snippet for the authenticated user.
func HandleCreateSnippet(store core.SnippetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req CreateSnippetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"message": "Invalid request body"})
			return
		}
		if req.Title == "" || req.Code == "" || req.Language == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"message": "All fields are required: title, code, language"})
			return
		}
		if req.Folder == "" {
			req.Folder = "root"
		}

		snippet := &core.Snippet{
			UserID:   claims.Subject,
			Title:    req.Title,
			Code:     req.Code,
			Language: req.Language,
			Folder:   req.Folder,
		}
		if err := store.Save(r.Context(), snippet); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to save snippet")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"message": "Error saving snippet"})
			return
		}

		render.JSON(w, r, map[string]string{
			"message":   "Snippet saved successfully!",
			"snippetId": snippet.ID,
		})
	}
}

// HandleListSnippets returns the caller's snippets, optionally filtered by folder.
func HandleListSnippets(store core.SnippetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		folder := r.URL.Query().Get("folder")
		snippets, err := store.List(r.Context(), claims.Subject, folder)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list snippets")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list snippets"})
			return
		}

		// If snippets is nil (e.g., user has none), return an empty slice instead of null.
		if snippets == nil {
			snippets = []*core.Snippet{}
		}
		render.JSON(w, r, snippets)
	}
}

// HandleGetSnippet returns a single snippet owned by the caller.
func HandleGetSnippet(store core.SnippetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		snippet, err := store.Get(r.Context(), claims.Subject, id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"userID":     claims.Subject,
				"snippet_id": id,
			}).Warn("Failed to get snippet")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"message": "Snippet not found"})
			return
		}

		render.JSON(w, r, snippet)
	}
}

// HandleUpdateSnippet renames a snippet or moves it to another folder.
func HandleUpdateSnippet(store core.SnippetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req UpdateSnippetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"message": "Invalid request body"})
			return
		}
		if req.Title == "" && req.Folder == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"message": "No fields to update provided."})
			return
		}

		id := chi.URLParam(r, "id")
		snippet, err := store.Get(r.Context(), claims.Subject, id)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"message": "Snippet not found."})
			return
		}

		if req.Title != "" {
			snippet.Title = req.Title
		}
		if req.Folder != "" {
			snippet.Folder = req.Folder
		}

		if err := store.Save(r.Context(), snippet); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"userID":     claims.Subject,
				"snippet_id": id,
			}).Error("Failed to update snippet")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"message": "Error updating snippet"})
			return
		}

		render.JSON(w, r, map[string]any{
			"message": "Snippet updated successfully.",
			"snippet": snippet,
		})
	}
}

// HandleDeleteSnippet removes a snippet owned by the caller.
func HandleDeleteSnippet(store core.SnippetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if _, err := store.Get(r.Context(), claims.Subject, id); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"message": "Snippet not found."})
			return
		}

		if err := store.Delete(r.Context(), claims.Subject, id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"userID":     claims.Subject,
				"snippet_id": id,
			}).Error("Failed to delete snippet")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"message": "Error deleting snippet"})
			return
		}

		render.JSON(w, r, map[string]string{"message": "Snippet deleted successfully."})
	}
}

// HandleListFiles returns the caller's snippets grouped by folder.
func HandleListFiles(store core.SnippetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		snippets, err := store.List(r.Context(), claims.Subject, "")
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list files")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"message": "Error fetching files"})
			return
		}

		grouped := make(map[string][]FileEntry)
		var order []string
		for _, snippet := range snippets {
			folder := snippet.Folder
			if folder == "" {
				folder = "Default"
			}
			if _, seen := grouped[folder]; !seen {
				order = append(order, folder)
			}
			grouped[folder] = append(grouped[folder], FileEntry{
				ID:       snippet.ID,
				Title:    snippet.Title,
				Language: snippet.Language,
			})
		}

		folders := make([]FolderListing, 0, len(order))
		for _, folder := range order {
			folders = append(folders, FolderListing{Folder: folder, Files: grouped[folder]})
		}
		render.JSON(w, r, folders)
	}
}

// HandleCreateFolder creates a folder by seeding it with a placeholder
// snippet, mirroring how folders come into existence on save.
func HandleCreateFolder(store core.SnippetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req CreateFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FolderName == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"message": "Folder name is required."})
			return
		}

		snippet := &core.Snippet{
			UserID:   claims.Subject,
			Title:    "Untitled",
			Code:     "// Start coding here...",
			Language: "javascript",
			Folder:   req.FolderName,
		}
		if err := store.Save(r.Context(), snippet); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"folder": req.FolderName,
			}).Error("Failed to create folder")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"message": "Error creating folder"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{
			"message":    "Folder created successfully!",
			"folderName": req.FolderName,
		})
	}
}
