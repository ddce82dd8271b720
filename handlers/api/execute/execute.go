package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// execTimeout caps the wall-clock time of one run, compile included.
const execTimeout = 10 * time.Second

const timedOutMessage = "Execution timed out. Your code took too long to run."

type (
	RunRequest struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	}

	RunResponse struct {
		Output string `json:"output"`
	}
)

type language struct {
	extension string
	// compiler is empty for interpreted languages.
	compiler    string
	interpreter string
}

var languages = map[string]language{
	"javascript": {extension: "js", interpreter: "node"},
	"python":     {extension: "py", interpreter: "python3"},
	"c":          {extension: "c", compiler: "gcc"},
	"cpp":        {extension: "cpp", compiler: "g++"},
}

// HandleRun compiles and/or runs submitted source in a subprocess and
// returns whatever it printed. Resource isolation beyond the timeout is the
// deployment's responsibility.
func HandleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, RunResponse{Output: "No code provided."})
			return
		}

		lang, ok := languages[req.Language]
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, RunResponse{Output: "Unsupported language"})
			return
		}

		output, err := run(r.Context(), lang, req.Code)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"language": req.Language,
			}).Error("Failed to execute submission")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, RunResponse{Output: "Execution failed"})
			return
		}

		render.JSON(w, r, RunResponse{Output: output})
	}
}

// run writes the source to a scratch directory, compiles it when needed and
// executes it under the timeout. The returned string is what the client
// sees: stdout on success, stderr on failure, or the timeout message. The
// error return is reserved for server-side faults such as an unwritable
// temp directory.
func run(ctx context.Context, lang language, code string) (string, error) {
	dir, err := os.MkdirTemp("", "codecollab-run-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "main."+lang.extension)
	if err := os.WriteFile(srcPath, []byte(code), 0644); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if lang.compiler != "" {
		binPath := filepath.Join(dir, "main.out")
		out, err := runCommand(ctx, exec.CommandContext(ctx, lang.compiler, srcPath, "-o", binPath))
		if err != nil {
			return out, nil // compile errors go back to the user as output
		}
		cmd = exec.CommandContext(ctx, binPath)
	} else {
		cmd = exec.CommandContext(ctx, lang.interpreter, srcPath)
	}

	out, _ := runCommand(ctx, cmd)
	return out, nil
}

// runCommand executes cmd and returns user-facing output. On success that is
// stdout; on failure stderr (or the error text when stderr is empty); on
// deadline expiry the timeout message.
func runCommand(ctx context.Context, cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timedOutMessage, ctx.Err()
	}
	if err != nil {
		if stderr.Len() > 0 {
			return stderr.String(), err
		}
		return err.Error(), err
	}
	return stdout.String(), nil
}
