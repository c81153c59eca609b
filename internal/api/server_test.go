package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"LocalMR/internal/controller"
	"LocalMR/internal/logger"
	"LocalMR/internal/types"
	"LocalMR/internal/wordcount"
)

func submitJob(t *testing.T) *controller.JobHandle {
	t.Helper()
	input := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(input, []byte("cat dog cat\ndog\n"), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	wc := wordcount.New()
	h, err := controller.Submit(controller.Config{
		InputPath:  input,
		Partitions: 2,
		Mapper:     wc,
		Reducer:    wc,
		WorkDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return h
}

func TestGetJobStatus(t *testing.T) {
	srv := NewServer(logger.New("ERROR"))
	h := submitJob(t)
	h.Wait()
	srv.Register(h)
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+h.ID(), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code %d, want 200", w.Code)
	}
	var status types.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("malformed status body: %v", err)
	}
	if status.JobID != h.ID() || status.State != types.StateCompleted {
		t.Errorf("status = %+v", status)
	}
}

func TestUnknownJobIs404(t *testing.T) {
	srv := NewServer(logger.New("ERROR"))
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/job-nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status code %d, want 404", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	srv := NewServer(logger.New("ERROR"))
	h := submitJob(t)
	h.Wait()
	srv.Register(h)
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), h.ID()) {
		t.Errorf("job list %s missing %s", w.Body.String(), h.ID())
	}
}

func TestResultOfCompletedJob(t *testing.T) {
	srv := NewServer(logger.New("ERROR"))
	h := submitJob(t)
	h.Wait()
	srv.Register(h)
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+h.ID()+"/result", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "partition-0.out") {
		t.Errorf("result body %s missing output paths", w.Body.String())
	}
}

func TestCancelEndpoint(t *testing.T) {
	srv := NewServer(logger.New("ERROR"))
	h := submitJob(t)
	srv.Register(h)
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/"+h.ID()+"/cancel", nil))
	if w.Code != http.StatusAccepted {
		t.Errorf("status code %d, want 202", w.Code)
	}
	st := h.Wait()
	if st.State != types.StateCancelled && st.State != types.StateCompleted {
		t.Errorf("job ended %s after cancel", st.State)
	}
}
