package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lehigh-university-libraries/docgeo/internal/config"
	"github.com/lehigh-university-libraries/docgeo/internal/utils"
	"github.com/lehigh-university-libraries/docgeo/pkg/document"
	"github.com/lehigh-university-libraries/docgeo/pkg/groundtruth"
	"github.com/lehigh-university-libraries/docgeo/pkg/ocrerr"
	"github.com/lehigh-university-libraries/docgeo/pkg/pipeline"
	"github.com/spf13/cobra"
)

const (
	maxUploadBytes = 64 << 20
	maxFormMemory  = 32 << 20
)

var (
	servePort    string
	serveHost    string
	serveTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OCR HTTP service",
	Long: `Start an HTTP server exposing:

  POST /ocr        multipart "page" image -> positioned tokens
  POST /docaiify   multipart "pages" images -> structured line elements
  POST /normalize  document-metadata JSON -> pages and normalized fields
  POST /gt         ground truth box/value record -> appended to <GT_DIR>/<docId>.jsonl
  GET  /healthz    liveness`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "3001", "Port to run the web server on")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to bind the web server to")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 2*time.Minute, "Per-request processing deadline, 0 for none")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := groundtruth.NewStore(a.cfg.GroundTruthDir)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", serveHost, servePort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(a, store).routes(serveTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting docgeo server", "url", fmt.Sprintf("http://%s", addr), "engine", a.cfg.Engine)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type server struct {
	app   *app
	store *groundtruth.Store
}

func newServer(a *app, store *groundtruth.Store) *server {
	return &server{app: a, store: store}
}

func (s *server) routes(timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ocr", s.handleOCR)
	mux.HandleFunc("POST /docaiify", s.handleDocAIify)
	mux.HandleFunc("POST /normalize", s.handleNormalize)
	mux.HandleFunc("POST /gt", s.handleGroundTruth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return withCORS(withTimeout(timeout, mux))
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withTimeout(timeout time.Duration, next http.Handler) http.Handler {
	if timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		respondWithError(w, ocrerr.Input(0, err, "invalid multipart form"))
		return
	}

	page := 1
	if v := strings.TrimSpace(r.FormValue("pageNumber")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondWithError(w, ocrerr.Input(0, err, "invalid pageNumber %q", v))
			return
		}
		page = n
	}

	file, _, err := r.FormFile("page")
	if err != nil {
		respondWithError(w, ocrerr.Input(page, err, "missing 'page' file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, ocrerr.Input(page, err, "failed to read 'page' file"))
		return
	}

	opts, err := s.requestOptions(r)
	if err != nil {
		respondWithError(w, ocrerr.AtPage(err, page))
		return
	}

	tp, err := pipeline.ProcessTokens(r.Context(), data, page, opts)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tp)
}

func (s *server) handleDocAIify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		respondWithError(w, ocrerr.Input(0, err, "invalid multipart form"))
		return
	}

	headers := r.MultipartForm.File["pages"]
	if len(headers) == 0 {
		respondWithError(w, ocrerr.Input(0, nil, "missing 'pages' files"))
		return
	}

	opts, err := s.requestOptions(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	pages := make([]pipeline.PageInput, 0, len(headers))
	for i, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			respondWithError(w, ocrerr.Input(i+1, err, "failed to read %q", fh.Filename))
			return
		}
		pages = append(pages, pipeline.PageInput{Page: i + 1, Data: data})
	}

	batch := pipeline.ProcessElements(r.Context(), pages, opts)
	respondWithJSON(w, http.StatusOK, pipeline.BuildStructured(batch, opts))
}

func (s *server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondWithError(w, ocrerr.Input(0, err, "failed to read body"))
		return
	}
	out, err := document.Flatten(data)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *server) handleGroundTruth(w http.ResponseWriter, r *http.Request) {
	var rec groundtruth.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err := dec.Decode(&rec); err != nil {
		respondWithError(w, ocrerr.Input(0, err, "invalid ground truth record"))
		return
	}
	if err := s.store.Append(rec); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"engine": s.app.cfg.Engine,
	})
}

// requestOptions applies the optional form fields engine, lang, config, dpi,
// threshold and binarize to a copy of the process configuration. Invalid
// values are the caller's fault, so they come back as input errors.
func (s *server) requestOptions(r *http.Request) (pipeline.Options, error) {
	cfg := *s.app.cfg
	if err := applyForm(r, &cfg); err != nil {
		return pipeline.Options{}, err
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Options{}, ocrerr.Input(0, err, "invalid request options")
	}
	opts, err := s.app.options(&cfg)
	if err != nil {
		return pipeline.Options{}, ocrerr.Input(0, err, "invalid request options")
	}
	return opts, nil
}

func applyForm(r *http.Request, cfg *config.Config) error {
	for field, dst := range map[string]*string{
		"engine":   &cfg.Engine,
		"lang":     &cfg.Language,
		"config":   &cfg.EngineConfig,
		"binarize": &cfg.Binarize,
	} {
		if v := strings.TrimSpace(r.FormValue(field)); v != "" {
			*dst = v
		}
	}
	for field, dst := range map[string]*int{
		"dpi":       &cfg.TargetDPI,
		"threshold": &cfg.Threshold,
	} {
		v := strings.TrimSpace(r.FormValue(field))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return ocrerr.Input(0, err, "invalid %s %q", field, v)
		}
		*dst = n
	}
	return nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch ocrerr.KindOf(err) {
	case ocrerr.KindInput:
		return http.StatusUnprocessableEntity
	case ocrerr.KindEngine:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	masked := utils.MaskSensitiveError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "err", masked)
	} else {
		slog.Warn("Request rejected", "status", status, "err", masked)
	}

	body := map[string]any{"error": masked.Error()}
	if page := ocrerr.PageOf(err); page > 0 {
		body["page"] = page
	}
	respondWithJSON(w, status, body)
}

func respondWithJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}
