package imagesvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mkrupp/homecase-imagekv/internal/codec"
	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-imagekv/internal/infra/transport/http"
	"github.com/mkrupp/homecase-imagekv/internal/repo/blob"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// URLKeyParam is the URL path parameter name for blob keys.
	// Default is "key".
	URLKeyParam string `env:"URL_KEY_PARAM" default:"key"`

	// URLLimitParam is the URL parameter limiting journal listings.
	// Default is "limit".
	URLLimitParam string `env:"URL_LIMIT_PARAM" default:"limit"`

	// ContentDispositionDownload controls whether files are served with download headers.
	// Default is false.
	ContentDispositionDownload bool `env:"CONTENT_DISPOSITION_DOWNLOAD" default:"false"`

	// CommandBodyMaxSize is the maximum size of a POST /commands body.
	// Default is 64KB.
	CommandBodyMaxSize int64 `env:"COMMAND_BODY_MAX_SIZE" default:"65536"`
}

// DefaultHTTPTransportConfig returns the configuration used when none is loaded from the environment.
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	//nolint:exhaustruct
	return HTTPTransportConfig{
		URLKeyParam:        "key",
		URLLimitParam:      "limit",
		CommandBodyMaxSize: 64 << 10, //nolint:mnd
	}
}

// ErrEmptyCommand is returned when POST /commands carries no arguments.
var ErrEmptyCommand = errors.New("empty command")

// HTTPTransport handles HTTP requests for the image service.
// It provides endpoints for uploading, downloading, deleting and transforming images,
// and a raw command endpoint taking the same arguments as the CLI.
type HTTPTransport struct {
	imageSvc ImageService
	mux      *http.ServeMux
	log      logging.Logger
	cfg      HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// metricsHandler, if not nil, is served at GET /metrics.
func NewHTTPTransport(
	imageSvc ImageService,
	metricsHandler http.Handler,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		imageSvc: imageSvc,
		mux:      http.NewServeMux(),
		log:      logging.GetLogger("svc.imagesvc.http_transport"),
		cfg:      cfg,
	}

	keyPath := fmt.Sprintf("/images/{%s}", cfg.URLKeyParam)

	ht.mux.HandleFunc("PUT "+keyPath, ht.HandleUpload)
	ht.mux.HandleFunc("GET "+keyPath, ht.HandleDownload)
	ht.mux.HandleFunc("DELETE "+keyPath, ht.HandleDelete)
	ht.mux.HandleFunc("POST "+keyPath+"/rotate", ht.handleOperator(CommandRotate, "degrees"))
	ht.mux.HandleFunc("POST "+keyPath+"/swirl", ht.handleOperator(CommandSwirl, "degrees"))
	ht.mux.HandleFunc("POST "+keyPath+"/blur", ht.handleOperator(CommandBlur, "radius", "sigma"))
	ht.mux.HandleFunc("POST "+keyPath+"/thumbnail", ht.handleOperator(CommandThumbnail, "width", "height"))
	ht.mux.HandleFunc("GET "+keyPath+"/type", ht.handleOperator(CommandType))
	ht.mux.HandleFunc("GET "+keyPath+"/journal", ht.HandleJournal)
	ht.mux.HandleFunc("POST /commands", ht.HandleCommand)

	if metricsHandler != nil {
		ht.mux.Handle("GET /metrics", metricsHandler)
	}

	return ht
}

// ServeHTTP implements http.Handler and dispatches to the routes:
// - PUT /images/{key}: Upload raw image bytes
// - GET /images/{key}: Download raw image bytes
// - DELETE /images/{key}: Delete the key
// - POST /images/{key}/{rotate,swirl,blur,thumbnail}: Transform in place
// - GET /images/{key}/type: Identify the stored format
// - GET /images/{key}/journal: List recorded commands
// - POST /commands: Execute a JSON array of command arguments
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleUpload stores the request body under the key.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpload(w, r)
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "image upload failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "image uploaded")
		}
	}()

	key := r.PathValue(ht.cfg.URLKeyParam)
	if key == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return domain.ErrNoKey
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ht.imageSvc.MaxSize()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		}

		return fmt.Errorf("read body: %w", err)
	}

	if err := ht.imageSvc.Store(r.Context(), domain.NewBlob(domain.BlobKey(key), data)); err != nil {
		switch {
		case errors.Is(err, domain.ErrImageTooLarge):
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		case errors.Is(err, blob.ErrWrongType):
			http.Error(w, domain.MsgWrongType, http.StatusConflict)
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("store: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleDownload writes the raw bytes stored under the key.
func (ht *HTTPTransport) HandleDownload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDownload(w, r)
}

func (ht *HTTPTransport) handleDownload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "image download failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "image downloaded")
		}
	}()

	key := r.PathValue(ht.cfg.URLKeyParam)

	stored, err := ht.imageSvc.Fetch(r.Context(), domain.BlobKey(key))
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrKeyNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, blob.ErrWrongType):
			http.Error(w, domain.MsgWrongType, http.StatusConflict)
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("fetch: %w", err)
	}

	mime := mimetype.Detect(stored.Bytes())

	contentType := codec.ContentType(stored.Bytes())
	if contentType == "" {
		contentType = mime.String()
	}

	if ht.cfg.ContentDispositionDownload {
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(key+mime.Extension()))
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(stored.Size(), 10))

	if _, err := stored.WriteTo(w); err != nil {
		return fmt.Errorf("write to: %w", err)
	}

	return nil
}

// HandleDelete removes the key.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "image delete failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "image deleted")
		}
	}()

	if err := ht.imageSvc.Delete(r.Context(), domain.BlobKey(r.PathValue(ht.cfg.URLKeyParam))); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return fmt.Errorf("delete: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// handleOperator runs command on the key, taking the remaining arguments from the
// named query parameters. A missing parameter is passed as an empty argument.
func (ht *HTTPTransport) handleOperator(command string, params ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args := []string{command, r.PathValue(ht.cfg.URLKeyParam)}

		query := r.URL.Query()
		for _, param := range params {
			args = append(args, query.Get(param))
		}

		ht.writeReply(w, r, ht.imageSvc.Execute(r.Context(), args))
	}
}

// HandleCommand executes a JSON array of command arguments, e.g. ["ROTATE","img","90"].
func (ht *HTTPTransport) HandleCommand(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCommand(w, r)
}

func (ht *HTTPTransport) handleCommand(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.log.ErrorContext(r.Context(), "command request failed", "error", err)
		}
	}()

	var args []string

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, ht.cfg.CommandBodyMaxSize)).Decode(&args); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("decode command: %w", err)
	}

	if len(args) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrEmptyCommand
	}

	ht.writeReply(w, r, ht.imageSvc.Execute(r.Context(), args))

	return nil
}

// HandleJournal lists the recorded commands of the key as JSON.
func (ht *HTTPTransport) HandleJournal(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleJournal(w, r)
}

func (ht *HTTPTransport) handleJournal(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if err != nil {
			ht.log.ErrorContext(r.Context(), "journal request failed", "error", err)
		}
	}()

	var limit int

	if limitStr := r.URL.Query().Get(ht.cfg.URLLimitParam); limitStr != "" {
		if limit, err = parsePositiveInt(limitStr); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

			return fmt.Errorf("parse limit: %w", err)
		}
	}

	entries, err := ht.imageSvc.Journal(r.Context(), domain.BlobKey(r.PathValue(ht.cfg.URLKeyParam)), limit)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return fmt.Errorf("journal: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(entries); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

func (ht *HTTPTransport) writeReply(w http.ResponseWriter, r *http.Request, reply domain.Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ReplyStatusCode(reply))

	if err := json.NewEncoder(w).Encode(reply); err != nil {
		ht.log.ErrorContext(r.Context(), "encode reply failed", "error", err)
	}
}

// ReplyStatusCode maps a reply onto the HTTP status it is served with.
func ReplyStatusCode(reply domain.Reply) int {
	if !reply.IsError() {
		return http.StatusOK
	}

	switch reply.Code {
	case domain.CodeArgument, domain.CodeUnknownCommand:
		return http.StatusBadRequest
	case domain.CodeEmptyKey:
		return http.StatusNotFound
	case domain.CodeStoreType:
		return http.StatusConflict
	case domain.CodeCodecDecode, domain.CodeCodecTransform:
		return http.StatusUnprocessableEntity
	case domain.CodeServiceShutdown:
		return http.StatusServiceUnavailable
	case domain.CodeNone, domain.CodeStoreAccess, domain.CodeCodecEncode, domain.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
