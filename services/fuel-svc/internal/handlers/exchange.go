package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/services/fuel-svc/internal/middleware"
	"fueltracker/services/fuel-svc/internal/service"
)

// ExchangeHandler экспорт и импорт
type ExchangeHandler struct {
	exchange     *service.ExchangeService
	maxFileBytes int64
}

// NewExchangeHandler создаёт новый handler
func NewExchangeHandler(exchange *service.ExchangeService, maxFileBytes int64) *ExchangeHandler {
	if maxFileBytes <= 0 {
		maxFileBytes = 5 << 20
	}
	return &ExchangeHandler{exchange: exchange, maxFileBytes: maxFileBytes}
}

// Export GET /api/v1/export/{format}?from=&to=&station=
func (h *ExchangeHandler) Export(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	file, err := h.exchange.Export(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("format"), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachment(w, file)
}

// Import POST /api/v1/import?dry_run=true
// Принимает multipart (поле file) или сырое тело с ?filename=.
func (h *ExchangeHandler) Import(w http.ResponseWriter, r *http.Request) {
	filename, content, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dryRun := queryBool(r.URL.Query().Get("dry_run"))
	report, err := h.exchange.Import(r.Context(), middleware.GetUserID(r.Context()), filename, content, dryRun)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if dryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, report)
}

// Sample GET /api/v1/import/sample
func (h *ExchangeHandler) Sample(w http.ResponseWriter, _ *http.Request) {
	attachment(w, h.exchange.Sample())
}

func (h *ExchangeHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	// запас на заголовки multipart
	body := http.MaxBytesReader(w, r.Body, h.maxFileBytes+64<<10)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			return "", nil, pkgerrors.NewWithField(pkgerrors.CodeInvalidArgument,
				"filename query parameter is required for raw uploads", "filename")
		}
		content, err := io.ReadAll(body)
		if err != nil {
			return "", nil, uploadError(err)
		}
		return filepath.Base(filename), content, nil
	}

	r.Body = body
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, pkgerrors.NewWithField(pkgerrors.CodeInvalidArgument, "file field is required", "file")
		}
		return "", nil, uploadError(err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, uploadError(err)
	}
	return filepath.Base(header.Filename), content, nil
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument,
			fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
	}
	return pkgerrors.Wrap(err, pkgerrors.CodeInvalidArgument, "failed to read upload")
}
