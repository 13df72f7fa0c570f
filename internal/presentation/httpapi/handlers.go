package httpapi

import (
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/image/draw"

	"github.com/rolfea/book-buddy/internal/domain"
)

const maxPreviewWidth = 1920

// GetStateHandler returns the observable scanner state
func (a *API) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.scanner.Snapshot())
}

// GetRecordsHandler returns the scan records of the current session
func (a *API) GetRecordsHandler(w http.ResponseWriter, r *http.Request) {
	records := a.scanner.Records()
	if records == nil {
		records = []domain.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type booksResponse struct {
	Books    []domain.Book     `json:"books"`
	Failures map[string]string `json:"failures"`
}

// GetBooksHandler returns the resolved books and failed lookups
func (a *API) GetBooksHandler(w http.ResponseWriter, r *http.Request) {
	resp := booksResponse{
		Books:    []domain.Book{},
		Failures: map[string]string{},
	}
	if a.books != nil {
		resp.Books = append(resp.Books, a.books.Books()...)
		resp.Failures = a.books.Failures()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CaptureHandler starts or stops capture
func (a *API) CaptureHandler(w http.ResponseWriter, r *http.Request) {
	var err error
	switch mux.Vars(r)["action"] {
	case "start":
		err = a.scanner.StartCapture()
	default:
		err = a.scanner.StopCapture()
	}
	a.respond(w, err)
}

// ResetSessionHandler starts a new scanning session
func (a *API) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	a.respond(w, a.scanner.ResetSession())
}

// RetryCameraHandler acquires the camera again after a failure
func (a *API) RetryCameraHandler(w http.ResponseWriter, r *http.Request) {
	a.respond(w, a.scanner.Open(r.Context()))
}

// GetFrameHandler encodes the latest frame as JPEG, optionally downscaled
// to the "width" query parameter
func (a *API) GetFrameHandler(w http.ResponseWriter, r *http.Request) {
	width := 0
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPreviewWidth {
			http.Error(w, "invalid width", http.StatusBadRequest)
			return
		}
		width = n
	}

	frame := a.scanner.LatestFrame()
	if frame == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	defer frame.Close()

	img := frame.Image()
	if img == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if width > 0 && width < img.Bounds().Dx() {
		img = scale(img, width)
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 80}); err != nil {
		a.logger.Debug("Error encoding preview frame: %v", err)
	}
}

// scale downsizes img to width, keeping the aspect ratio
func scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func (a *API) respond(w http.ResponseWriter, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			a.logger.Error("Request failed: %v", err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, a.scanner.Snapshot())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCapabilityUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrClosed), errors.Is(err, domain.ErrCancelled):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
