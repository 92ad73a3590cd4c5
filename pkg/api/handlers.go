package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/hatrom/pkg/codec"
	"github.com/ssargent/hatrom/pkg/inventory"
)

// ImageList is the response body for inventory listings
type ImageList struct {
	Images []*inventory.Entry `json:"images"`
	Count  int                `json:"count"`
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleDecode godoc
//
//	@Summary		Decode an image
//	@Description	Decode a raw EEPROM image and report its atoms and checksum state
//	@Tags			codec
//	@Accept			octet-stream
//	@Produce		json
//	@Param			body	body		[]byte	true	"EEPROM image"
//	@Success		200		{object}	codec.Inspection
//	@Failure		400		{object}	map[string]string
//	@Failure		413		{object}	map[string]string
//	@Router			/decode [post]
//	@Security		ApiKeyAuth
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	_, inspection, err := codec.Inspect(body)
	if err != nil {
		s.metrics.RecordCodecOperation("decode", false, len(body))
		sendError(w, fmt.Sprintf("Failed to decode image: %v", err), http.StatusBadRequest)
		return
	}

	s.metrics.RecordCodecOperation("decode", true, len(body))
	s.metrics.RecordSkippedAtoms(len(inspection.SkippedAtoms))
	sendSuccess(w, inspection)
}

// handleEncode godoc
//
//	@Summary		Encode an image
//	@Description	Build an EEPROM image from a YAML or JSON manifest. Pass crc=false to omit the checksum trailer.
//	@Tags			codec
//	@Accept			json,yaml
//	@Produce		octet-stream
//	@Param			body	body		codec.Manifest	true	"Image manifest"
//	@Param			crc		query		bool			false	"Append CRC-32 trailer (default true)"
//	@Success		200		{string}	byte
//	@Failure		400		{object}	map[string]string
//	@Router			/encode [post]
//	@Security		ApiKeyAuth
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	withCRC := true
	if v := r.URL.Query().Get("crc"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			sendError(w, "Invalid crc parameter", http.StatusBadRequest)
			return
		}
		withCRC = parsed
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	// JSON is a subset of YAML, so one parser covers both content types
	manifest, err := codec.ParseManifest(body)
	if err != nil {
		s.metrics.RecordCodecOperation("encode", false, 0)
		sendError(w, fmt.Sprintf("Invalid manifest: %v", err), http.StatusBadRequest)
		return
	}

	eeprom, err := manifest.Build()
	if err != nil {
		s.metrics.RecordCodecOperation("encode", false, 0)
		sendError(w, fmt.Sprintf("Failed to build image: %v", err), http.StatusBadRequest)
		return
	}

	var image []byte
	if withCRC {
		image = eeprom.SerializeWithCRC()
	} else {
		image = eeprom.Serialize()
	}
	s.metrics.RecordCodecOperation("encode", true, len(image))

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="eeprom.bin"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

// handlePutImage godoc
//
//	@Summary		Store an image
//	@Description	Decode a raw EEPROM image and add it to the inventory
//	@Tags			images
//	@Accept			octet-stream
//	@Produce		json
//	@Param			label	query		string	false	"Free-form label"
//	@Param			body	body		[]byte	true	"EEPROM image"
//	@Success		201		{object}	inventory.Entry
//	@Failure		400		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/images [post]
//	@Security		ApiKeyAuth
func (s *Server) handlePutImage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, ok := s.readBody(w, r)
	if !ok {
		s.metrics.RecordInventoryOperation("put", false, time.Since(start))
		return
	}

	entry, err := s.store.Put(r.URL.Query().Get("label"), body)
	if err != nil {
		s.metrics.RecordInventoryOperation("put", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to store image: %v", err), storeErrorStatus(err))
		return
	}

	s.metrics.RecordInventoryOperation("put", true, time.Since(start))
	sendStatus(w, entry, http.StatusCreated)
}

// handleListImages godoc
//
//	@Summary		List images
//	@Description	List stored images oldest first. With uuid set, return only the newest image for that board.
//	@Tags			images
//	@Produce		json
//	@Param			uuid	query		string	false	"Board UUID"
//	@Success		200		{object}	ImageList
//	@Failure		404		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/images [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if uuid := r.URL.Query().Get("uuid"); uuid != "" {
		entry, err := s.store.GetByUUID(uuid)
		if err != nil {
			s.metrics.RecordInventoryOperation("get_by_uuid", false, time.Since(start))
			sendError(w, fmt.Sprintf("Failed to find image: %v", err), storeErrorStatus(err))
			return
		}
		s.metrics.RecordInventoryOperation("get_by_uuid", true, time.Since(start))
		sendSuccess(w, ImageList{Images: []*inventory.Entry{entry}, Count: 1})
		return
	}

	entries, err := s.store.List()
	if err != nil {
		s.metrics.RecordInventoryOperation("list", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to list images: %v", err), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*inventory.Entry{}
	}

	s.metrics.RecordInventoryOperation("list", true, time.Since(start))
	s.metrics.UpdateInventoryStats(len(entries))
	sendSuccess(w, ImageList{Images: entries, Count: len(entries)})
}

// handleGetImage godoc
//
//	@Summary		Get image metadata
//	@Tags			images
//	@Produce		json
//	@Param			id	path		string	true	"Image ID"
//	@Success		200	{object}	inventory.Entry
//	@Failure		400	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/images/{id} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	entry, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.metrics.RecordInventoryOperation("get", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to get image: %v", err), storeErrorStatus(err))
		return
	}

	s.metrics.RecordInventoryOperation("get", true, time.Since(start))
	sendSuccess(w, entry)
}

// handleGetImageRaw godoc
//
//	@Summary		Download an image
//	@Description	Return the stored image bytes exactly as they were added
//	@Tags			images
//	@Produce		octet-stream
//	@Param			id	path		string	true	"Image ID"
//	@Success		200	{string}	byte
//	@Failure		400	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/images/{id}/raw [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetImageRaw(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	image, err := s.store.Image(id)
	if err != nil {
		s.metrics.RecordInventoryOperation("image", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to get image: %v", err), storeErrorStatus(err))
		return
	}

	s.metrics.RecordInventoryOperation("image", true, time.Since(start))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.eep"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

// handleDeleteImage godoc
//
//	@Summary		Delete an image
//	@Tags			images
//	@Produce		json
//	@Param			id	path		string	true	"Image ID"
//	@Success		200	{object}	map[string]string
//	@Failure		400	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/images/{id} [delete]
//	@Security		ApiKeyAuth
func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		s.metrics.RecordInventoryOperation("delete", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to delete image: %v", err), storeErrorStatus(err))
		return
	}

	s.metrics.RecordInventoryOperation("delete", true, time.Since(start))
	sendSuccess(w, map[string]string{"message": "Image deleted successfully"})
}

// readBody reads the request body up to the configured limit. On failure it
// writes the error response and returns false.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(body) == 0 {
		sendError(w, "Request body is empty", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// storeErrorStatus maps inventory and codec errors to HTTP status codes
func storeErrorStatus(err error) int {
	var formatErr *codec.FormatError
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrInvalidID):
		return http.StatusBadRequest
	case errors.As(err, &formatErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
