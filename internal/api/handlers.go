package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/errdefs"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/health"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/iprange"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/record"
	"github.com/yuriy-kovalchuk/yk-geodns-manager/internal/service"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error     string         `json:"error"`
	Kind      errdefs.Kind   `json:"kind,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Existing  *iprange.Range `json:"existing,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type RecordList struct {
	Records []service.RecordStatus `json:"data"`
	Count   int                    `json:"count"`
}

type ExistsResponse struct {
	Exists     bool        `json:"exists"`
	RecordType record.Type `json:"record_type,omitempty"`
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.ListRecords(r.Context())
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, RecordList{Records: recs, Count: len(recs)}, http.StatusOK)
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.svc.CreateRecord(r.Context(), req)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, rec, http.StatusCreated)
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	rs, err := h.svc.GetRecord(r.Context(), mux.Vars(r)["fqdn"])
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, rs, http.StatusOK)
}

// updateRecord replaces the record named in the path. A body fqdn, when
// present, must name the same record: renaming is a delete plus a create.
func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	var req service.Request
	if !h.decode(w, r, &req) {
		return
	}
	pathFQDN, err := record.CanonicalFQDN(mux.Vars(r)["fqdn"])
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	if req.FQDN != "" {
		bodyFQDN, err := record.CanonicalFQDN(req.FQDN)
		if err != nil {
			h.sendFailure(w, r, err)
			return
		}
		if bodyFQDN != pathFQDN {
			h.sendFailure(w, r, errdefs.Invalid(errdefs.KindInvalidFQDN, req.FQDN, "fqdn cannot be changed, delete and recreate the record"))
			return
		}
	}
	req.FQDN = pathFQDN

	rec, err := h.svc.UpdateRecord(r.Context(), req)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, rec, http.StatusOK)
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRecord(r.Context(), mux.Vars(r)["fqdn"]); err != nil {
		h.sendFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordExists(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	if host == "" {
		h.sendFailure(w, r, errdefs.Invalid(errdefs.KindInvalidFQDN, "", "query parameter host is required"))
		return
	}
	typ, ok, err := h.svc.RecordExists(r.Context(), host)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, ExistsResponse{Exists: ok, RecordType: typ}, http.StatusOK)
}

func (h *Handler) reportHealth(w http.ResponseWriter, r *http.Request) {
	var report health.Report
	if !h.decode(w, r, &report) {
		return
	}
	sample, err := h.svc.ReportHealth(r.Context(), report)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, sample, http.StatusOK)
}

func (h *Handler) listRanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.sendError(w, fmt.Sprintf("limit must be a positive integer, got %q", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}
	page, err := h.svc.ListRanges(limit, q.Get("start_after"))
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, page, http.StatusOK)
}

func (h *Handler) createRange(w http.ResponseWriter, r *http.Request) {
	var in iprange.Range
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.svc.CreateRange(r.Context(), in)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, out, http.StatusCreated)
}

func (h *Handler) updateRange(w http.ResponseWriter, r *http.Request) {
	var patch iprange.Patch
	if !h.decode(w, r, &patch) {
		return
	}
	out, err := h.svc.UpdateRange(r.Context(), mux.Vars(r)["start_ip"], patch)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, out, http.StatusOK)
}

func (h *Handler) deleteRange(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRange(r.Context(), mux.Vars(r)["start_ip"]); err != nil {
		h.sendFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookupCountry(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	loc, ok, err := h.svc.LookupCountry(address)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	if !ok {
		h.sendError(w, fmt.Sprintf("no ip range contains %s", address), http.StatusNotFound)
		return
	}
	h.sendJSON(w, loc, http.StatusOK)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.sendError(w, "route not found", http.StatusNotFound)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.sendError(w, fmt.Sprintf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		h.sendError(w, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// sendFailure maps err to a status code: validation 400, not found 404,
// conflict 409, unsupported health reporting 501, anything else 500.
func (h *Handler) sendFailure(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error(), Timestamp: time.Now().UTC()}
	code := http.StatusInternalServerError

	var overlap *iprange.OverlapError
	switch {
	case errors.As(err, &overlap):
		code = http.StatusConflict
		resp.Existing = &overlap.Existing
	case errdefs.IsConflict(err):
		code = http.StatusConflict
	case errdefs.IsNotFound(err):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrReportingUnsupported):
		code = http.StatusNotImplemented
	default:
		if v, ok := errdefs.AsValidation(err); ok {
			code = http.StatusBadRequest
			resp.Kind = v.Kind
			resp.Subject = v.Subject
		}
	}

	if code == http.StatusInternalServerError {
		h.log.Error(err, "request failed", "method", r.Method, "path", r.URL.Path)
		resp.Error = "internal error"
	} else {
		h.log.V(1).Info("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "error", err.Error())
	}
	h.sendJSON(w, resp, code)
}

func (h *Handler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, ErrorResponse{Error: message, Timestamp: time.Now().UTC()}, statusCode)
}

func (h *Handler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error(err, "encoding response")
	}
}
