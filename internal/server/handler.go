package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	gatewayfile "github.com/black-06/grpc-gateway-file"
	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/emrgen/revision/internal/metrics"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/service"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxBodyBytes = 8 << 20

type handlerFunc func(ctx context.Context, r *http.Request, params map[string]string) (any, int, error)

// Handler serves the REST API of the version history service.
type Handler struct {
	versions  *service.VersionService
	proposals *service.ProposalService
	metrics   *metrics.Metrics
	timeout   time.Duration
}

// NewHandler registers every REST route on a gateway mux and returns it.
func NewHandler(versions *service.VersionService, proposals *service.ProposalService, m *metrics.Metrics, timeout time.Duration) (http.Handler, error) {
	h := &Handler{
		versions:  versions,
		proposals: proposals,
		metrics:   m,
		timeout:   timeout,
	}

	mux := runtime.NewServeMux(
		gatewayfile.WithHTTPBodyMarshaler(),
		runtime.WithRoutingErrorHandler(routingErrorHandler),
	)

	routes := []struct {
		method  string
		pattern string
		handle  handlerFunc
	}{
		{http.MethodGet, "/healthz", h.health},

		{http.MethodPost, "/api/proposals", h.createProposal},
		{http.MethodPost, "/api/proposals/{proposalId}/forms", h.createForm},
		{http.MethodGet, "/api/proposals/{proposalId}/forms", h.listForms},

		{http.MethodGet, "/api/proposals/{proposalId}/versions", h.listVersions},
		{http.MethodPost, "/api/proposals/{proposalId}/versions", h.saveVersion},
		{http.MethodGet, "/api/proposals/{proposalId}/versions/{versionNumber}", h.getVersion},
		{http.MethodPost, "/api/proposals/{proposalId}/versions/{versionNumber}/rollback", h.rollback},
		{http.MethodGet, "/api/proposals/{proposalId}/content", h.currentContent},
		{http.MethodGet, "/api/proposals/{proposalId}/version-stats", h.versionStats},

		{http.MethodGet, "/api/proposals/{proposalId}/forms/{formId}/versions", h.listVersions},
		{http.MethodPost, "/api/proposals/{proposalId}/forms/{formId}/versions", h.saveVersion},
		{http.MethodGet, "/api/proposals/{proposalId}/forms/{formId}/versions/{versionNumber}", h.getVersion},
		{http.MethodPost, "/api/proposals/{proposalId}/forms/{formId}/versions/{versionNumber}/rollback", h.rollback},
		{http.MethodGet, "/api/proposals/{proposalId}/forms/{formId}/content", h.currentContent},
	}

	for _, route := range routes {
		err := mux.HandlePath(route.method, route.pattern, h.wrap(route.method, route.pattern, route.handle))
		if err != nil {
			return nil, err
		}
	}

	return mux, nil
}

func (h *Handler) wrap(method, pattern string, handle handlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		requestTime(h.metrics, method, pattern, func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if h.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, h.timeout)
				defer cancel()
			}

			resp, code, err := handle(ctx, r, params)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, code, resp)
		})(w, r)
	}
}

func (h *Handler) health(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	return map[string]string{"status": "ok"}, http.StatusOK, nil
}

func (h *Handler) createProposal(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	var req v1.CreateProposalRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, 0, err
	}

	resp, err := h.proposals.CreateProposal(ctx, &req)
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusCreated, nil
}

func (h *Handler) createForm(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	var req v1.CreateFormRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, 0, err
	}

	resp, err := h.proposals.CreateForm(ctx, params["proposalId"], &req)
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusCreated, nil
}

func (h *Handler) listForms(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	resp, err := h.proposals.ListForms(ctx, params["proposalId"])
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusOK, nil
}

func (h *Handler) listVersions(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	limit := v1.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, 0, status.Errorf(codes.InvalidArgument, "invalid limit %q", raw)
		}
		limit = n
	}

	resp, err := h.versions.ListVersions(ctx, scopeFromParams(params), limit)
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusOK, nil
}

func (h *Handler) saveVersion(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	var req v1.SaveVersionRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, 0, err
	}

	resp, err := h.versions.SaveVersion(ctx, scopeFromParams(params), userFromRequest(r), &req)
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusCreated, nil
}

func (h *Handler) getVersion(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	number, err := versionNumberParam(params)
	if err != nil {
		return nil, 0, err
	}

	resp, err := h.versions.GetVersion(ctx, scopeFromParams(params), number)
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusOK, nil
}

func (h *Handler) rollback(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	number, err := versionNumberParam(params)
	if err != nil {
		return nil, 0, err
	}

	resp, err := h.versions.Rollback(ctx, scopeFromParams(params), number, userFromRequest(r))
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusOK, nil
}

func (h *Handler) currentContent(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	resp, err := h.versions.GetCurrentContent(ctx, scopeFromParams(params))
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusOK, nil
}

func (h *Handler) versionStats(ctx context.Context, r *http.Request, params map[string]string) (any, int, error) {
	resp, err := h.versions.GetVersionStats(ctx, params["proposalId"])
	if err != nil {
		return nil, 0, err
	}

	return resp, http.StatusOK, nil
}

func scopeFromParams(params map[string]string) model.Scope {
	if formID, ok := params["formId"]; ok {
		return model.FormScope(params["proposalId"], formID)
	}

	return model.ProposalScope(params["proposalId"])
}

func versionNumberParam(params map[string]string) (int64, error) {
	raw := params["versionNumber"]
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid version number %q", raw)
	}

	return n, nil
}

func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return status.Error(codes.InvalidArgument, "request body too large")
		}
		return status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("error writing response: %v", err)
	}
}

// writeError reports err with the HTTP status matching its status code.
// Errors without a status code are reported as internal errors.
func writeError(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		st = status.New(codes.Internal, err.Error())
	}
	if st.Code() == codes.Internal {
		logrus.Errorf("request failed: %v", err)
	}

	writeJSON(w, runtime.HTTPStatusFromCode(st.Code()), &v1.ErrorResponse{
		Code:    int(st.Code()),
		Message: st.Message(),
	})
}

func routingErrorHandler(ctx context.Context, mux *runtime.ServeMux, marshaler runtime.Marshaler, w http.ResponseWriter, r *http.Request, httpStatus int) {
	code := codes.NotFound
	message := "route not found"
	if httpStatus == http.StatusMethodNotAllowed {
		code = codes.Unimplemented
		message = "method not allowed"
	}

	writeJSON(w, httpStatus, &v1.ErrorResponse{Code: int(code), Message: message})
}
