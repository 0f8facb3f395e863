package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docuport-backend-go/internal/store"
	"docuport-backend-go/internal/store/proxy"
)

// StoreHandler executes proxied facade operations against the backend
// configured at startup. It is the server half of the proxy wire contract:
// POST /api/{backendKind}/{operation} with a JSON parameter object, JSON
// response matching the facade's return type.
type StoreHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewStoreHandler creates a StoreHandler.
func NewStoreHandler(st store.Store, logger *zap.Logger) *StoreHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreHandler{store: st, logger: logger}
}

// Dispatch routes one wire operation. The {backend} segment must name the
// backend this process actually runs; anything else is a routing error, not
// an invitation to probe for another backend.
func (h *StoreHandler) Dispatch(c *gin.Context) {
	backend := c.Param("backend")
	if backend != h.store.Kind() {
		c.JSON(http.StatusNotFound, proxy.ErrorResponse{
			Error: "unknown backend kind: " + backend,
			Code:  proxy.CodeInvalidArgument,
		})
		return
	}
	switch c.Param("operation") {
	case proxy.OpGet:
		h.get(c)
	case proxy.OpSet:
		h.set(c)
	case proxy.OpUpdate:
		h.update(c)
	case proxy.OpDelete:
		h.delete(c)
	case proxy.OpAdd:
		h.add(c)
	case proxy.OpQuery:
		h.query(c)
	default:
		c.JSON(http.StatusNotFound, proxy.ErrorResponse{
			Error: "unknown operation: " + c.Param("operation"),
			Code:  proxy.CodeInvalidArgument,
		})
	}
}

func (h *StoreHandler) get(c *gin.Context) {
	var req proxy.GetRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, err := h.store.Get(c.Request.Context(), req.Collection, req.ID)
	if err != nil {
		h.fail(c, "get", err)
		return
	}
	c.JSON(http.StatusOK, proxy.GetResponse{Document: doc})
}

func (h *StoreHandler) set(c *gin.Context) {
	var req proxy.SetRequest
	if !bindJSON(c, &req) {
		return
	}
	fields, err := store.ReviveFieldOps(req.Fields)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.store.Set(c.Request.Context(), req.Collection, req.ID, fields, req.Merge); err != nil {
		h.fail(c, "set", err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *StoreHandler) update(c *gin.Context) {
	var req proxy.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	fields, err := store.ReviveFieldOps(req.Fields)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.store.Update(c.Request.Context(), req.Collection, req.ID, fields); err != nil {
		h.fail(c, "update", err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *StoreHandler) delete(c *gin.Context) {
	var req proxy.DeleteRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.store.Delete(c.Request.Context(), req.Collection, req.ID); err != nil {
		h.fail(c, "delete", err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *StoreHandler) add(c *gin.Context) {
	var req proxy.AddRequest
	if !bindJSON(c, &req) {
		return
	}
	fields, err := store.ReviveFieldOps(req.Fields)
	if err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.store.Add(c.Request.Context(), req.Collection, fields)
	if err != nil {
		h.fail(c, "add", err)
		return
	}
	c.JSON(http.StatusOK, proxy.AddResponse{ID: id})
}

func (h *StoreHandler) query(c *gin.Context) {
	var req proxy.QueryRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.store.Query(c.Request.Context(), req.Collection, req.Options)
	if err != nil {
		h.fail(c, "query", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, proxy.ErrorResponse{
		Error: err.Error(),
		Code:  proxy.CodeInvalidArgument,
	})
}

// fail maps facade errors onto wire status codes and stable error codes.
// Permission errors keep their code; everything unexpected is logged and
// reported as a backend error.
func (h *StoreHandler) fail(c *gin.Context, op string, err error) {
	var perm *store.PermissionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, proxy.ErrorResponse{Error: err.Error(), Code: proxy.CodeNotFound})
	case errors.Is(err, store.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, proxy.ErrorResponse{Error: err.Error(), Code: proxy.CodeNotConfigured})
	case errors.As(err, &perm):
		status := http.StatusForbidden
		if perm.Code == proxy.CodeUnauthenticated {
			status = http.StatusUnauthorized
		}
		c.JSON(status, proxy.ErrorResponse{Error: err.Error(), Code: perm.Code})
	case errors.Is(err, store.ErrUnsupportedOperator), errors.Is(err, store.ErrCursorMismatch):
		badRequest(c, err)
	default:
		h.logger.Error("store operation failed", zap.String("operation", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, proxy.ErrorResponse{Error: err.Error(), Code: proxy.CodeBackendError})
	}
}
