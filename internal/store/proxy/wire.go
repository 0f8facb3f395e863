package proxy

import "docuport-backend-go/internal/store"

// Wire contract shared by both halves of the proxied mode: the Client in
// this package sends these bodies as POST {baseURL}/api/{backendKind}/{op},
// and the intermediary's handlers bind the same types before executing the
// real backend call. Field operations travel as their tagged JSON form and
// are revived server-side.

// Operation names appearing in the request path.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpUpdate = "update"
	OpDelete = "delete"
	OpAdd    = "add"
	OpQuery  = "query"
)

type GetRequest struct {
	Collection string `json:"collection" binding:"required"`
	ID         string `json:"id" binding:"required"`
}

type GetResponse struct {
	Document *store.Document `json:"document"`
}

type SetRequest struct {
	Collection string         `json:"collection" binding:"required"`
	ID         string         `json:"id" binding:"required"`
	Fields     map[string]any `json:"fields"`
	Merge      bool           `json:"merge"`
}

type UpdateRequest struct {
	Collection string         `json:"collection" binding:"required"`
	ID         string         `json:"id" binding:"required"`
	Fields     map[string]any `json:"fields"`
}

type DeleteRequest struct {
	Collection string `json:"collection" binding:"required"`
	ID         string `json:"id" binding:"required"`
}

type AddRequest struct {
	Collection string         `json:"collection" binding:"required"`
	Fields     map[string]any `json:"fields"`
}

type AddResponse struct {
	ID string `json:"id"`
}

type QueryRequest struct {
	Collection string        `json:"collection" binding:"required"`
	Options    store.Options `json:"options"`
}

// QueryResponse is the facade's query return type verbatim.
type QueryResponse = store.Result

// ErrorResponse carries a stable machine-readable code alongside the
// human-readable message.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Stable error codes used in ErrorResponse.Code.
const (
	CodeNotFound         = "not-found"
	CodeNotConfigured    = "not-configured"
	CodePermissionDenied = "permission-denied"
	CodeUnauthenticated  = "unauthenticated"
	CodeInvalidArgument  = "invalid-argument"
	CodeBackendError     = "backend-error"
)
