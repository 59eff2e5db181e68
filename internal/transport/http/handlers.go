// Package httpapi is the thin HTTP layer. Handlers decode, delegate to the
// domain services, and encode; every business rule lives below this package.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gridconsent/internal/audit"
	"gridconsent/internal/document"
	"gridconsent/internal/grant"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	requestservice "gridconsent/internal/request/service"
	"gridconsent/internal/scope"
	"gridconsent/internal/transport/http/middleware"
	"gridconsent/internal/transport/http/shared"
	domainerrors "gridconsent/pkg/domain-errors"
)

// RequestService is the request lifecycle surface the transport needs.
type RequestService interface {
	Create(ctx context.Context, p request.Payload) (*request.AuthorizationRequest, error)
	Accept(ctx context.Context, id request.ID, acting party.ID) (*requestservice.View, error)
	Reject(ctx context.Context, id request.ID, acting party.ID) (*request.AuthorizationRequest, error)
	Get(ctx context.Context, id request.ID) (*requestservice.View, error)
}

// GrantService is the grant lifecycle surface the transport needs.
type GrantService interface {
	Consume(ctx context.Context, id grant.ID, acting party.ID, newStatus grant.Status) (*grant.Grant, error)
	GetScopes(ctx context.Context, id grant.ID, acting party.ID) ([]scope.Scope, error)
}

// DocumentService is the signing pipeline surface the transport needs.
type DocumentService interface {
	Generate(ctx context.Context, requestID request.ID) (*document.SignableDocument, error)
	Sign(ctx context.Context, id document.ID, acting party.ID, title string, content []byte) (*document.SignableDocument, *grant.Grant, error)
	Get(ctx context.Context, id document.ID) (*document.SignableDocument, error)
}

// Handler carries the wired services.
type Handler struct {
	requests  RequestService
	grants    GrantService
	documents DocumentService
	auditor   audit.Publisher
	log       *slog.Logger
}

// NewHandler constructs the HTTP handler set.
func NewHandler(requests RequestService, grants GrantService, documents DocumentService, auditor audit.Publisher, log *slog.Logger) *Handler {
	return &Handler{
		requests:  requests,
		grants:    grants,
		documents: documents,
		auditor:   auditor,
		log:       log,
	}
}

type identifierDTO struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type createRequestDTO struct {
	Type          string            `json:"type"`
	RequestedBy   identifierDTO     `json:"requestedBy"`
	RequestedFrom identifierDTO     `json:"requestedFrom"`
	RequestedTo   identifierDTO     `json:"requestedTo"`
	Fields        map[string]string `json:"fields"`
}

type propertyDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type requestDTO struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Status     string        `json:"status"`
	ValidTo    time.Time     `json:"validTo"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	ApprovedBy *string       `json:"approvedBy,omitempty"`
	GrantID    *string       `json:"grantId,omitempty"`
	Properties []propertyDTO `json:"properties"`
}

func toRequestDTO(r *request.AuthorizationRequest, grantID *grant.ID) requestDTO {
	dto := requestDTO{
		ID:         r.ID.String(),
		Type:       string(r.Type),
		Status:     string(r.Status),
		ValidTo:    r.ValidTo,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Properties: make([]propertyDTO, 0, len(r.Properties)),
	}
	for _, p := range r.Properties {
		dto.Properties = append(dto.Properties, propertyDTO{Key: p.Key, Value: p.Value})
	}
	if r.ApprovedBy != nil {
		s := r.ApprovedBy.String()
		dto.ApprovedBy = &s
	}
	if grantID != nil {
		s := grantID.String()
		dto.GrantID = &s
	}
	return dto
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dto createRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	created, err := h.requests.Create(ctx, request.Payload{
		Type:          request.Type(dto.Type),
		RequestedBy:   party.ExternalIdentifier{Kind: party.IdentifierKind(dto.RequestedBy.Kind), Value: dto.RequestedBy.Value},
		RequestedFrom: party.ExternalIdentifier{Kind: party.IdentifierKind(dto.RequestedFrom.Kind), Value: dto.RequestedFrom.Value},
		RequestedTo:   party.ExternalIdentifier{Kind: party.IdentifierKind(dto.RequestedTo.Kind), Value: dto.RequestedTo.Value},
		Fields:        dto.Fields,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionRequestCreated,
		Subject: created.ID.String(),
		Actor:   created.RequestedBy.String(),
		Details: map[string]string{"type": string(created.Type)},
	})
	shared.WriteJSON(w, http.StatusCreated, toRequestDTO(created, nil))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	view, err := h.requests.Get(r.Context(), request.ID(chi.URLParam(r, "id")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRequestDTO(view.Request, view.GrantID))
}

func (h *Handler) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acting, err := middleware.MustParty(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	view, err := h.requests.Accept(ctx, request.ID(chi.URLParam(r, "id")), acting)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionRequestAccepted,
		Subject: view.Request.ID.String(),
		Actor:   acting.String(),
		Details: map[string]string{"grantId": view.GrantID.String()},
	})
	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionGrantCreated,
		Subject: view.GrantID.String(),
		Actor:   acting.String(),
		Details: map[string]string{
			"sourceType": string(grant.SourceRequest),
			"sourceId":   view.Request.ID.String(),
		},
	})
	shared.WriteJSON(w, http.StatusOK, toRequestDTO(view.Request, view.GrantID))
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acting, err := middleware.MustParty(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rejected, err := h.requests.Reject(ctx, request.ID(chi.URLParam(r, "id")), acting)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionRequestRejected,
		Subject: rejected.ID.String(),
		Actor:   acting.String(),
	})
	shared.WriteJSON(w, http.StatusOK, toRequestDTO(rejected, nil))
}

type consumeDTO struct {
	Status string `json:"status"`
}

type grantDTO struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	GrantedAt  time.Time  `json:"grantedAt"`
	ValidFrom  time.Time  `json:"validFrom"`
	ValidTo    time.Time  `json:"validTo"`
	SourceType string     `json:"sourceType"`
	SourceID   string     `json:"sourceId"`
	Scopes     []scopeDTO `json:"scopes"`
}

type scopeDTO struct {
	ResourceType   string `json:"resourceType"`
	ResourceID     string `json:"resourceId"`
	PermissionType string `json:"permissionType"`
}

func toGrantDTO(g *grant.Grant) grantDTO {
	dto := grantDTO{
		ID:         g.ID.String(),
		Status:     string(g.Status),
		GrantedAt:  g.GrantedAt,
		ValidFrom:  g.ValidFrom,
		ValidTo:    g.ValidTo,
		SourceType: string(g.SourceType),
		SourceID:   g.SourceID,
		Scopes:     make([]scopeDTO, 0, len(g.Scopes)),
	}
	for _, sc := range g.Scopes {
		dto.Scopes = append(dto.Scopes, scopeDTO{
			ResourceType:   string(sc.ResourceType),
			ResourceID:     sc.ResourceID,
			PermissionType: string(sc.PermissionType),
		})
	}
	return dto
}

func (h *Handler) handleConsumeGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acting, err := middleware.MustParty(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var dto consumeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	g, err := h.grants.Consume(ctx, grant.ID(chi.URLParam(r, "id")), acting, grant.Status(dto.Status))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionGrantConsumed,
		Subject: g.ID.String(),
		Actor:   acting.String(),
	})
	shared.WriteJSON(w, http.StatusOK, toGrantDTO(g))
}

func (h *Handler) handleGetGrantScopes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acting, err := middleware.MustParty(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	scopes, err := h.grants.GetScopes(ctx, grant.ID(chi.URLParam(r, "id")), acting)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]scopeDTO, 0, len(scopes))
	for _, sc := range scopes {
		out = append(out, scopeDTO{
			ResourceType:   string(sc.ResourceType),
			ResourceID:     sc.ResourceID,
			PermissionType: string(sc.PermissionType),
		})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type generateDTO struct {
	RequestID string `json:"requestId"`
}

type documentDTO struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	Title     string    `json:"title"`
	Content   []byte    `json:"content"`
	Signed    bool      `json:"signed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toDocumentDTO(d *document.SignableDocument) documentDTO {
	return documentDTO{
		ID:        d.ID.String(),
		RequestID: d.RequestID.String(),
		Title:     d.Title,
		Content:   d.Content,
		Signed:    d.Signed,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (h *Handler) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := middleware.MustParty(ctx); err != nil {
		shared.WriteError(w, err)
		return
	}

	var dto generateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.RequestID == "" {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "requestId is required"))
		return
	}

	doc, err := h.documents.Generate(ctx, request.ID(dto.RequestID))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionDocumentCreated,
		Subject: doc.ID.String(),
		Details: map[string]string{"requestId": dto.RequestID},
	})
	shared.WriteJSON(w, http.StatusCreated, toDocumentDTO(doc))
}

type signDTO struct {
	Title   string `json:"title"`
	Content []byte `json:"content"`
}

type signedDocumentDTO struct {
	Document documentDTO `json:"document"`
	Grant    grantDTO    `json:"grant"`
}

func (h *Handler) handleSignDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acting, err := middleware.MustParty(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var dto signDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	doc, derived, err := h.documents.Sign(ctx, document.ID(chi.URLParam(r, "id")), acting, dto.Title, dto.Content)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionDocumentSigned,
		Subject: doc.ID.String(),
		Actor:   acting.String(),
		Details: map[string]string{"grantId": derived.ID.String()},
	})
	h.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionGrantCreated,
		Subject: derived.ID.String(),
		Actor:   acting.String(),
		Details: map[string]string{
			"sourceType": string(derived.SourceType),
			"sourceId":   derived.SourceID,
		},
	})
	shared.WriteJSON(w, http.StatusOK, signedDocumentDTO{
		Document: toDocumentDTO(doc),
		Grant:    toGrantDTO(derived),
	})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := middleware.MustParty(ctx); err != nil {
		shared.WriteError(w, err)
		return
	}

	doc, err := h.documents.Get(ctx, document.ID(chi.URLParam(r, "id")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDocumentDTO(doc))
}
