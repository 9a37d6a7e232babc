package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// HTTPClient talks to the ticketing backend over REST.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	catalog *Catalog
	logger  *zap.Logger
}

// NewHTTPClient builds the REST adapter. catalog may be nil, in which
// case backend conflict text passes through verbatim.
func NewHTTPClient(baseURL string, timeout time.Duration, catalog *Catalog, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{baseURL: baseURL, timeout: timeout, catalog: catalog, logger: logger}
}

// ticketPayload is the backend's wire shape for tickets.
type ticketPayload struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	CategoryID       string                `json:"categoryId"`
	SupportServiceID string                `json:"supportServiceId"`
	Priority         domain.TicketPriority `json:"priority"`
	Status           domain.TicketStatus   `json:"status"`
	UserID           string                `json:"userId"`
	UserEmail        string                `json:"userEmail"`
	FiscalCode       string                `json:"fiscalCode"`
	PhoneNumber      string                `json:"phoneNumber"`
	AssignedToID     *string               `json:"assignedToId"`
	CreatedDate      time.Time             `json:"createdDate"`
}

func (p *ticketPayload) toDomain() *domain.Ticket {
	return &domain.Ticket{
		ID:               p.ID,
		Title:            p.Title,
		Description:      p.Description,
		CategoryID:       p.CategoryID,
		SupportServiceID: p.SupportServiceID,
		Priority:         p.Priority,
		Status:           p.Status,
		OwnerUserID:      p.UserID,
		OwnerEmail:       p.UserEmail,
		OwnerFiscalCode:  p.FiscalCode,
		OwnerPhone:       p.PhoneNumber,
		AssignedToID:     p.AssignedToID,
		CreatedAt:        p.CreatedDate,
	}
}

type accountPayload struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	FiscalCode string `json:"fiscalCode"`
	PhoneNumber string `json:"phoneNumber"`
}

func (p *accountPayload) toDomain() domain.Account {
	role, ok := domain.ParseRole(p.Role)
	if !ok {
		role = domain.RoleUser
	}
	return domain.Account{
		ID:         p.ID,
		Email:      p.Email,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Role:       role,
		FiscalCode: p.FiscalCode,
		Phone:      p.PhoneNumber,
	}
}

type pagePayload struct {
	Content       []ticketPayload `json:"content"`
	Number        int             `json:"number"`
	Size          int             `json:"size"`
	TotalElements int64           `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
}

// errorPayload covers both envelope shapes the backend emits.
type errorPayload struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e errorPayload) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error.Message
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType(fiber.MIMEApplicationJSON)
	if token, ok := TokenFromContext(ctx); ok {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			fiber.ReleaseAgent(agent)
			return apperrors.NewInternalError(err)
		}
		req.SetBody(payload)
	}
	agent.Timeout(c.timeout)

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return apperrors.NewNetworkError(err)
	}
	code, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return apperrors.NewNetworkError(errs[0])
	}
	// The editor may have been closed while the request was in flight;
	// a canceled session must not observe the late result.
	if err := ctx.Err(); err != nil {
		return apperrors.NewNetworkError(err)
	}
	if code >= http.StatusBadRequest {
		return c.mapStatus(method, path, code, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.NewInternalError(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
	}
	return nil
}

// mapStatus translates backend HTTP failures into the gateway's error
// taxonomy. Conflict text is rewritten against the known-phrase
// catalog; unrecognized text is shown verbatim.
func (c *HTTPClient) mapStatus(method, path string, code int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)
	message := payload.text()
	if c.logger != nil {
		c.logger.Debug("backend request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", code),
			zap.String("message", message))
	}

	switch code {
	case http.StatusUnauthorized:
		return apperrors.NewUnauthorized("backend rejected credentials")
	case http.StatusForbidden:
		return apperrors.NewAuthorizationError("action denied by backend")
	case http.StatusNotFound:
		return apperrors.NewNotFound("ticket", map[string]any{"path": path})
	case http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("backend rejected the request (status %d)", code)
		}
		if c.catalog != nil {
			message = c.catalog.Rewrite(message)
		}
		return apperrors.NewConflict(message, nil)
	default:
		return apperrors.NewNetworkError(fmt.Errorf("unexpected backend status %d", code))
	}
}

func (c *HTTPClient) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	var payload ticketPayload
	if err := c.do(ctx, fiber.MethodGet, "/tickets/"+id, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) CreateTicket(ctx context.Context, req TicketRequest) (*domain.Ticket, error) {
	var payload ticketPayload
	if err := c.do(ctx, fiber.MethodPost, "/tickets", req, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) UpdateTicket(ctx context.Context, id string, req TicketRequest) (*domain.Ticket, error) {
	var payload ticketPayload
	if err := c.do(ctx, fiber.MethodPut, "/tickets/"+id, req, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) DeleteTicket(ctx context.Context, id string) error {
	return c.do(ctx, fiber.MethodDelete, "/tickets/"+id, nil, nil)
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	var payload ticketPayload
	path := "/tickets/" + id + "/status?newStatus=" + url.QueryEscape(string(status))
	if err := c.do(ctx, fiber.MethodPut, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) Assign(ctx context.Context, id, helperID string) (*domain.Ticket, error) {
	var payload ticketPayload
	path := "/tickets/" + id + "/assign?helperId=" + url.QueryEscape(helperID)
	if err := c.do(ctx, fiber.MethodPut, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) Reject(ctx context.Context, id, newAssigneeID string) (*domain.Ticket, error) {
	var payload ticketPayload
	path := "/tickets/" + id + "/reject?newAssignedToId=" + url.QueryEscape(newAssigneeID)
	if err := c.do(ctx, fiber.MethodPut, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) Escalate(ctx context.Context, id, newAssigneeID string) (*domain.Ticket, error) {
	var payload ticketPayload
	path := "/tickets/" + id + "/escalate?newAssignedToId=" + url.QueryEscape(newAssigneeID)
	if err := c.do(ctx, fiber.MethodPut, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) Accept(ctx context.Context, id string) (*domain.Ticket, error) {
	var payload ticketPayload
	if err := c.do(ctx, fiber.MethodPut, "/tickets/"+id+"/accept", nil, &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(), nil
}

func (c *HTTPClient) ListTickets(ctx context.Context, params ListParams) (*domain.TicketPage, error) {
	values := url.Values{}
	values.Set("page", strconv.Itoa(params.Page))
	values.Set("size", strconv.Itoa(params.Size))
	if params.Sort != "" {
		values.Set("sort", params.Sort)
	}
	if params.Status != nil {
		values.Set("status", string(*params.Status))
	}
	if params.Priority != nil {
		values.Set("priority", string(*params.Priority))
	}
	if params.Search != "" {
		values.Set("search", params.Search)
	}

	var payload pagePayload
	if err := c.do(ctx, fiber.MethodGet, "/tickets?"+values.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	page := &domain.TicketPage{
		Page:       payload.Number,
		Size:       payload.Size,
		TotalItems: payload.TotalElements,
		TotalPages: payload.TotalPages,
		Items:      make([]domain.Ticket, 0, len(payload.Content)),
	}
	for i := range payload.Content {
		page.Items = append(page.Items, *payload.Content[i].toDomain())
	}
	return page, nil
}

func (c *HTTPClient) ListMyDrafts(ctx context.Context) ([]domain.Ticket, error) {
	var payload []ticketPayload
	if err := c.do(ctx, fiber.MethodGet, "/tickets/drafts", nil, &payload); err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(payload))
	for i := range payload {
		tickets = append(tickets, *payload[i].toDomain())
	}
	return tickets, nil
}

func (c *HTTPClient) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var payload []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.do(ctx, fiber.MethodGet, "/categories", nil, &payload); err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(payload))
	for _, item := range payload {
		categories = append(categories, domain.Category{ID: item.ID, Name: item.Name, Description: item.Description})
	}
	return categories, nil
}

func (c *HTTPClient) ListServicesByCategory(ctx context.Context, categoryID string) ([]domain.SupportService, error) {
	var payload []struct {
		ID         string `json:"id"`
		CategoryID string `json:"categoryId"`
		Name       string `json:"name"`
	}
	if err := c.do(ctx, fiber.MethodGet, "/services/category/"+categoryID, nil, &payload); err != nil {
		return nil, err
	}
	services := make([]domain.SupportService, 0, len(payload))
	for _, item := range payload {
		services = append(services, domain.SupportService{ID: item.ID, CategoryID: item.CategoryID, Name: item.Name})
	}
	return services, nil
}

func (c *HTTPClient) ListStaff(ctx context.Context) ([]domain.Account, error) {
	var payload []accountPayload
	if err := c.do(ctx, fiber.MethodGet, "/users/helpers", nil, &payload); err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(payload))
	for i := range payload {
		accounts = append(accounts, payload[i].toDomain())
	}
	return accounts, nil
}

func (c *HTTPClient) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	var payload []accountPayload
	if err := c.do(ctx, fiber.MethodGet, "/users/role/"+url.PathEscape(string(role)), nil, &payload); err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(payload))
	for i := range payload {
		accounts = append(accounts, payload[i].toDomain())
	}
	return accounts, nil
}
