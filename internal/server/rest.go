package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
	"github.com/go-tangra/go-tangra-sysinfo/internal/store"
	"github.com/go-tangra/go-tangra-sysinfo/internal/viewer"
)

var errNotConnected = errors.New("agent is not connected")

const (
	OperationListCategories = "/sysinfo.viewer.v1.ViewerService/ListCategories"
	OperationListHosts      = "/sysinfo.viewer.v1.ViewerService/ListHosts"
	OperationGetReport      = "/sysinfo.viewer.v1.ViewerService/GetReport"
	OperationGetCategory    = "/sysinfo.viewer.v1.ViewerService/GetCategory"
	OperationRefreshHost    = "/sysinfo.viewer.v1.ViewerService/RefreshHost"
	OperationListAgents     = "/sysinfo.viewer.v1.ViewerService/ListAgents"
)

// CategoryInfo describes one registered category.
type CategoryInfo struct {
	ID         category.ID      `json:"id"`
	Name       string           `json:"name"`
	Icon       category.IconRef `json:"icon"`
	Group      string           `json:"group"`
	Incomplete bool             `json:"incomplete"`
}

type ListCategoriesResponse struct {
	Categories []CategoryInfo `json:"categories"`
}

type ListHostsResponse struct {
	Hosts []store.Host `json:"hosts"`
}

type RefreshRequest struct {
	CategoryIDs []category.ID `json:"category_ids"`
}

type RefreshResponse struct {
	Sent      bool   `json:"sent"`
	CommandID string `json:"command_id"`
}

type ListAgentsResponse struct {
	Agents []ConnectedAgentInfo `json:"agents"`
}

// API serves the REST routes of the viewer.
type API struct {
	store   *store.Store
	viewer  *viewer.Viewer
	handler *Handler
}

func NewAPI(s *store.Store, v *viewer.Viewer, h *Handler) *API {
	return &API{store: s, viewer: v, handler: h}
}

// Register mounts the routes on srv.
func (a *API) Register(srv *kratoshttp.Server) {
	r := srv.Route("/")
	r.GET("/v1/categories", a.route(OperationListCategories, a.listCategories))
	r.GET("/v1/hosts", a.route(OperationListHosts, a.listHosts))
	r.GET("/v1/hosts/{hostname}/report", a.route(OperationGetReport, a.getReport))
	r.GET("/v1/hosts/{hostname}/categories/{id}", a.route(OperationGetCategory, a.getCategory))
	r.POST("/v1/hosts/{hostname}/refresh", a.refreshRoute())
	r.GET("/v1/agents", a.route(OperationListAgents, a.listAgents))
}

// route runs fn behind the server middleware chain and writes its result
// with the codec the client accepts.
func (a *API) route(operation string, fn func(ctx context.Context, vars url.Values) (any, error)) kratoshttp.HandlerFunc {
	return func(ctx kratoshttp.Context) error {
		kratoshttp.SetOperation(ctx, operation)
		vars := ctx.Vars()
		h := ctx.Middleware(func(ctx context.Context, _ any) (any, error) {
			return fn(ctx, vars)
		})
		out, err := h(ctx, vars)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func (a *API) refreshRoute() kratoshttp.HandlerFunc {
	return func(ctx kratoshttp.Context) error {
		var in RefreshRequest
		if ctx.Request().ContentLength != 0 {
			if err := ctx.Bind(&in); err != nil {
				return kerrors.BadRequest("INVALID_BODY", err.Error())
			}
		}
		kratoshttp.SetOperation(ctx, OperationRefreshHost)
		hostname := ctx.Vars().Get("hostname")
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return a.refresh(ctx, hostname, req.(*RefreshRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func (a *API) listCategories(_ context.Context, _ url.Values) (any, error) {
	reg := a.viewer.Registry()
	out := make([]CategoryInfo, 0, reg.Len())
	for _, c := range reg.All() {
		out = append(out, CategoryInfo{
			ID:         c.ID(),
			Name:       c.Name(),
			Icon:       c.Icon(),
			Group:      reg.GroupOf(c.ID()),
			Incomplete: category.IsIncomplete(c),
		})
	}
	return &ListCategoriesResponse{Categories: out}, nil
}

func (a *API) listHosts(ctx context.Context, _ url.Values) (any, error) {
	hosts, err := a.store.Hosts(ctx)
	if err != nil {
		return nil, kerrors.InternalServer("STORE_ERROR", err.Error())
	}
	return &ListHostsResponse{Hosts: hosts}, nil
}

func (a *API) getReport(ctx context.Context, vars url.Values) (any, error) {
	hostname := vars.Get("hostname")
	rep, err := a.viewer.Report(ctx, hostname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.Newf(http.StatusNotFound, "HOST_NOT_FOUND", "no snapshots stored for host %q", hostname)
	}
	if err != nil {
		return nil, kerrors.InternalServer("STORE_ERROR", err.Error())
	}
	return rep, nil
}

func (a *API) getCategory(ctx context.Context, vars url.Values) (any, error) {
	hostname := vars.Get("hostname")
	id, ok := a.resolveCategory(vars.Get("id"))
	if !ok {
		return nil, kerrors.Newf(http.StatusNotFound, "CATEGORY_NOT_FOUND", "category %q is not registered", vars.Get("id"))
	}

	sec, err := a.viewer.Category(ctx, hostname, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.Newf(http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "no %s snapshot stored for host %q", id, hostname)
	}
	if err != nil {
		return nil, kerrors.InternalServer("STORE_ERROR", err.Error())
	}
	return &sec, nil
}

func (a *API) refresh(_ context.Context, hostname string, in *RefreshRequest) (any, error) {
	reg := a.viewer.Registry()
	ids := make([]category.ID, 0, len(in.CategoryIDs))
	seen := make(map[category.ID]struct{}, len(in.CategoryIDs))
	for _, raw := range in.CategoryIDs {
		id, ok := a.resolveCategory(string(raw))
		if !ok {
			return nil, kerrors.Newf(http.StatusBadRequest, "UNKNOWN_CATEGORY", "category %q is not registered", raw)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == reg.Len() {
		ids = nil
	}

	cmd := &protocol.Command{
		CommandID:   uuid.NewString(),
		Type:        protocol.CommandTypeRefresh,
		CategoryIDs: ids,
	}
	if err := a.handler.Refresh(hostname, cmd); err != nil {
		if errors.Is(err, errNotConnected) {
			return nil, kerrors.NotFound("AGENT_NOT_CONNECTED", err.Error())
		}
		return nil, kerrors.ServiceUnavailable("SEND_FAILED", err.Error())
	}
	return &RefreshResponse{Sent: true, CommandID: cmd.CommandID}, nil
}

func (a *API) listAgents(_ context.Context, _ url.Values) (any, error) {
	return &ListAgentsResponse{Agents: a.handler.cmdReg.ListConnected()}, nil
}

func (a *API) resolveCategory(s string) (category.ID, bool) {
	c, ok := a.viewer.Registry().Find(s)
	if !ok {
		return "", false
	}
	return c.ID(), true
}
