package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/bastionhq/bastion/auditlog"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("audit-logs"))

	if err := g.GET("/:tenantId/audit-logs", a.listAuditLogs,
		forge.WithSummary("Query audit logs"),
		forge.WithDescription("Returns one page of a tenant's audit chain with optional filters."),
		forge.WithOperationID("listAuditLogs"),
		forge.WithRequestSchema(ListAuditLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit log page", AuditLogListResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/:tenantId/audit-logs/verify", a.verifyAuditChain,
		forge.WithSummary("Verify audit chain integrity"),
		forge.WithDescription("Walks the tenant's hash chain and reports the first violation, if any."),
		forge.WithOperationID("verifyAuditChain"),
		forge.WithResponseSchema(http.StatusOK, "Verification result", VerifyChainResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/:tenantId/audit-logs/:eventId", a.getAuditLog,
		forge.WithSummary("Get audit log entry"),
		forge.WithOperationID("getAuditLog"),
		forge.WithResponseSchema(http.StatusOK, "Audit log entry", AuditLogResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/:tenantId/audit-logs/export", a.exportAuditLogs,
		forge.WithSummary("Export audit logs"),
		forge.WithDescription("Returns a download link for small result sets, or hands the export to a background job for large ones."),
		forge.WithOperationID("exportAuditLogs"),
		forge.WithRequestSchema(ExportAuditLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Download link", ExportDownloadResponse{}),
		forge.WithResponseSchema(http.StatusAccepted, "Export job handle", ExportJobResponse{}),
		forge.WithErrorResponses(),
	)
}

func parseBound(s, name string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, forge.BadRequest("invalid " + name + " timestamp")
	}
	return &t, nil
}

func (a *API) listAuditLogs(ctx forge.Context, req *ListAuditLogsRequest) (*AuditLogListResponse, error) {
	ledger, err := a.eng.RequireAudit()
	if err != nil {
		return nil, serviceUnavailable(ctx)
	}
	tenantID := ctx.Param("tenantId")

	after, err := parseBound(req.TimestampAfter, "timestampAfter")
	if err != nil {
		return nil, err
	}
	before, err := parseBound(req.TimestampBefore, "timestampBefore")
	if err != nil {
		return nil, err
	}

	page, err := ledger.Query(ctx.Context(), tenantID, auditlog.QueryOptions{
		Page:            req.Page,
		PageSize:        req.PageSize,
		EventType:       req.EventType,
		ActorID:         req.ActorID,
		Resource:        req.ResourceType,
		ActorIP:         req.IPAddress,
		TimestampAfter:  after,
		TimestampBefore: before,
	})
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AuditLogListResponse{
		Data:       page.Data,
		Pagination: page.Pagination,
		Meta:       AuditMeta{TenantID: tenantID},
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) getAuditLog(ctx forge.Context, _ *GetAuditLogRequest) (*AuditLogResponse, error) {
	ledger, err := a.eng.RequireAudit()
	if err != nil {
		return nil, serviceUnavailable(ctx)
	}
	tenantID := ctx.Param("tenantId")

	entry, err := ledger.GetByEventID(ctx.Context(), tenantID, ctx.Param("eventId"))
	if err != nil {
		if isNotFound(err) {
			return nil, auditNotFound(ctx)
		}
		return nil, mapError(err)
	}

	resp := &AuditLogResponse{Data: entry, Meta: AuditMeta{TenantID: tenantID}}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) exportAuditLogs(ctx forge.Context, req *ExportAuditLogsRequest) (*ExportDownloadResponse, error) {
	if _, err := a.eng.RequireAudit(); err != nil || a.exporter == nil {
		return nil, serviceUnavailable(ctx)
	}
	tenantID := ctx.Param("tenantId")

	format := auditlog.Format(req.Format)
	if !format.Valid() {
		return nil, forge.BadRequest("format must be json or csv")
	}
	after, err := parseBound(req.TimestampAfter, "timestampAfter")
	if err != nil {
		return nil, err
	}
	before, err := parseBound(req.TimestampBefore, "timestampBefore")
	if err != nil {
		return nil, err
	}

	result, err := a.exporter.Export(ctx.Context(), tenantID, auditlog.ExportOptions{
		Format:          format,
		EventType:       req.EventType,
		TimestampAfter:  after,
		TimestampBefore: before,
	})
	if err != nil {
		return nil, mapError(err)
	}

	if result.Async {
		return nil, ctx.JSON(http.StatusAccepted, ExportJobResponse{
			Data: ExportJobHandle{JobID: result.JobID, Status: result.Status},
		})
	}

	resp := &ExportDownloadResponse{
		Data: ExportDownload{
			DownloadURL: result.DownloadURL,
			EventCount:  result.EventCount,
			ExpiresAt:   result.ExpiresAt,
		},
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) verifyAuditChain(ctx forge.Context, _ *VerifyAuditChainRequest) (*VerifyChainResponse, error) {
	ledger, err := a.eng.RequireAudit()
	if err != nil {
		return nil, serviceUnavailable(ctx)
	}
	tenantID := ctx.Param("tenantId")

	result, err := ledger.VerifyChain(ctx.Context(), tenantID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &VerifyChainResponse{Data: result, Meta: AuditMeta{TenantID: tenantID}}
	return resp, ctx.JSON(http.StatusOK, resp)
}
