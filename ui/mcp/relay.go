package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type RelayHandler struct {
	broadcastService domainBroadcast.IBroadcastUsecase
	channelService   domainProvider.IChannelOpsUsecase
}

func InitMcpRelay(broadcastService domainBroadcast.IBroadcastUsecase, channelService domainProvider.IChannelOpsUsecase) *RelayHandler {
	return &RelayHandler{
		broadcastService: broadcastService,
		channelService:   channelService,
	}
}

func (h *RelayHandler) AddRelayTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolBroadcastSend(), h.handleBroadcastSend)
	mcpServer.AddTool(h.toolListTemplates(), h.handleListTemplates)
	mcpServer.AddTool(h.toolQuota(), h.handleQuota)
	mcpServer.AddTool(h.toolSettings(), h.handleSettings)
}

func (h *RelayHandler) toolBroadcastSend() mcp.Tool {
	return mcp.NewTool(
		"broadcast_send",
		mcp.WithDescription("Send a text or template message from a channel to a list of numbers or to every lead with the given statuses. Sends are paced, so large audiences take minutes."),
		mcp.WithTitleAnnotation("Send Broadcast"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("channel_id",
			mcp.Description("The channel that sends the messages."),
			mcp.Required(),
		),
		mcp.WithArray("numbers",
			mcp.Description("Recipient phone numbers, with or without country code."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("statuses",
			mcp.Description("Lead statuses to target when no numbers are given."),
			mcp.WithStringItems(),
		),
		mcp.WithString("message",
			mcp.Description("Free text body. Ignored when template_name is set."),
		),
		mcp.WithString("template_name",
			mcp.Description("Approved template name, required for Official channels outside the 24h window."),
		),
		mcp.WithString("template_language",
			mcp.Description("Template language code, defaults to pt_BR."),
		),
		mcp.WithString("campaign_name",
			mcp.Description("Optional campaign to record the sent count against."),
		),
	)
}

func (h *RelayHandler) handleBroadcastSend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := request.RequireString("channel_id")
	if err != nil {
		return nil, err
	}

	req := domainBroadcast.SendRequest{
		ChannelID:        channelID,
		Numbers:          request.GetStringSlice("numbers", nil),
		Statuses:         request.GetStringSlice("statuses", nil),
		Message:          request.GetString("message", ""),
		TemplateName:     request.GetString("template_name", ""),
		TemplateLanguage: request.GetString("template_language", ""),
		CampaignName:     request.GetString("campaign_name", ""),
	}

	resp, err := h.broadcastService.Send(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fallback := fmt.Sprintf("Broadcast finished: %d sent, %d failed", resp.Sent, resp.Failed)
	if len(resp.Errors) > 0 {
		fallback += "\n" + strings.Join(resp.Errors, "\n")
	}
	return mcp.NewToolResultStructured(resp, fallback), nil
}

func (h *RelayHandler) toolListTemplates() mcp.Tool {
	return mcp.NewTool(
		"channel_list_templates",
		mcp.WithDescription("List the message templates registered for an Official channel's business account."),
		mcp.WithTitleAnnotation("List Templates"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("channel_id",
			mcp.Description("The channel whose templates to list."),
			mcp.Required(),
		),
	)
}

func (h *RelayHandler) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := request.RequireString("channel_id")
	if err != nil {
		return nil, err
	}

	templates, err := h.channelService.ListTemplates(ctx, channelID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]string, 0, len(templates)+1)
	lines = append(lines, fmt.Sprintf("Found %d templates", len(templates)))
	for _, tpl := range templates {
		lines = append(lines, fmt.Sprintf("- %s (%s, %s)", tpl.Name, tpl.Language, tpl.Status))
	}
	return mcp.NewToolResultStructured(map[string]any{"templates": templates}, strings.Join(lines, "\n")), nil
}

func (h *RelayHandler) toolQuota() mcp.Tool {
	return mcp.NewTool(
		"channel_quota",
		mcp.WithDescription("Show how many messages a channel sent today and how many remain under its daily limit."),
		mcp.WithTitleAnnotation("Channel Quota"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("channel_id",
			mcp.Description("The channel to inspect."),
			mcp.Required(),
		),
	)
}

func (h *RelayHandler) handleQuota(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := request.RequireString("channel_id")
	if err != nil {
		return nil, err
	}

	status, err := h.broadcastService.Quota(ctx, channelID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fallback := fmt.Sprintf("%d sent on %s, no local limit", status.Count, status.Day)
	if status.Limit > 0 {
		fallback = fmt.Sprintf("%d of %d sent on %s, %d remaining", status.Count, status.Limit, status.Day, status.Remaining)
	}
	return mcp.NewToolResultStructured(status, fallback), nil
}

func (h *RelayHandler) toolSettings() mcp.Tool {
	return mcp.NewTool(
		"relay_settings",
		mcp.WithDescription("Show the non-secret dispatch settings this server runs with: pacing windows, Bridge daily limit, database and event bus."),
		mcp.WithTitleAnnotation("Relay Settings"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (h *RelayHandler) handleSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings := coreconfig.GetAllSettings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, settings[k]))
	}
	return mcp.NewToolResultStructured(settings, strings.Join(lines, "\n")), nil
}
