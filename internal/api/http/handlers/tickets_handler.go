package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/threadwell/conversation-service/internal/api/dto"
	"github.com/threadwell/conversation-service/internal/auth"
	"github.com/threadwell/conversation-service/internal/domain"
	"github.com/threadwell/conversation-service/internal/repository"
	"github.com/threadwell/conversation-service/internal/service"
	apperrors "github.com/threadwell/conversation-service/pkg/util"
)

// TicketsHandler serves the ticket surface: listing, search, detail,
// partial update, replies, message deletion, tags and bulk delete.
type TicketsHandler struct {
	ticketService *service.TicketService
}

// NewTicketsHandler returns a new handler instance.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{ticketService: ticketService}
}

// ListTickets serves filtered listing; a search term switches to ranked
// search with the same filters applied.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}

	term := strings.TrimSpace(c.Query("search"))
	var result *service.TicketListResult
	if term != "" {
		result, err = h.ticketService.SearchTickets(c.UserContext(), term, filter)
	} else {
		result, err = h.ticketService.ListTickets(c.UserContext(), filter)
	}
	if err != nil {
		return err
	}

	resp := dto.TicketListResponse{
		Tickets: make([]dto.TicketSummary, 0, len(result.Tickets)),
		Pagination: dto.PaginationResponse{
			HasMore:    result.Pagination.HasMore,
			NextOffset: result.Pagination.NextOffset,
			Total:      result.Pagination.Total,
		},
	}
	for i := range result.Tickets {
		resp.Tickets = append(resp.Tickets, dto.FromTicket(&result.Tickets[i]))
	}
	return c.JSON(resp)
}

func parseTicketFilter(c *fiber.Ctx) (repository.TicketFilter, error) {
	var filter repository.TicketFilter

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return filter, apperrors.NewValidationError("invalid status", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	switch raw := c.Query("assignee_id"); raw {
	case "":
	case "null", "unassigned":
		filter.Unassigned = true
	default:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid assignee_id", map[string]any{"assignee_id": raw})
		}
		filter.AssigneeID = &id
	}

	if raw := c.Query("tag_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid tag_id", map[string]any{"tag_id": raw})
		}
		filter.TagID = &id
	}

	if raw := c.Query("customer_email"); raw != "" {
		filter.CustomerEmail = &raw
	}

	filter.Limit = c.QueryInt("limit", 50)
	filter.Offset = c.QueryInt("offset", 0)
	filter.SortAsc = strings.EqualFold(c.Query("sort_order"), "asc")

	return filter, nil
}

// GetTicket serves a ticket with its merged message and history timeline.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	detail, err := h.ticketService.GetTicketDetail(c.UserContext(), ticketID)
	if err != nil {
		return err
	}

	summary := dto.FromTicket(detail.Ticket)
	summary.Tags = make([]dto.TagResponse, 0, len(detail.Tags))
	for _, tag := range detail.Tags {
		summary.Tags = append(summary.Tags, dto.TagResponse{ID: tag.ID, Name: tag.Name})
	}
	return c.JSON(dto.TicketDetailResponse{
		TicketSummary: summary,
		Timeline:      dto.FromTimeline(detail.Timeline),
	})
}

// UpdateTicket applies a partial update. The body is decoded as raw JSON so
// an explicitly null assignee, customer name or follow-up date clears the
// field while an absent one leaves it untouched.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	agent, ok := auth.AgentFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &fields); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	input, err := buildUpdateInput(fields)
	if err != nil {
		return err
	}

	ticket, err := h.ticketService.UpdateTicket(c.UserContext(), ticketID, &agent.ID, domain.ChangeSourceManual, input)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

func buildUpdateInput(fields map[string]json.RawMessage) (service.TicketUpdateInput, error) {
	var input service.TicketUpdateInput

	for name, raw := range fields {
		isNull := string(raw) == "null"
		switch name {
		case "status":
			var v domain.TicketStatus
			if isNull || json.Unmarshal(raw, &v) != nil {
				return input, apperrors.NewValidationError("invalid status", nil)
			}
			input.Status = &v
		case "priority":
			var v domain.TicketPriority
			if isNull || json.Unmarshal(raw, &v) != nil {
				return input, apperrors.NewValidationError("invalid priority", nil)
			}
			input.Priority = &v
		case "assignee_id":
			input.AssigneeID.Set = true
			if !isNull {
				var v int64
				if err := json.Unmarshal(raw, &v); err != nil {
					return input, apperrors.NewValidationError("invalid assignee_id", nil)
				}
				input.AssigneeID.Value = &v
			}
		case "customer_email":
			var v string
			if isNull || json.Unmarshal(raw, &v) != nil {
				return input, apperrors.NewValidationError("invalid customer_email", nil)
			}
			input.CustomerEmail = &v
		case "customer_name":
			input.CustomerName.Set = true
			if !isNull {
				var v string
				if err := json.Unmarshal(raw, &v); err != nil {
					return input, apperrors.NewValidationError("invalid customer_name", nil)
				}
				input.CustomerName.Value = &v
			}
		case "follow_up_at":
			input.FollowUpAt.Set = true
			if !isNull {
				var v time.Time
				if err := json.Unmarshal(raw, &v); err != nil {
					return input, apperrors.NewValidationError("invalid follow_up_at", nil)
				}
				input.FollowUpAt.Value = &v
			}
		default:
			return input, apperrors.NewValidationError("unknown field", map[string]any{"field": name})
		}
	}
	return input, nil
}

// Reply posts an agent reply or note on a ticket.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	agent, ok := auth.AgentFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body is required", nil)
	}

	msg, err := h.ticketService.ReplyToTicket(c.UserContext(), agent, ticketID, service.ReplyInput{
		Type:             req.Type,
		Body:             req.Body,
		BodyHTML:         req.BodyHTML,
		To:               req.To,
		Cc:               req.Cc,
		ScheduledAt:      req.ScheduledAt,
		ReplyToMessageID: req.ReplyToMessageID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromMessage(msg))
}

// DeleteMessage cancels a pending scheduled message or removes a note.
func (h *TicketsHandler) DeleteMessage(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	messageID, err := pathID(c, "messageID")
	if err != nil {
		return err
	}
	if err := h.ticketService.DeleteMessage(c.UserContext(), ticketID, messageID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// BulkDelete removes a set of tickets and everything they own.
func (h *TicketsHandler) BulkDelete(c *fiber.Ctx) error {
	var req dto.BulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if len(req.IDs) == 0 {
		return apperrors.NewValidationError("ids must not be empty", nil)
	}

	deleted, err := h.ticketService.BulkDeleteTickets(c.UserContext(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// AddTag attaches a tag to a ticket, creating the tag on first use.
func (h *TicketsHandler) AddTag(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req dto.AddTagRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.NewValidationError("name is required", nil)
	}

	tag, err := h.ticketService.AddTag(c.UserContext(), ticketID, name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.TagResponse{ID: tag.ID, Name: tag.Name})
}

// RemoveTag detaches a tag from a ticket.
func (h *TicketsHandler) RemoveTag(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tagID, err := pathID(c, "tagID")
	if err != nil {
		return err
	}
	if err := h.ticketService.RemoveTag(c.UserContext(), ticketID, tagID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid path parameter", map[string]any{"param": name})
	}
	return id, nil
}
