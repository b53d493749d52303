package web

import (
	"strconv"
	"strings"

	"github.com/dukex/flowgraph/pkg/triggers/webhook"
	"github.com/gofiber/fiber/v3"
)

// HandleWebhook hands an inbound call on /webhooks/trigger/:triggerId to the
// webhook processor. Segments after the trigger id become param1..paramN; a
// leading "path" segment is dropped so /:triggerId/path/a and /:triggerId/a
// both yield param1=a.
func (h *APIHandlers) HandleWebhook(c fiber.Ctx) error {
	triggerID := c.Params("triggerId")

	pathParams := map[string]string{"triggerId": triggerID}

	rest := strings.Trim(c.Params("*"), "/")
	if rest == "path" {
		rest = ""
	}

	rest = strings.TrimPrefix(rest, "path/")
	if rest != "" {
		for i, segment := range strings.Split(rest, "/") {
			pathParams["param"+strconv.Itoa(i+1)] = segment
		}
	}

	headers := make(map[string]string)
	for name, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}

	query := make(map[string]string)
	for name, value := range c.Queries() {
		query[name] = value
	}

	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	result := h.webhooks.Process(c.Context(), webhook.Request{
		TriggerID:  triggerID,
		Method:     c.Method(),
		Headers:    headers,
		Query:      query,
		PathParams: pathParams,
		Body:       body,
		ClientIP:   clientIP(c),
	})

	return c.Status(result.StatusCode).JSON(result)
}

func clientIP(c fiber.Ctx) string {
	forwarded := c.Get(fiber.HeaderXForwardedFor)
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")

		return strings.TrimSpace(first)
	}

	return c.IP()
}
