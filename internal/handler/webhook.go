package handler

import (
	"encoding/xml"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ridebot/internal/service"
)

// whatsappPrefix is stripped from the transport's From field to get the
// bare phone number.
const whatsappPrefix = "whatsapp:"

// twimlResponse is the reply document the messaging transport expects.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// WebhookHandler handles inbound conversation events.
type WebhookHandler struct {
	conversation *service.ConversationService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(conversation *service.ConversationService) *WebhookHandler {
	return &WebhookHandler{conversation: conversation}
}

// Inbound handles POST /webhook/whatsapp.
//
// The transport posts a form with Body, From, and optionally Latitude
// and Longitude when the rider shares a location. The reply always goes
// out with HTTP 200: a non-2xx here would make the transport retry an
// exchange the rider already saw fail.
func (h *WebhookHandler) Inbound(c *gin.Context) {
	msg := service.InboundMessage{
		Phone: strings.TrimPrefix(c.PostForm("From"), whatsappPrefix),
		Body:  c.PostForm("Body"),
	}

	lat, lng, ok, err := parseCoordinates(c.PostForm("Latitude"), c.PostForm("Longitude"))
	if err != nil {
		reply(c, service.BadLocationReply())
		return
	}
	if ok {
		msg.HasLocation = true
		msg.Latitude = lat
		msg.Longitude = lng
	}

	text, err := h.conversation.HandleInbound(c.Request.Context(), msg)
	if err != nil {
		log.Printf("webhook: handle inbound from %s: %v", msg.Phone, err)
		reply(c, service.ErrorReply())
		return
	}

	reply(c, text)
}

func reply(c *gin.Context, text string) {
	c.XML(http.StatusOK, twimlResponse{Message: text})
}

// parseCoordinates reads the optional location fields. Both must be
// present and numeric for the event to count as a location share.
func parseCoordinates(latStr, lngStr string) (lat, lng float64, ok bool, err error) {
	if latStr == "" || lngStr == "" {
		return 0, 0, false, nil
	}

	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, false, err
	}

	lng, err = strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, false, err
	}

	return lat, lng, true, nil
}
