// Package template renders notification content. Rendering is pure: a
// notification type plus a data bag maps deterministically to a
// subject/html/text triple, with no I/O involved.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/techserwis/notification_service/internal/notification_service/domain"
)

// RenderedMessage is the fully rendered content of one notification.
type RenderedMessage struct {
	Subject string
	HTML    string
	Text    string
}

// notProvided substitutes any missing optional field.
const notProvided = "Nie podano"

type formatter func(data map[string]any) (subject string, html string)

// formatters is the closed dispatch table of known notification types.
// Adding a type here is a compile-time-checked, enumerable change.
var formatters = map[domain.NotificationType]formatter{
	domain.TypeBookingConfirmation: renderBookingConfirmation,
	domain.TypeRepairRequest:       renderRepairRequest,
	domain.TypeRepairStatusUpdate:  renderRepairStatusUpdate,
	domain.TypeRepairReady:         renderRepairReady,
	domain.TypeAppointmentReminder: renderAppointmentReminder,
	domain.TypeEmailConfirmation:   renderEmailConfirmation,
	domain.TypeTest:                renderTest,
}

// statusLabels maps internal repair ticket statuses to display labels.
// Unknown statuses pass through as-is: the status vocabulary evolves
// independently of this table.
var statusLabels = map[string]string{
	"new":               "Nowe zgłoszenie",
	"pending":           "Oczekujące",
	"diagnosing":        "W trakcie diagnozy",
	"in_repair":         "W trakcie naprawy",
	"waiting_for_parts": "Oczekiwanie na części",
	"ready":             "Gotowe do odbioru",
	"completed":         "Zakończone",
	"cancelled":         "Anulowane",
}

// Render maps a notification type and data bag to rendered message content.
// Missing optional fields are defaulted, never a reason to fail; the only
// error is domain.ErrUnknownTemplateType. Text content is derived from the
// HTML body unless the data bag carries an explicit "textContent" variant.
func Render(notificationType domain.NotificationType, data map[string]any) (RenderedMessage, error) {
	format, ok := formatters[notificationType]
	if !ok {
		return RenderedMessage{}, fmt.Errorf("%w: %q", domain.ErrUnknownTemplateType, notificationType)
	}
	if data == nil {
		data = map[string]any{}
	}

	subject, html := format(data)

	text := strField(data, "textContent", "")
	if text == "" {
		text = HTMLToText(html)
	}

	return RenderedMessage{Subject: subject, HTML: html, Text: text}, nil
}

// StatusLabel returns the display label for a repair ticket status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

func renderBookingConfirmation(data map[string]any) (string, string) {
	name := strField(data, "name", notProvided)
	date := strField(data, "date", notProvided)
	timeOfDay := strField(data, "time", notProvided)
	service := strField(data, "service", notProvided)

	subject := "Potwierdzenie rezerwacji wizyty"
	html := fmt.Sprintf(`<h2>Dziękujemy za rezerwację!</h2>
<p>Witaj %s,</p>
<p>Twoja wizyta została zarezerwowana.</p>
<ul>
<li><strong>Data:</strong> %s</li>
<li><strong>Godzina:</strong> %s</li>
<li><strong>Usługa:</strong> %s</li>
</ul>
<p>W razie pytań prosimy o kontakt.</p>`, name, date, timeOfDay, service)
	return subject, html
}

func renderRepairRequest(data map[string]any) (string, string) {
	name := strField(data, "name", notProvided)
	ticketNumber := strField(data, "ticketNumber", notProvided)
	deviceType := strField(data, "deviceType", notProvided)
	brand := strField(data, "brand", notProvided)
	issue := strField(data, "issueDescription", notProvided)

	subject := fmt.Sprintf("Przyjęliśmy Twoje zgłoszenie naprawy (%s)", ticketNumber)
	html := fmt.Sprintf(`<h2>Zgłoszenie naprawy przyjęte</h2>
<p>Witaj %s,</p>
<p>Twoje zgłoszenie o numerze <strong>%s</strong> zostało przyjęte.</p>
<ul>
<li><strong>Urządzenie:</strong> %s</li>
<li><strong>Marka:</strong> %s</li>
<li><strong>Opis usterki:</strong> %s</li>
</ul>
<p>Poinformujemy Cię o zmianach statusu naprawy.</p>`, name, ticketNumber, deviceType, brand, issue)
	return subject, html
}

func renderRepairStatusUpdate(data map[string]any) (string, string) {
	// "status" is the one required field of this template; an absent value
	// still renders, just with the placeholder label.
	status := strField(data, "status", notProvided)
	ticketNumber := strField(data, "ticketNumber", notProvided)
	label := StatusLabel(status)

	subject := fmt.Sprintf("Aktualizacja statusu naprawy: %s", label)
	html := fmt.Sprintf(`<h2>Status Twojej naprawy uległ zmianie</h2>
<p>Zgłoszenie: <strong>%s</strong></p>
<p>Nowy status: <strong>%s</strong></p>
<p>Dziękujemy za cierpliwość.</p>`, ticketNumber, label)
	return subject, html
}

func renderRepairReady(data map[string]any) (string, string) {
	ticketNumber := strField(data, "ticketNumber", notProvided)
	pickupInfo := strField(data, "pickupInfo", "Zapraszamy w godzinach otwarcia serwisu.")

	subject := "Twoje urządzenie jest gotowe do odbioru"
	html := fmt.Sprintf(`<h2>Naprawa zakończona</h2>
<p>Urządzenie ze zgłoszenia <strong>%s</strong> jest gotowe do odbioru.</p>
<p>%s</p>`, ticketNumber, pickupInfo)
	return subject, html
}

func renderAppointmentReminder(data map[string]any) (string, string) {
	date := strField(data, "date", notProvided)
	timeOfDay := strField(data, "time", notProvided)
	service := strField(data, "service", notProvided)

	subject := "Przypomnienie o jutrzejszej wizycie"
	html := fmt.Sprintf(`<h2>Przypomnienie o wizycie</h2>
<p>Przypominamy o zaplanowanej wizycie:</p>
<ul>
<li><strong>Data:</strong> %s</li>
<li><strong>Godzina:</strong> %s</li>
<li><strong>Usługa:</strong> %s</li>
</ul>
<p>Do zobaczenia!</p>`, date, timeOfDay, service)
	return subject, html
}

func renderEmailConfirmation(data map[string]any) (string, string) {
	// A missing confirmationUrl renders a dead link rather than failing;
	// the producer is expected to supply it.
	confirmationURL := strField(data, "confirmationUrl", "#")

	subject := "Potwierdź swój adres e-mail"
	html := fmt.Sprintf(`<h2>Potwierdzenie adresu e-mail</h2>
<p>Kliknij poniższy link, aby potwierdzić swój adres e-mail:</p>
<p><a href="%s">Potwierdź adres e-mail</a></p>
<p>Jeśli to nie Ty zakładałeś konto, zignoruj tę wiadomość.</p>`, confirmationURL)
	return subject, html
}

func renderTest(data map[string]any) (string, string) {
	message := strField(data, "message", "Testowe powiadomienie")
	return "Test powiadomień", fmt.Sprintf("<p>%s</p>", message)
}

var (
	blockBreakRe  = regexp.MustCompile(`(?i)<\s*(/p|br\s*/?|/h[1-6]|/li|/ul)\s*>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`[ \t]+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	trailingWSRe  = regexp.MustCompile(`[ \t]+\n`)
)

// HTMLToText derives a plain-text variant from an HTML body: block-level
// closers become line breaks, remaining tags are removed, entities are
// unescaped and whitespace is collapsed.
func HTMLToText(html string) string {
	text := blockBreakRe.ReplaceAllString(html, "\n")
	text = tagRe.ReplaceAllString(text, "")

	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	text = replacer.Replace(text)

	text = whitespaceRe.ReplaceAllString(text, " ")
	text = trailingWSRe.ReplaceAllString(text, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func strField(data map[string]any, key, fallback string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return fallback
	}
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
