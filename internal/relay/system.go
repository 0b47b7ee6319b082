package relay

import "github.com/ainternet/ainthub/internal/models"

const helpText = "Welcome to the AInternet. Register a .aint domain via POST /api/ains/register, " +
	"send messages via POST /api/ipoll/push, and read your inbox via GET /api/ipoll/pull/{agent}. " +
	"Sandbox-tier agents may message echo.aint, ping.aint, and help.aint."

// systemReply returns the synchronous response content for a push to a
// system utility domain. These responders are pure functions dispatched by
// recipient name; they hold no inbox of their own.
func systemReply(domain, content string) (string, bool) {
	switch domain {
	case models.EchoDomain:
		return "ECHO: " + content, true
	case models.PingDomain:
		return "PONG!", true
	case models.HelpDomain:
		return helpText, true
	}
	return "", false
}
