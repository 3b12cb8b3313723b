package agent

import (
	"fmt"
	"strings"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

// Fixed user-facing replies. All user-visible error paths resolve to
// ErrorResponse; raw error details never reach the transport.
const (
	EmptyMessageResponse = "Por favor, envía tu consulta sobre derecho laboral colombiano."

	GreetingResponse = `¡Hola! 👋

Soy tu asistente legal especializado en derecho laboral colombiano. Puedo ayudarte con consultas sobre:

• Contratos de trabajo
• Salarios y prestaciones
• Vacaciones y licencias
• Despidos y terminación
• Derechos laborales
• Seguridad social

¿En qué tema laboral puedo asistirte hoy?

*Nota: Esta información es orientativa y no reemplaza la asesoría legal profesional.*`

	ErrorResponse = `Lo siento, he tenido un problema procesando tu consulta.

Por favor, intenta reformular tu pregunta sobre derecho laboral colombiano o contacta con un abogado si necesitas asesoría urgente.

¿Puedo ayudarte con algo más?`
)

const classificationPrompt = `Analiza el siguiente mensaje y determina si es una consulta legal laboral o una conversación casual.

Mensaje: "%s"

Responde con:
- "LEGAL" si es una pregunta sobre derecho laboral
- "CASUAL" si es un saludo, conversación general, o no relacionado con derecho laboral

Solo responde con una palabra: LEGAL o CASUAL`

const systemPrompt = `Eres un asistente legal especializado en derecho laboral colombiano. Tu función es ayudar a trabajadores y empleadores con consultas sobre la legislación laboral de Colombia.

INSTRUCCIONES IMPORTANTES:
1. Responde SIEMPRE en español
2. Sé preciso y cita artículos del Código Sustantivo del Trabajo cuando sea relevante
3. Mantén un tono profesional pero accesible
4. Si no estás seguro de algo, admítelo y sugiere consultar con un abogado
5. Incluye disclaimers apropiados sobre que tu respuesta no constituye asesoría legal formal
6. Limita tus respuestas a máximo 1000 caracteres para WhatsApp
7. Si la pregunta no es sobre derecho laboral colombiano, redirige amablemente al tema

CONOCIMIENTO BASE:
%s

HISTORIAL DE CONVERSACIÓN:
%s

Responde de manera útil, precisa y profesional.`

const legalResponsePrompt = `Basándote en tu conocimiento del derecho laboral colombiano, responde a la siguiente consulta:

CONSULTA: %s

TEMA IDENTIFICADO: %s

CONTEXTO LEGAL RELEVANTE:
%s

HISTORIAL RECIENTE:
%s

INSTRUCCIONES:
1. Proporciona una respuesta clara y precisa
2. Cita artículos relevantes del Código Sustantivo del Trabajo si aplica
3. Mantén la respuesta bajo 800 caracteres
4. Incluye un disclaimer breve
5. Sugiere una pregunta de seguimiento si es apropiado

Respuesta:`

const noHistorySentinel = "No hay historial previo."

// historyWindow is how many trailing transcript entries are rendered into
// prompts.
const historyWindow = 5

// formatHistory renders the last historyWindow entries one per line as
// "<role label>: <content>"; an empty transcript renders as a fixed
// sentinel line.
func formatHistory(entries []domain.HistoryEntry) string {
	if len(entries) == 0 {
		return noHistorySentinel
	}
	if len(entries) > historyWindow {
		entries = entries[len(entries)-historyWindow:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		label := "Asistente"
		if e.Role == domain.RoleUser {
			label = "Usuario"
		}
		lines = append(lines, label+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}

func buildClassificationPrompt(message string) string {
	return fmt.Sprintf(classificationPrompt, message)
}

func buildSystemPrompt(legalContext string, history []domain.HistoryEntry) string {
	return fmt.Sprintf(systemPrompt, legalContext, formatHistory(history))
}

func buildLegalPrompt(question, legalTopic, legalContext string, history []domain.HistoryEntry) string {
	return fmt.Sprintf(legalResponsePrompt, question, legalTopic, legalContext, formatHistory(history))
}
