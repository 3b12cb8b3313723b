// Package knowledge holds the static Colombian labor-law topic index used
// to enrich legal questions before answer generation.
package knowledge

import "strings"

// TopicGeneral is returned when no keyword in the index matches.
const TopicGeneral = "general"

// Topic is one entry of the index. Keywords are matched as case-insensitive
// substrings; declaration order is the tie-break order.
type Topic struct {
	ID          string
	Keywords    []string
	Description string
}

// topics is scanned in order; the first keyword hit wins, so two topics
// with overlapping keywords resolve to the one declared first.
var topics = []Topic{
	{
		ID:          "contratos",
		Keywords:    []string{"contrato", "contratos", "trabajo", "empleo", "vinculación", "nombramiento"},
		Description: "Contratos de trabajo y vinculación laboral",
	},
	{
		ID:          "salarios",
		Keywords:    []string{"salario", "sueldo", "pago", "remuneración", "salarios", "pagos"},
		Description: "Salarios, pagos y remuneración",
	},
	{
		ID:          "prestaciones",
		Keywords:    []string{"prestaciones", "cesantías", "prima", "vacaciones", "bonificaciones"},
		Description: "Prestaciones sociales y beneficios",
	},
	{
		ID:          "terminacion",
		Keywords:    []string{"despido", "terminación", "renuncia", "liquidación", "finiquito"},
		Description: "Terminación de contratos y despidos",
	},
	{
		ID:          "derechos",
		Keywords:    []string{"derechos", "obligaciones", "deberes", "protección"},
		Description: "Derechos y obligaciones laborales",
	},
	{
		ID:          "licencias",
		Keywords:    []string{"licencia", "permiso", "incapacidad", "maternidad", "paternidad"},
		Description: "Licencias y permisos laborales",
	},
	{
		ID:          "seguridad_social",
		Keywords:    []string{"eps", "pensión", "arl", "seguridad social", "salud"},
		Description: "Seguridad social y afiliaciones",
	},
}

// LaborLawBasics is the base knowledge block attached to every legal
// question regardless of topic.
const LaborLawBasics = `
INFORMACIÓN BÁSICA DEL DERECHO LABORAL COLOMBIANO:

1. VACACIONES:
- 15 días hábiles por año de servicio
- Se pueden acumular hasta por 2 años
- Compensación en dinero solo en casos excepcionales

2. SALARIO MÍNIMO (2024):
- Salario mínimo legal vigente: $1.300.000
- Auxilio de transporte: $162.000

3. PRESTACIONES SOCIALES:
- Prima de servicios: 15 días de salario por semestre
- Cesantías: 1 mes de salario por año
- Intereses sobre cesantías: 12% anual

4. JORNADA LABORAL:
- Máximo 8 horas diarias, 48 horas semanales
- Horas extras: 25% recargo diurno, 75% nocturno

5. TERMINACIÓN DE CONTRATO:
- Con justa causa: sin indemnización
- Sin justa causa: indemnización según tiempo de servicio

6. LICENCIAS:
- Maternidad: 18 semanas
- Paternidad: 2 semanas
- Luto: 5 días hábiles

IMPORTANTE: Esta información es general. Para casos específicos, consulte con un abogado laboralista.
`

// IdentifyTopic maps a message to a topic id by scanning the index in
// declared order and returning the first topic with a keyword occurring as
// a substring of the lower-cased message. Returns TopicGeneral when
// nothing matches.
func IdentifyTopic(message string) string {
	lower := strings.ToLower(message)
	for _, t := range topics {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				return t.ID
			}
		}
	}
	return TopicGeneral
}

// TopicContext returns the legal context block for a topic: the base
// knowledge block, plus the topic description for specific topics. Unknown
// topic ids get a generic label rather than an error.
func TopicContext(topic string) string {
	if topic == TopicGeneral {
		return LaborLawBasics
	}
	description := "Consulta laboral general"
	for _, t := range topics {
		if t.ID == topic {
			description = t.Description
			break
		}
	}
	return LaborLawBasics + "\n\nTEMA ESPECÍFICO: " + description
}

// Topics returns the index in declared order. The returned slice must not
// be mutated.
func Topics() []Topic {
	return topics
}
