package contentstore

import "encoding/json"

// Record is a raw content-store entry. Unknown attributes are kept so a write can send the
// full record back.
type Record map[string]json.RawMessage

// managedFields are owned by the content store and must never be echoed back on writes.
var managedFields = []string{"id", "documentId", "createdAt", "updatedAt", "publishedAt", "locale"}

// Course attribute names.
const (
	fieldTurmas         = "turmas"
	fieldUpdatedAt      = "updatedAt"
	fieldTitle          = "titulo"
	fieldStartsOn       = "data_inicio"
	fieldPromoEnabled   = "badge_promocional_ativo"
	fieldPromoBadgeText = "badge_promocional"
)

// Turma is one slot as stored on the course record.
type Turma struct {
	UID        string  `json:"uid,omitempty"`
	DiaSemana  string  `json:"dia_semana"`
	Horario    string  `json:"horario"`
	DataInicio *string `json:"data_inicio,omitempty"`
	DataFim    *string `json:"data_fim,omitempty"`
	LinkAula   *string `json:"link_aula,omitempty"`
}

// Enrollment is a student registration on a course.
type Enrollment struct {
	Aluno      string `json:"aluno"`
	Turma      *int   `json:"turma"`
	Habilitado bool   `json:"habilitado"`
}

type scheduleOption struct {
	Horario string `json:"horario"`
}

type pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type listMeta struct {
	Pagination pagination `json:"pagination"`
}

type recordEnvelope struct {
	Data Record `json:"data"`
}

type enrollmentsEnvelope struct {
	Data []Enrollment `json:"data"`
	Meta listMeta     `json:"meta"`
}

type scheduleOptionsEnvelope struct {
	Data []scheduleOption `json:"data"`
}

// Clean returns a copy of r without store-managed fields.
func (r Record) Clean() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, field := range managedFields {
		delete(out, field)
	}
	return out
}
